package disk

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gitvault/pkg/core"
	"gitvault/pkg/storage"
	"gitvault/pkg/types"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloHash = types.Hash("3b18e512dba79e4c8300dd08aeb37f8e728b8dad")

// renameFailFs 模拟在最后一步 (Rename) 失败的文件系统
type renameFailFs struct {
	afero.Fs
}

var errRename = errors.New("rename refused")

func (renameFailFs) Rename(oldname, newname string) error { return errRename }

func inflateFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	zr, err := zlib.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	return raw
}

func assertNoTempFiles(t *testing.T, fsys afero.Fs, dir string) {
	t.Helper()
	entries, err := afero.ReadDir(fsys, dir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), tempPrefix), "临时文件残留: %s", e.Name())
	}
}

func TestDiskAdapter(t *testing.T) {
	// 1. 创建临时测试目录
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)

	ctx := context.Background()

	// 2. 测试 Write
	h, err := storage.Write(ctx, store, core.NewBlob([]byte("hello world\n")))
	require.NoError(t, err)
	assert.Equal(t, helloHash, h)

	// 验证文件是否真的存在于物理磁盘
	// 路径应该是 tmpDir/3b/18e512...
	expectedPath := filepath.Join(tmpDir, "3b", "18e512dba79e4c8300dd08aeb37f8e728b8dad")
	info, err := os.Stat(expectedPath)
	require.NoError(t, err, "文件应该存在于 Sharding 目录中")
	assert.Equal(t, os.FileMode(objectPerm), info.Mode().Perm(), "对象文件应该是只读的")

	// Round-trip: 解压后必须正好是规范序列化
	assert.Equal(t, []byte("blob 12\x00hello world\n"), inflateFile(t, expectedPath))

	// 3. 测试 Has
	exists, err := store.Has(ctx, h)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Has(ctx, "ffffffff") // 不合法的
	assert.NoError(t, err)
	assert.False(t, exists)

	exists, err = store.Has(ctx, types.Hash(strings.Repeat("f", 40))) // 不存在的
	assert.NoError(t, err)
	assert.False(t, exists)

	// 4. 测试 ReadObject
	objInfo, payload, err := storage.ReadObject(ctx, store, h)
	require.NoError(t, err)
	assert.Equal(t, types.ObjectInfo{Type: "blob", Size: 12}, objInfo)
	assert.Equal(t, "hello world\n", string(payload))

	// 5. 测试 Get 不存在的对象
	_, err = store.Get(ctx, types.Hash(strings.Repeat("f", 40)))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assertNoTempFiles(t, afero.NewOsFs(), filepath.Join(tmpDir, "3b"))
}

func TestDiskAdapter_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)
	ctx := context.Background()

	content := []byte("same content, written twice\n")
	h1, err := storage.Write(ctx, store, core.NewBlob(content))
	require.NoError(t, err)
	h2, err := storage.Write(ctx, store, core.NewBlob(content))
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "相同内容必须得到相同地址")

	// 重复写入之后对象依然可以正确解压和校验
	require.NoError(t, storage.VerifyObject(ctx, store, h1))

	dir, _ := h1.Shard()
	assertNoTempFiles(t, afero.NewOsFs(), filepath.Join(tmpDir, dir))
}

func TestDiskAdapter_ConcurrentWritersSameObject(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)
	ctx := context.Background()

	content := bytes.Repeat([]byte("race "), 4096)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = storage.Write(ctx, store, core.NewBlob(content))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err, "Shard 目录的创建竞争应该是无害的")
	}

	h, err := core.HashObject(core.TypeBlob, content)
	require.NoError(t, err)
	require.NoError(t, storage.VerifyObject(ctx, store, h))
}

func TestDiskAdapter_ShardPermissionDenied(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/repo/objects", 0755))

	store, err := NewAdapterFs(afero.NewReadOnlyFs(base), "/repo/objects")
	require.NoError(t, err)

	_, err = storage.Write(context.Background(), store, core.NewBlob([]byte("hello world\n")))
	require.Error(t, err, "除了“已存在”之外的目录错误必须上抛")
	assert.Contains(t, err.Error(), "shard dir")
}

func TestDiskAdapter_RenameFailureCleansUp(t *testing.T) {
	mem := afero.NewMemMapFs()
	store, err := NewAdapterFs(renameFailFs{Fs: mem}, "/objects")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = storage.Write(ctx, store, core.NewBlob([]byte("hello world\n")))
	require.Error(t, err)
	assert.ErrorIs(t, err, errRename)

	// 最终路径不存在，临时文件也被清理
	exists, err := store.Has(ctx, helloHash)
	require.NoError(t, err)
	assert.False(t, exists)
	assertNoTempFiles(t, mem, "/objects/3b")
}

func TestDiskAdapter_RejectsFileAsRoot(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/objects", []byte("x"), 0644))

	_, err := NewAdapterFs(mem, "/objects")
	assert.Error(t, err)
}

func TestDiskAdapter_ExpandHash(t *testing.T) {
	mem := afero.NewMemMapFs()
	store, err := NewAdapterFs(mem, "/objects")
	require.NoError(t, err)
	ctx := context.Background()

	// 准备数据: 直接在布局里放三个 Hash 前缀相似的文件
	// Hash A: 1111aaaa...  Hash B: 1111bbbb...  Hash C: 2222cccc...
	hashA := types.Hash("1111aaaa" + strings.Repeat("0", 32))
	hashB := types.Hash("1111bbbb" + strings.Repeat("0", 32))
	hashC := types.Hash("2222cccc" + strings.Repeat("0", 32))
	for _, h := range []types.Hash{hashA, hashB, hashC} {
		dir, file := h.Shard()
		require.NoError(t, afero.WriteFile(mem, filepath.Join("/objects", dir, file), []byte("x"), 0444))
	}
	// 遗留的临时文件不应参与匹配
	require.NoError(t, afero.WriteFile(mem, "/objects/22/tmp_obj_123", []byte("x"), 0600))

	tests := []struct {
		name      string
		input     string
		wantHash  types.Hash
		wantErr   error
		errString string // 可选，用于匹配部分错误信息
	}{
		{"Exact match", string(hashC), hashC, nil, ""},
		{"Unique prefix (4 chars)", "2222", hashC, nil, ""},
		{"Unique prefix (long)", "2222cccc", hashC, nil, ""},
		{"Ambiguous prefix", "1111", "", storage.ErrAmbiguousHash, "ambiguous"}, // 1111 同时匹配 A 和 B
		{"Not found", "ffff", "", storage.ErrNotFound, "not found"},
		{"Too short", "123", "", storage.ErrPrefixTooShort, "too short"},
		{"Not hex", "zzzz", "", storage.ErrInvalidHash, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ExpandHash(ctx, types.HashPrefix(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				if tt.errString != "" {
					assert.Contains(t, err.Error(), tt.errString)
				}
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantHash, got)
			}
		})
	}
}

func TestDiskAdapter_Walk(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)
	ctx := context.Background()

	// git init 会创建 info/ 与 pack/，Walk 必须跳过它们
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "info"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "pack"), 0755))

	var want []types.Hash
	for _, s := range []string{"a", "b", "c"} {
		h, err := storage.Write(ctx, store, core.NewBlob([]byte(s)))
		require.NoError(t, err)
		want = append(want, h)
	}

	var got []types.Hash
	require.NoError(t, store.Walk(ctx, func(h types.Hash) error {
		got = append(got, h)
		return nil
	}))
	assert.ElementsMatch(t, want, got)
}

package storage_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"gitvault/pkg/core"
	"gitvault/pkg/storage"
	"gitvault/pkg/storage/disk"
	"gitvault/pkg/types"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (afero.Fs, *disk.Adapter) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	s, err := disk.NewAdapterFs(fsys, "/objects")
	require.NoError(t, err)
	return fsys, s
}

// wrapped 模拟一个不支持 Walk 的装饰器
type wrapped struct {
	storage.Store
}

func (w wrapped) Unwrap() storage.Store { return w.Store }

// opaque 既不是 Walker 也不是 Wrapper
type opaque struct {
	storage.Store
}

func TestWriteAndRead(t *testing.T) {
	ctx := context.Background()
	_, s := newStore(t)

	h, err := storage.Write(ctx, s, core.NewBlob([]byte("hello world\n")))
	require.NoError(t, err)
	assert.Equal(t, types.Hash("3b18e512dba79e4c8300dd08aeb37f8e728b8dad"), h)

	info, payload, err := storage.ReadObject(ctx, s, h)
	require.NoError(t, err)
	assert.Equal(t, types.ObjectInfo{Type: "blob", Size: 12}, info)
	assert.Equal(t, "hello world\n", string(payload))

	info, err = storage.StatObject(ctx, s, h)
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.Size)

	require.NoError(t, storage.VerifyObject(ctx, s, h))
}

func TestReadObject_NotFound(t *testing.T) {
	_, s := newStore(t)
	_, _, err := storage.ReadObject(context.Background(), s, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVerifyObject_Tampered(t *testing.T) {
	ctx := context.Background()
	fsys, s := newStore(t)

	h, err := storage.Write(ctx, s, core.NewBlob([]byte("original")))
	require.NoError(t, err)
	other, err := core.Seal(core.NewBlob([]byte("tampered")))
	require.NoError(t, err)

	// 把另一个对象的字节放到 h 的位置上
	dir, file := h.Shard()
	path := filepath.Join("/objects", dir, file)
	require.NoError(t, fsys.Chmod(path, 0644))
	require.NoError(t, afero.WriteFile(fsys, path, other.Bytes(), 0644))

	assert.ErrorIs(t, storage.VerifyObject(ctx, s, h), core.ErrHashMismatch)
}

func TestStatObject_Corrupted(t *testing.T) {
	ctx := context.Background()
	fsys, s := newStore(t)

	h := types.Hash("3b18e512dba79e4c8300dd08aeb37f8e728b8dad")
	dir, file := h.Shard()
	require.NoError(t, afero.WriteFile(fsys, filepath.Join("/objects", dir, file), []byte("not zlib"), 0444))

	_, err := storage.StatObject(ctx, s, h)
	assert.ErrorContains(t, err, "corrupted")
}

func TestValidatePrefix(t *testing.T) {
	tests := []struct {
		prefix  types.HashPrefix
		wantErr error
	}{
		{"3b18", nil},
		{"3b18e512dba79e4c8300dd08aeb37f8e728b8dad", nil},
		{"3b1", storage.ErrPrefixTooShort},
		{"3B18", storage.ErrInvalidHash},
		{"zzzz", storage.ErrInvalidHash},
		{"3b18e512dba79e4c8300dd08aeb37f8e728b8dad0", storage.ErrInvalidHash},
	}
	for _, tt := range tests {
		t.Run(tt.prefix.String(), func(t *testing.T) {
			err := storage.ValidatePrefix(tt.prefix)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWalk_ThroughDecorators(t *testing.T) {
	ctx := context.Background()
	_, s := newStore(t)

	var want []types.Hash
	for _, c := range []string{"a", "b", "c"} {
		h, err := storage.Write(ctx, s, core.NewBlob([]byte(c)))
		require.NoError(t, err)
		want = append(want, h)
	}

	var got []types.Hash
	err := storage.Walk(ctx, wrapped{wrapped{s}}, func(h types.Hash) error {
		got = append(got, h)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, want, got)

	// 回调的错误原样返回
	err = storage.Walk(ctx, s, func(types.Hash) error { return io.ErrUnexpectedEOF })
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWalk_Unsupported(t *testing.T) {
	_, s := newStore(t)
	err := storage.Walk(context.Background(), opaque{s}, func(types.Hash) error { return nil })
	assert.ErrorIs(t, err, storage.ErrWalkUnsupported)
}

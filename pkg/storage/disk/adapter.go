package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"gitvault/pkg/core"
	"gitvault/pkg/storage"
	"gitvault/pkg/types"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

const (
	// 临时文件与最终文件位于同一个 Shard 目录，保证 Rename 不跨文件系统
	tempPattern = "tmp_obj_*"
	tempPrefix  = "tmp_obj_"

	dirPerm    = 0755
	objectPerm = 0444 // 与 git 一致：对象一旦写入就是只读的
)

// Adapter 实现了 storage.Store 接口
// 布局: <root>/<前 2 位>/<后 38 位>
type Adapter struct {
	fs       afero.Fs
	rootPath string // 比如: /home/user/project/.git/objects
}

// NewAdapter 创建一个基于本地文件系统的存储适配器
func NewAdapter(root string) (*Adapter, error) {
	return NewAdapterFs(afero.NewOsFs(), root)
}

// NewAdapterFs 允许注入任意 afero.Fs (测试里用内存文件系统或只读文件系统)
func NewAdapterFs(fsys afero.Fs, root string) (*Adapter, error) {
	// 确保根目录存在
	info, err := fsys.Stat(root)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("object root %s is not a directory", root)
	case err != nil:
		if err := fsys.MkdirAll(root, dirPerm); err != nil {
			return nil, fmt.Errorf("failed to create root storage dir: %w", err)
		}
	}
	return &Adapter{fs: fsys, rootPath: root}, nil
}

// Root 返回对象根目录
func (s *Adapter) Root() string { return s.rootPath }

// layout 返回哈希对应的物理路径
// Example: hash "3b18e5..." -> root/3b/18e5...
func (s *Adapter) layout(hash types.Hash) string {
	dir, file := hash.Shard()
	return filepath.Join(s.rootPath, dir, file)
}

func (s *Adapter) Put(ctx context.Context, obj *core.Sealed) error {
	hash := obj.ID()
	if !hash.IsValid() {
		return fmt.Errorf("%w: %q", storage.ErrInvalidHash, hash)
	}

	// 1. 准备 Shard 目录
	dir, _ := hash.Shard()
	shardDir := filepath.Join(s.rootPath, dir)
	if err := s.ensureShard(shardDir); err != nil {
		return err
	}

	// 2. 原子写入 (临时文件 -> Sync -> Rename)
	// 这样外部观察者要么看不到文件，要么看到完整的文件。
	// 同一地址的重复写入只是用相同的内容覆盖，不会出现截断的中间状态。
	targetPath := s.layout(hash)
	if err := s.writeAtomic(shardDir, targetPath, obj.Bytes()); err != nil {
		return err
	}

	slog.Debug("object stored",
		slog.String("hash", hash.String()),
		slog.Int("bytes", len(obj.Bytes())),
	)
	return nil
}

// ensureShard 创建 Shard 目录
// 只容忍 “已存在” (并发写入者抢先创建了它)，其他错误 (比如权限不足) 一律上抛
func (s *Adapter) ensureShard(dir string) error {
	err := s.fs.Mkdir(dir, dirPerm)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return nil
	}
	return fmt.Errorf("failed to create shard dir %s: %w", dir, err)
}

func (s *Adapter) writeAtomic(dir, targetPath string, data []byte) (err error) {
	tmp, err := afero.TempFile(s.fs, dir, tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// 任何一步失败都要清理临时文件
	defer func() {
		if err == nil {
			return
		}
		if rmErr := s.fs.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			err = multierror.Append(err, fmt.Errorf("failed to remove temp file %s: %w", tmpName, rmErr))
		}
	}()

	if _, werr := tmp.Write(data); werr != nil {
		return multierror.Append(fmt.Errorf("failed to write temp file: %w", werr), tmp.Close())
	}
	if serr := tmp.Sync(); serr != nil {
		return multierror.Append(fmt.Errorf("failed to sync temp file: %w", serr), tmp.Close())
	}
	// 必须先关闭才能 Rename
	if cerr := tmp.Close(); cerr != nil {
		return fmt.Errorf("failed to close temp file: %w", cerr)
	}
	if cerr := s.fs.Chmod(tmpName, objectPerm); cerr != nil {
		return fmt.Errorf("failed to chmod temp file: %w", cerr)
	}

	// 移动到最终位置
	if rerr := s.fs.Rename(tmpName, targetPath); rerr != nil {
		return fmt.Errorf("failed to rename %s -> %s: %w", tmpName, targetPath, rerr)
	}
	return nil
}

func (s *Adapter) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	if !hash.IsValid() {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidHash, hash)
	}

	f, err := s.fs.Open(s.layout(hash))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if !hash.IsValid() {
		return false, nil
	}

	_, err := s.fs.Stat(s.layout(hash))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ExpandHash 在对应的 Shard 目录里扫描前缀
func (s *Adapter) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	if err := storage.ValidatePrefix(prefix); err != nil {
		return "", err
	}
	input := prefix.String()
	dir, rest := input[:2], input[2:]

	entries, err := afero.ReadDir(s.fs, filepath.Join(s.rootPath, dir))
	if errors.Is(err, fs.ErrNotExist) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	var found []types.Hash
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tempPrefix) {
			continue
		}
		if strings.HasPrefix(name, rest) {
			found = append(found, types.Hash(dir+name))
		}
	}

	switch len(found) {
	case 0:
		return "", storage.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d objects", storage.ErrAmbiguousHash, input, len(found))
	}
}

// Walk 按地址顺序遍历所有已存储的对象
// 会跳过 info/、pack/ 以及遗留的临时文件
func (s *Adapter) Walk(ctx context.Context, fn func(types.Hash) error) error {
	shards, err := afero.ReadDir(s.fs, s.rootPath)
	if err != nil {
		return err
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i].Name() < shards[j].Name() })

	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		entries, err := afero.ReadDir(s.fs, filepath.Join(s.rootPath, shard.Name()))
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			h := types.Hash(shard.Name() + e.Name())
			if e.IsDir() || !h.IsValid() {
				continue
			}
			if err := fn(h); err != nil {
				return err
			}
		}
	}
	return nil
}

package catalog

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"gitvault/pkg/core"
	"gitvault/pkg/storage"
	"gitvault/pkg/types"

	"github.com/hashicorp/go-multierror"
)

// IndexedStore 装饰一个 storage.Store，在写入成功后登记到目录
type IndexedStore struct {
	backend storage.Store
	repo    *Repository
}

var _ storage.Store = (*IndexedStore)(nil)

func NewIndexedStore(backend storage.Store, repo *Repository) *IndexedStore {
	return &IndexedStore{backend: backend, repo: repo}
}

// Put 先落对象库，再记目录
// 对象库才是事实来源：对象落盘之后目录登记失败只记 Warn，不向调用方报错，
// 否则调用方会把一个已经持久化的对象当成丢失。
func (s *IndexedStore) Put(ctx context.Context, obj *core.Sealed) error {
	if err := s.backend.Put(ctx, obj); err != nil {
		return err
	}
	if err := s.record(ctx, obj); err != nil {
		slog.Warn("object stored but catalog record failed",
			slog.String("hash", obj.ID().String()),
			slog.String("err", err.Error()),
		)
	}
	return nil
}

func (s *IndexedStore) record(ctx context.Context, obj *core.Sealed) error {
	info, payload, err := core.OpenObject(bytes.NewReader(obj.Bytes()))
	if err != nil {
		return err
	}
	payload.Close()

	return s.repo.Record(ctx, &ObjectRecord{
		Hash:       obj.ID().String(),
		Type:       info.Type,
		Size:       info.Size,
		StoredSize: int64(len(obj.Bytes())),
	})
}

func (s *IndexedStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	return s.backend.Get(ctx, hash)
}

func (s *IndexedStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	return s.backend.Has(ctx, hash)
}

func (s *IndexedStore) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	return s.backend.ExpandHash(ctx, prefix)
}

func (s *IndexedStore) Unwrap() storage.Store {
	return s.backend
}

// Close 关闭目录连接，以及实现了 io.Closer 的后端
func (s *IndexedStore) Close() error {
	var result *multierror.Error
	if c, ok := s.backend.(io.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := s.repo.db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Repository 暴露目录查询
func (s *IndexedStore) Repository() *Repository {
	return s.repo
}

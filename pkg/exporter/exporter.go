package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"gitvault/pkg/core"
	"gitvault/pkg/storage"
	"gitvault/pkg/types"
)

// Exporter 把对象库里的对象还原给人或管道看
type Exporter struct {
	store storage.Store
}

func NewExporter(store storage.Store) *Exporter {
	return &Exporter{store: store}
}

// Resolve 接受完整哈希或短哈希，返回完整地址
func (e *Exporter) Resolve(ctx context.Context, ref string) (types.Hash, error) {
	if h := types.Hash(ref); h.IsValid() {
		return h, nil
	}
	prefix := types.HashPrefix(ref)
	if err := storage.ValidatePrefix(prefix); err != nil {
		return "", err
	}
	return e.store.ExpandHash(ctx, prefix)
}

// ExportFile 把对象的负载原样流式写入 writer (不含头部)
func (e *Exporter) ExportFile(ctx context.Context, hash types.Hash, writer io.Writer) (types.ObjectInfo, error) {
	rc, err := e.store.Get(ctx, hash)
	if err != nil {
		return types.ObjectInfo{}, err
	}
	defer rc.Close()

	info, payload, err := core.OpenObject(rc)
	if err != nil {
		return types.ObjectInfo{}, fmt.Errorf("failed to open %s: %w", hash, err)
	}
	defer payload.Close()

	n, err := io.Copy(writer, payload)
	if err != nil {
		return info, fmt.Errorf("failed to export %s: %w", hash, err)
	}
	if n != info.Size {
		return info, fmt.Errorf("%s: %w (header %d, got %d)", hash, core.ErrSizeMismatch, info.Size, n)
	}
	return info, nil
}

// PrintObject 按类型美化输出 (cat-file -p)
// tree 解析成 ls-tree 的格式，其余类型本身就是文本或原始数据，直接输出
func (e *Exporter) PrintObject(ctx context.Context, hash types.Hash, writer io.Writer) error {
	info, payload, err := storage.ReadObject(ctx, e.store, hash)
	if err != nil {
		return err
	}

	if info.Type == core.TypeTree.String() {
		return printTree(payload, writer)
	}
	_, err = io.Copy(writer, bytes.NewReader(payload))
	return err
}

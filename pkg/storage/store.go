package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gitvault/pkg/core"
	"gitvault/pkg/types"
)

var (
	ErrNotFound        = errors.New("object not found")
	ErrAmbiguousHash   = errors.New("ambiguous hash prefix")
	ErrPrefixTooShort  = errors.New("hash prefix too short")
	ErrInvalidHash     = errors.New("invalid object hash")
	ErrWalkUnsupported = errors.New("store does not support listing objects")
)

// MinPrefixLen 是短哈希的最小长度 (与 git 一致)
const MinPrefixLen = 4

// Store defines the interface for a storage backend.
// Implementations can be local disk, cloud storage, or a caching decorator.
type Store interface {
	// Put 将一个已密封的对象持久化到它的地址上
	// 同一地址重复写入是无害的 (内容相同)
	Put(ctx context.Context, obj *core.Sealed) error

	// Get 根据 Hash 读取压缩后的 Loose Object
	// 注意：这里返回的是 io.ReadCloser 而不是 []byte，调用方负责关闭
	Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error)

	// Has 检查对象是否存在
	Has(ctx context.Context, hash types.Hash) (bool, error)

	// ExpandHash 把短哈希扩展成完整地址
	ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error)
}

// Write 是对象写入的完整流程：
//  1. 创建新的 Accumulator，让对象把自己序列化进去
//  2. 得到摘要和压缩数据 (此时磁盘还没有被触碰，失败不会留下任何东西)
//  3. 交给 Store 按地址落盘
func Write[O core.Object](ctx context.Context, s Store, obj O) (types.Hash, error) {
	sealed, err := core.Seal(obj)
	if err != nil {
		return "", err
	}
	if err := s.Put(ctx, sealed); err != nil {
		return "", fmt.Errorf("failed to store object %s: %w", sealed.ID(), err)
	}
	return sealed.ID(), nil
}

// ReadObject 读取并解码一个对象，返回头部信息和 payload
func ReadObject(ctx context.Context, s Store, hash types.Hash) (types.ObjectInfo, []byte, error) {
	rc, err := s.Get(ctx, hash)
	if err != nil {
		return types.ObjectInfo{}, nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return types.ObjectInfo{}, nil, fmt.Errorf("failed to read object %s: %w", hash, err)
	}
	info, payload, err := core.DecodeObject(data)
	if err != nil {
		return types.ObjectInfo{}, nil, fmt.Errorf("object %s is corrupted: %w", hash, err)
	}
	return info, payload, nil
}

// StatObject 只解压头部，返回类型和大小
func StatObject(ctx context.Context, s Store, hash types.Hash) (types.ObjectInfo, error) {
	rc, err := s.Get(ctx, hash)
	if err != nil {
		return types.ObjectInfo{}, err
	}
	defer rc.Close()

	info, payload, err := core.OpenObject(rc)
	if err != nil {
		return types.ObjectInfo{}, fmt.Errorf("object %s is corrupted: %w", hash, err)
	}
	payload.Close()
	return info, nil
}

// VerifyObject 重新计算已存储对象的地址
func VerifyObject(ctx context.Context, s Store, hash types.Hash) error {
	rc, err := s.Get(ctx, hash)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", hash, err)
	}
	return core.Verify(hash, data)
}

// ValidatePrefix 校验短哈希的长度与字符集
func ValidatePrefix(prefix types.HashPrefix) error {
	s := prefix.String()
	if len(s) < MinPrefixLen {
		return ErrPrefixTooShort
	}
	if len(s) > types.HashLen {
		return fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%w: %q", ErrInvalidHash, s)
		}
	}
	return nil
}

// Walker 是能枚举全部对象的 Store (目前只有本地磁盘)
type Walker interface {
	Walk(ctx context.Context, fn func(types.Hash) error) error
}

// Wrapper 由装饰器实现，返回被装饰的 Store
type Wrapper interface {
	Unwrap() Store
}

// Walk 沿装饰链向下找到第一个 Walker 并遍历
func Walk(ctx context.Context, s Store, fn func(types.Hash) error) error {
	for s != nil {
		if w, ok := s.(Walker); ok {
			return w.Walk(ctx, fn)
		}
		u, ok := s.(Wrapper)
		if !ok {
			break
		}
		s = u.Unwrap()
	}
	return ErrWalkUnsupported
}

package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gitvault/pkg/core"
	"gitvault/pkg/storage"
	"gitvault/pkg/types"

	"github.com/redis/go-redis/v9"
)

// keyPrefix 与仓库里其他用途的 key 隔开
const keyPrefix = "gv:obj:"

const (
	defaultPingTimeout = 3 * time.Second
	fillTimeout        = 2 * time.Second
)

// CachedStore 为底层 Store 记住 "某地址已存在"
// 地址一旦存在就永远存在，所以缓存只可能漏报，不会误报。
type CachedStore struct {
	backend storage.Store
	client  *redis.Client
	ttl     time.Duration

	// fills 跟踪 Has 发起的异步回填，Close 前必须等它们结束
	fills sync.WaitGroup
}

var _ storage.Store = (*CachedStore)(nil)

type Config struct {
	// RedisURL 形如 redis://<user>:<password>@<host>:<port>/<db>
	RedisURL string
	// TTL 为 0 表示不过期
	TTL time.Duration
	// PingTimeout 为 0 时取 3s
	PingTimeout time.Duration
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{backend: backend, client: client, ttl: cfg.TTL}, nil
}

func (s *CachedStore) cacheKey(hash types.Hash) string {
	return keyPrefix + hash.String()
}

// cached 只在 Redis 明确命中时返回 true；Redis 故障按未命中处理
func (s *CachedStore) cached(ctx context.Context, hash types.Hash) bool {
	n, err := s.client.Exists(ctx, s.cacheKey(hash)).Result()
	if err != nil {
		slog.Warn("redis exists failed, falling back to backend",
			slog.String("hash", hash.String()),
			slog.String("err", err.Error()),
		)
		return false
	}
	return n > 0
}

// remember 写入存在性标记；失败只记日志
func (s *CachedStore) remember(ctx context.Context, hash types.Hash) {
	if err := s.client.Set(ctx, s.cacheKey(hash), "1", s.ttl).Err(); err != nil {
		slog.Warn("redis set failed",
			slog.String("hash", hash.String()),
			slog.String("err", err.Error()),
		)
	}
}

func (s *CachedStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if s.cached(ctx, hash) {
		return true, nil
	}

	found, err := s.backend.Has(ctx, hash)
	if err != nil || !found {
		return found, err
	}

	// 回填不阻塞调用方，也不受调用方 ctx 取消的影响
	s.fills.Add(1)
	go func() {
		defer s.fills.Done()
		fillCtx, cancel := context.WithTimeout(context.Background(), fillTimeout)
		defer cancel()
		s.remember(fillCtx, hash)
	}()
	return true, nil
}

// Put 已知存在的对象直接跳过，其余写穿到后端后再标记
func (s *CachedStore) Put(ctx context.Context, obj *core.Sealed) error {
	exists, err := s.Has(ctx, obj.ID())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.backend.Put(ctx, obj); err != nil {
		return err
	}
	s.remember(ctx, obj.ID())
	return nil
}

// Get 透传 - 我们不缓存对象数据，只缓存存在性
func (s *CachedStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	return s.backend.Get(ctx, hash)
}

// ExpandHash 透传
func (s *CachedStore) ExpandHash(ctx context.Context, short types.HashPrefix) (types.Hash, error) {
	return s.backend.ExpandHash(ctx, short)
}

// Unwrap 返回底层存储
func (s *CachedStore) Unwrap() storage.Store {
	return s.backend
}

// Close 等待未完成的回填，然后关闭 Redis 连接
func (s *CachedStore) Close() error {
	s.fills.Wait()
	return s.client.Close()
}

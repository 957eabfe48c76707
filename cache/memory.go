package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"

	"github.com/ceyewan/aegis/xerrors"
)

// defaultRetention 未指定 TTL 时的保留时间（100 年，模拟永久）
const defaultRetention = 24 * 365 * 100 * time.Hour

// memoryStore 基于 otter 的单机内存存储
type memoryStore struct {
	cache *otter.Cache[string, *Entry]
}

func newMemoryStore(capacity int) (Store, error) {
	opts := &otter.Options[string, *Entry]{
		MaximumSize:   capacity,
		StatsRecorder: stats.NewCounter(),
		// 使用写入过期策略（与 Redis TTL 语义一致）：
		// - 过期时间从写入开始计算
		// - 读取不会重置 TTL
		// 具体 TTL 将在 Set 时通过 SetExpiresAfter 覆盖
		ExpiryCalculator: otter.ExpiryWriting[string, *Entry](defaultRetention),
	}

	cache, err := otter.New(opts)
	if err != nil {
		return nil, xerrors.Wrap(err, "cache: failed to build otter cache")
	}

	return &memoryStore{cache: cache}, nil
}

func (s *memoryStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	entry, ok := s.cache.GetIfPresent(key)
	if !ok {
		return nil, false, nil
	}
	return entry, true, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	s.cache.Set(key, entry)
	if ttl > 0 {
		s.cache.SetExpiresAfter(key, ttl)
	}
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.cache.Invalidate(key)
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}

package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/aegis/xerrors"
)

// redisStore 基于 Redis + MessagePack 的分布式存储。
// 条目以 MessagePack 信封存储，保留时长由 Redis key TTL 控制。
type redisStore struct {
	client *redis.Client
	prefix string
}

func newRedisStore(client *redis.Client, prefix string) Store {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *redisStore) fullKey(key string) string {
	return s.prefix + key
}

func (s *redisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if err != nil {
		if xerrors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, xerrors.Wrap(err, "cache: redis get")
	}

	var entry Entry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return nil, false, xerrors.Wrap(err, "cache: unmarshal entry")
	}
	return &entry, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return xerrors.Wrap(err, "cache: marshal entry")
	}

	if err := s.client.Set(ctx, s.fullKey(key), data, ttl).Err(); err != nil {
		return xerrors.Wrap(err, "cache: redis set")
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return xerrors.Wrap(err, "cache: redis del")
	}
	return nil
}

func (s *redisStore) Close() error {
	// 连接由 Connector 管理
	return nil
}

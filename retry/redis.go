package retry

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/aegis/xerrors"
)

// settleScript 校验现有记录的令牌后落定。
// 记录以 MessagePack map 编码，令牌在字段 "t" 中，
// cmsgpack 解包后在脚本内比较，校验与写入原子完成。
//
// KEYS[1]: 记录键
// ARGV[1]: 抢占令牌
// ARGV[2]: 落定记录（MessagePack）
// ARGV[3]: 保留时长（毫秒）
// 返回: 1 落定成功；0 记录不存在或令牌不匹配
const settleScript = `
local cur = redis.call('GET', KEYS[1])
if not cur then
    return 0
end
local ok, rec = pcall(cmsgpack.unpack, cur)
if not ok or rec['t'] ~= ARGV[1] then
    return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`

// releaseScript 校验令牌后删除记录。
//
// KEYS[1]: 记录键
// ARGV[1]: 抢占令牌
// 返回: 1 已删除；0 记录不存在或令牌不匹配
const releaseScript = `
local cur = redis.call('GET', KEYS[1])
if not cur then
    return 0
end
local ok, rec = pcall(cmsgpack.unpack, cur)
if not ok or rec['t'] ~= ARGV[1] then
    return 0
end
return redis.call('DEL', KEYS[1])
`

// redisStore 基于 Redis + MessagePack 的分布式存储。
// Claim 使用 SETNX 原子抢占，pending 记录对所有进程可见，
// 这是跨进程"至多一次执行"的正确性来源。
type redisStore struct {
	client  *redis.Client
	prefix  string
	settle  *redis.Script
	release *redis.Script
}

func newRedisStore(client *redis.Client, prefix string) Store {
	return &redisStore{
		client:  client,
		prefix:  prefix,
		settle:  redis.NewScript(settleScript),
		release: redis.NewScript(releaseScript),
	}
}

func (s *redisStore) fullKey(key string) string {
	return s.prefix + key
}

func (s *redisStore) Claim(ctx context.Context, key string, rec *Record, ttl time.Duration) (bool, *Record, error) {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return false, nil, xerrors.Wrap(err, "retry: marshal record")
	}

	claimed, err := s.client.SetNX(ctx, s.fullKey(key), data, ttl).Result()
	if err != nil {
		return false, nil, xerrors.Wrap(err, "retry: redis setnx")
	}
	if claimed {
		return true, nil, nil
	}

	// 抢占失败，读取现有记录；SETNX 与 GET 之间记录可能恰好过期，
	// 此时按不存在处理，由调用方重新进入抢占流程
	existing, found, err := s.Get(ctx, key)
	if err != nil {
		return false, nil, err
	}
	if !found {
		return false, nil, nil
	}
	return false, existing, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (*Record, bool, error) {
	data, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if err != nil {
		if xerrors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, xerrors.Wrap(err, "retry: redis get")
	}

	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, false, xerrors.Wrap(err, "retry: unmarshal record")
	}
	return &rec, true, nil
}

func (s *redisStore) Settle(ctx context.Context, key string, token string, rec *Record, ttl time.Duration) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return xerrors.Wrap(err, "retry: marshal record")
	}

	settled, err := s.settle.Run(ctx, s.client,
		[]string{s.fullKey(key)}, token, data, ttl.Milliseconds()).Int()
	if err != nil {
		return xerrors.Wrap(err, "retry: redis settle script")
	}
	if settled == 0 {
		return ErrClaimLost
	}
	return nil
}

func (s *redisStore) Release(ctx context.Context, key string, token string) error {
	if err := s.release.Run(ctx, s.client,
		[]string{s.fullKey(key)}, token).Err(); err != nil {
		return xerrors.Wrap(err, "retry: redis release script")
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return xerrors.Wrap(err, "retry: redis del")
	}
	return nil
}

func (s *redisStore) Close() error {
	// 连接由 Connector 管理
	return nil
}

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/connector"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/xerrors"
)

// luaScript 令牌桶算法的纯时间戳实现 (Token Bucket with Timestamp)
//
// KEYS[1]: per-key 桶的键
// KEYS[2]: 全局桶的键（可选）
// ARGV[1]: per-key 速率 (每秒令牌数)
// ARGV[2]: per-key 桶容量
// ARGV[3]: 当前时间戳 (浮点数，秒.毫秒)
// ARGV[4]: 本次请求需要消耗的令牌数
// ARGV[5]: 全局速率（无全局桶时为 0）
// ARGV[6]: 全局桶容量
//
// 返回 {allowed, retry_after_ms}：allowed 为 1/0；被拒绝时
// retry_after_ms 是预计需要等待的毫秒数（两个桶中较大者）。
// 两个桶的检查与提交在同一脚本内完成，任一拒绝则都不扣减。
const luaScript = `
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])
local grate = tonumber(ARGV[5])
local gcapacity = tonumber(ARGV[6])

local function check(key, rate, capacity)
  local interval_per_token = 1 / rate
  local fill_time = capacity * interval_per_token

  local last_refreshed = tonumber(redis.call("GET", key))
  if last_refreshed == nil then
    last_refreshed = now
  end

  local next_available_time = math.max(last_refreshed, now)
  local new_refreshed = next_available_time + requested * interval_per_token
  local allow_at_most = now + fill_time

  if new_refreshed <= allow_at_most then
    return 0, new_refreshed, fill_time
  end
  return new_refreshed - allow_at_most, new_refreshed, fill_time
end

local wait1, new1, fill1 = check(KEYS[1], rate, capacity)
local wait2 = 0
local new2 = 0
local fill2 = 0
if #KEYS > 1 then
  wait2, new2, fill2 = check(KEYS[2], grate, gcapacity)
end

local wait = math.max(wait1, wait2)
if wait > 0 then
  return {0, math.ceil(wait * 1000)}
end

redis.call("SET", KEYS[1], tostring(new1), "EX", math.ceil(fill1 * 2))
if #KEYS > 1 then
  redis.call("SET", KEYS[2], tostring(new2), "EX", math.ceil(fill2 * 2))
end
return {1, 0}
`

// distributedLimiter 分布式限流器实现（非导出）
type distributedLimiter struct {
	cfg    *DistributedConfig
	client *redis.Client
	logger clog.Logger
	script *redis.Script

	allowedCounter metrics.Counter
	deniedCounter  metrics.Counter
	errorsCounter  metrics.Counter
}

// newDistributed 创建分布式限流器（内部函数）
func newDistributed(
	cfg *DistributedConfig,
	redisConn connector.RedisConnector,
	logger clog.Logger,
	meter metrics.Meter,
) (Limiter, error) {
	l := &distributedLimiter{
		cfg:    cfg,
		client: redisConn.GetClient(),
		logger: logger,
		script: redis.NewScript(luaScript),

		allowedCounter: meter.Counter(MetricAllowed),
		deniedCounter:  meter.Counter(MetricDenied),
		errorsCounter:  meter.Counter(MetricErrors),
	}

	logger.Info("distributed rate limiter created",
		clog.String("prefix", cfg.Prefix),
		clog.Bool("global_bucket", cfg.GlobalLimit != nil))

	return l, nil
}

// Acquire 尝试获取 1 个令牌
func (l *distributedLimiter) Acquire(ctx context.Context, key string, limit Limit) (Decision, error) {
	return l.AcquireN(ctx, key, limit, 1)
}

// AcquireN 尝试获取 N 个令牌
func (l *distributedLimiter) AcquireN(ctx context.Context, key string, limit Limit, n int) (Decision, error) {
	if key == "" {
		return Decision{}, ErrKeyEmpty
	}
	if !limit.valid() || n <= 0 || n > limit.Burst {
		return Decision{}, ErrInvalidLimit
	}

	keys := []string{l.cfg.Prefix + key}
	globalRate, globalBurst := 0.0, 0
	if l.cfg.GlobalLimit != nil {
		if n > l.cfg.GlobalLimit.Burst {
			return Decision{}, ErrInvalidLimit
		}
		keys = append(keys, l.cfg.Prefix+l.cfg.GlobalKey)
		globalRate = l.cfg.GlobalLimit.Rate
		globalBurst = l.cfg.GlobalLimit.Burst
	}

	now := float64(time.Now().UnixNano()) / 1e9

	result, err := l.script.Run(ctx, l.client, keys,
		limit.Rate, limit.Burst, now, n, globalRate, globalBurst).Result()
	if err != nil {
		l.errorsCounter.Inc(ctx, metrics.L(LabelMode, "distributed"))
		l.logger.Error("failed to execute lua script",
			clog.String("key", key),
			clog.Err(err))
		return Decision{}, xerrors.Wrap(err, "ratelimit: execute lua script")
	}

	resultSlice, ok := result.([]any)
	if !ok || len(resultSlice) != 2 {
		return Decision{}, ErrScriptResult
	}

	allowed, ok := resultSlice[0].(int64)
	if !ok {
		return Decision{}, ErrScriptResult
	}

	retryAfterMs, ok := resultSlice[1].(int64)
	if !ok {
		retryAfterMs = 0
	}

	decision := Decision{
		Allowed:    allowed == 1,
		RetryAfter: time.Duration(retryAfterMs) * time.Millisecond,
	}

	if decision.Allowed {
		l.allowedCounter.Inc(ctx, metrics.L(LabelMode, "distributed"))
	} else {
		l.deniedCounter.Inc(ctx, metrics.L(LabelMode, "distributed"))
	}

	l.logger.Debug("rate limit check",
		clog.String("key", key),
		clog.Bool("allowed", decision.Allowed),
		clog.Duration("retry_after", decision.RetryAfter),
		clog.Float64("rate", limit.Rate),
		clog.Int("burst", limit.Burst),
		clog.Int("requested", n))

	return decision, nil
}

// Close 释放资源（分布式连接由 Connector 管理）
func (l *distributedLimiter) Close() error {
	return nil
}

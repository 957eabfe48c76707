package cache

import (
	"time"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/connector"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/ratelimit"
)

// Option 缓存组件选项函数
type Option func(*options)

// options 选项结构（内部使用）
type options struct {
	logger     clog.Logger
	meter      metrics.Meter
	redisConn  connector.RedisConnector
	limiter    ratelimit.Limiter
	breaker    breaker.Breaker
	breakerKey string
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 Namespace: logger.WithNamespace("cache")
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("cache")
		}
	}
}

// WithMeter 注入指标 Meter
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// WithRedisConnector 注入 Redis 连接器 (仅用于分布式模式)
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redisConn = conn
	}
}

// WithLimiter 注入回源限流器，配合 Config.FetchLimit 使用。
// 被限流的回源视为一次失败，可能触发故障降级。
func WithLimiter(l ratelimit.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithBreaker 注入熔断器，回源调用经过熔断保护。
// breakerKey 为空时使用缓存 key 作为熔断键。
func WithBreaker(b breaker.Breaker, breakerKey string) Option {
	return func(o *options) {
		o.breaker = b
		o.breakerKey = breakerKey
	}
}

func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
}

// ========================================
// Get 调用级选项
// ========================================

// GetOption 单次 Get 调用的选项函数
type GetOption func(*getOptions)

type getOptions struct {
	freshTTL time.Duration
	staleTTL time.Duration
}

// WithFreshTTL 覆盖本次调用写入条目的新鲜期
func WithFreshTTL(d time.Duration) GetOption {
	return func(o *getOptions) {
		o.freshTTL = d
	}
}

// WithStaleTTL 覆盖本次调用写入条目的陈旧期
func WithStaleTTL(d time.Duration) GetOption {
	return func(o *getOptions) {
		o.staleTTL = d
	}
}

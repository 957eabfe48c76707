package retry

import (
	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/connector"
	"github.com/ceyewan/aegis/metrics"
)

// Option 幂等重试组件选项函数
type Option func(*options)

// options 选项结构（内部使用）
type options struct {
	logger     clog.Logger
	meter      metrics.Meter
	redisConn  connector.RedisConnector
	breaker    breaker.Breaker
	breakerKey string
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 Namespace: logger.WithNamespace("retry")
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("retry")
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

// WithBreaker 注入熔断器，每次操作尝试经过熔断保护。
// breakerKey 为空时使用幂等键作为熔断键。
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
// Execute 调用级选项
// ========================================

// ExecuteOption 单次 Execute 调用的选项函数
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	policy Policy
}

// WithPolicy 覆盖本次调用的重试策略
func WithPolicy(p Policy) ExecuteOption {
	return func(o *executeOptions) {
		p.setDefaults()
		o.policy = p
	}
}

// ========================================
// 中间件选项
// ========================================

// MiddlewareOption 中间件选项函数
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	headerKey string
}

// WithHeaderKey 自定义幂等键的请求头名称（默认 "X-Idempotency-Key"）
func WithHeaderKey(header string) MiddlewareOption {
	return func(o *middlewareOptions) {
		if header != "" {
			o.headerKey = header
		}
	}
}

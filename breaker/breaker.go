// Package breaker 提供了熔断器组件，专注于上游调用的故障隔离与自动恢复。
//
// breaker 是 Aegis 治理层的核心组件，它提供了：
// - 基于 gobreaker 的熔断器实现
// - Key 级粒度的熔断管理（按上游服务/方法独立熔断）
// - 自动故障隔离和自动恢复（半开状态单探测请求）
// - 可选的单次调用超时：超时视为失败并释放调用者
// - 灵活的降级策略（快速失败或自定义降级逻辑）
// - gRPC Client Interceptor 无侵入集成
//
// ## 基本使用
//
//	brk, _ := breaker.New(&breaker.Config{
//		Timeout:         30 * time.Second,
//		FailureRatio:    0.5,
//		MinimumRequests: 10,
//		CallTimeout:     2 * time.Second,
//	}, breaker.WithLogger(logger))
//
//	result, err := brk.Execute(ctx, "billing", func(ctx context.Context) (any, error) {
//		return client.Charge(ctx, req)
//	})
//	if xerrors.Is(err, breaker.ErrOpenState) {
//		// 熔断中，快速失败
//	}
//
// ## 降级策略
//
//	brk, _ := breaker.New(cfg,
//		breaker.WithFallback(func(ctx context.Context, key string, err error) (any, error) {
//			// 返回缓存数据或默认值
//			return cached, nil
//		}),
//	)
//
// ## gRPC 集成
//
//	conn, _ := grpc.NewClient("localhost:9001",
//		grpc.WithUnaryInterceptor(brk.UnaryClientInterceptor()),
//	)
package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/clog"

	"google.golang.org/grpc"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Breaker 熔断器核心接口
type Breaker interface {
	// Execute 执行受熔断保护的函数
	// key: 熔断键（可以是服务名、后端地址、方法名等）
	// fn: 要执行的函数，应响应传入的 ctx
	// 熔断打开时不调用 fn，直接返回 ErrOpenState（或降级结果）；
	// 配置了 CallTimeout 时，超时的调用返回 ErrTimeout 并计为失败。
	Execute(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error)

	// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
	// 支持 InterceptorOption 配置 Key 生成策略
	UnaryClientInterceptor(opts ...InterceptorOption) grpc.UnaryClientInterceptor

	// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器，
	// 熔断仅保护建流阶段
	StreamClientInterceptor(opts ...InterceptorOption) grpc.StreamClientInterceptor

	// State 获取指定键的熔断器状态
	State(key string) (State, error)
}

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 熔断器配置
type Config struct {
	// MaxRequests 半开状态下允许通过的最大请求数（默认：1）
	// 默认只放行一个探测请求，其余请求按熔断打开处理
	MaxRequests uint32 `json:"max_requests" yaml:"max_requests"`

	// Interval 闭合状态下的统计周期（默认：0，不清空统计）
	// 设置后会定期清空计数器
	Interval time.Duration `json:"interval" yaml:"interval"`

	// Timeout 打开状态持续时间（默认：30s）
	// 超时后进入半开状态进行探测
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// FailureRatio 失败率阈值（默认：0.5，即 50%）
	// 当失败率达到此值时触发熔断
	FailureRatio float64 `json:"failure_ratio" yaml:"failure_ratio"`

	// MinimumRequests 触发熔断的最小请求数（默认：10）
	// 统计周期内请求数少于此值时不会触发熔断
	MinimumRequests uint32 `json:"minimum_requests" yaml:"minimum_requests"`

	// CallTimeout 单次调用超时（默认：0，不限制）
	// 超时的调用立即向调用者返回 ErrTimeout 并计为一次失败；
	// fn 的 goroutine 会收到 ctx 取消信号，但不会被强制终止。
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`
}

func (c *Config) setDefaults() {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.5
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.FailureRatio < 0 || c.FailureRatio > 1 {
		return ErrInvalidConfig
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建熔断器实例
//
// 参数:
//   - cfg: 熔断器配置，nil 时使用默认值
//   - opts: 可选参数 (Logger, Meter, Fallback)
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	opt.applyDefaults()

	logger := opt.logger.With(clog.String("component", "breaker"))
	logger.Info("creating circuit breaker",
		clog.Int("max_requests", int(cfg.MaxRequests)),
		clog.Duration("interval", cfg.Interval),
		clog.Duration("timeout", cfg.Timeout),
		clog.Float64("failure_ratio", cfg.FailureRatio),
		clog.Int("minimum_requests", int(cfg.MinimumRequests)),
		clog.Duration("call_timeout", cfg.CallTimeout))

	return newBreaker(cfg, logger, opt.meter, opt.fallback)
}

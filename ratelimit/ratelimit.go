// Package ratelimit 提供了限流组件，支持单机和分布式两种模式。
//
// ratelimit 是 Aegis 治理层的入口组件，它提供了：
// - 统一的 Limiter 接口，屏蔽单机和分布式差异
// - 单机模式：基于 golang.org/x/time/rate 的内存令牌桶
// - 分布式模式：基于 Redis + Lua 的分布式令牌桶
// - 拒绝时返回 RetryAfter 重试提示，便于上游退避
// - 可选全局桶：请求必须同时通过 per-key 桶与全局桶
// - 开箱即用的 Gin 中间件（429 + Retry-After 响应头）
//
// ## 基本使用
//
//	limiter, _ := ratelimit.NewStandalone(&ratelimit.StandaloneConfig{},
//	    ratelimit.WithLogger(logger))
//	defer limiter.Close()
//
//	decision, _ := limiter.Acquire(ctx, "user:123", ratelimit.Limit{Rate: 10, Burst: 20})
//	if !decision.Allowed {
//	    // decision.RetryAfter 是预计下一次可成功获取令牌的等待时间
//	    return fmt.Errorf("rate limited, retry after %v", decision.RetryAfter)
//	}
//
// ## 分布式模式
//
//	redisConn, _ := connector.NewRedis(&cfg.Redis, connector.WithLogger(logger))
//	defer redisConn.Close()
//
//	limiter, _ := ratelimit.NewDistributed(redisConn, &ratelimit.DistributedConfig{
//	    Prefix: "myapp:ratelimit:",
//	}, ratelimit.WithLogger(logger))
//
// ## Gin 中间件
//
//	r := gin.New()
//	r.Use(ratelimit.GinMiddleware(limiter, nil, func(c *gin.Context) ratelimit.Limit {
//	    return ratelimit.Limit{Rate: 100, Burst: 200}
//	}))
package ratelimit

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/connector"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Limit 定义限流规则（令牌桶算法）
type Limit struct {
	Rate  float64 // 令牌生成速率（每秒生成多少个令牌）
	Burst int     // 令牌桶容量（突发最大请求数）
}

func (l Limit) valid() bool {
	return l.Rate > 0 && l.Burst > 0
}

// Decision 限流决策结果
type Decision struct {
	// Allowed 是否允许请求
	Allowed bool
	// RetryAfter 被拒绝时预计需要等待的时间；允许时为 0。
	// 该值是基于当前桶状态的估计，并发竞争下不构成预约。
	RetryAfter time.Duration
}

// Limiter 限流器核心接口
type Limiter interface {
	// Acquire 尝试获取 1 个令牌（非阻塞）
	// key: 限流标识（如 IP, UserID, ServiceName）
	// limit: 限流规则
	// 返回: Decision（是否允许及重试提示）, error（系统错误）
	Acquire(ctx context.Context, key string, limit Limit) (Decision, error)

	// AcquireN 尝试获取 N 个令牌（非阻塞）
	// n 超过桶容量时永远无法满足，返回 ErrInvalidLimit
	AcquireN(ctx context.Context, key string, limit Limit, n int) (Decision, error)

	// Close 释放限流器持有的资源
	Close() error
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// StandaloneConfig 单机限流配置
type StandaloneConfig struct {
	// CleanupInterval 清理空闲限流器的间隔（默认：1 分钟）
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`

	// IdleTimeout 限流器空闲超时时间（默认：5 分钟）
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// GlobalLimit 可选的全局桶。设置后请求必须同时通过
	// per-key 桶与全局桶；两者都拒绝时返回较大的重试提示。
	GlobalLimit *Limit `json:"global_limit" yaml:"global_limit"`
}

func (c *StandaloneConfig) setDefaults() {
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

func (c *StandaloneConfig) validate() error {
	c.setDefaults()
	if c.GlobalLimit != nil && !c.GlobalLimit.valid() {
		return ErrInvalidLimit
	}
	return nil
}

// DistributedConfig 分布式限流配置
type DistributedConfig struct {
	// Prefix Redis Key 前缀（默认："ratelimit:"）
	Prefix string `json:"prefix" yaml:"prefix"`

	// GlobalLimit 可选的全局桶，语义与单机模式一致。
	// 全局桶与 per-key 桶在同一个 Lua 脚本中检查，保证原子性。
	GlobalLimit *Limit `json:"global_limit" yaml:"global_limit"`

	// GlobalKey 全局桶使用的 Redis Key 后缀（默认："__global__"）
	GlobalKey string `json:"global_key" yaml:"global_key"`
}

func (c *DistributedConfig) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = "ratelimit:"
	}
	if c.GlobalKey == "" {
		c.GlobalKey = "__global__"
	}
}

func (c *DistributedConfig) validate() error {
	c.setDefaults()
	if c.GlobalLimit != nil && !c.GlobalLimit.valid() {
		return ErrInvalidLimit
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// NewStandalone 创建单机限流器
//
// 参数:
//   - cfg: 单机限流配置，nil 时使用默认值
//   - opts: 可选参数 (Logger, Meter)
func NewStandalone(cfg *StandaloneConfig, opts ...Option) (Limiter, error) {
	if cfg == nil {
		cfg = &StandaloneConfig{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	opt.applyDefaults()

	logger := opt.logger.With(clog.String("component", "ratelimit"))
	logger.Info("creating standalone rate limiter")

	return newStandalone(cfg, logger, opt.meter)
}

// NewDistributed 创建分布式限流器
//
// 参数:
//   - redisConn: Redis 连接器
//   - cfg: 分布式限流配置，nil 时使用默认值
//   - opts: 可选参数 (Logger, Meter)
func NewDistributed(redisConn connector.RedisConnector, cfg *DistributedConfig, opts ...Option) (Limiter, error) {
	if redisConn == nil {
		return nil, ErrConnectorNil
	}

	if cfg == nil {
		cfg = &DistributedConfig{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	opt.applyDefaults()

	logger := opt.logger.With(clog.String("component", "ratelimit"))
	logger.Info("creating distributed rate limiter")

	return newDistributed(cfg, redisConn, logger, opt.meter)
}

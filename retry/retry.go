// Package retry 提供幂等重试编排组件，保证同一幂等键的操作
// 至多产生一次可观测副作用。
//
// retry 是 Aegis 治理层的出口组件，它提供了：
// - 统一的 Orchestrator 接口：Execute 按幂等键执行操作并缓存结果
// - 重试策略：指数退避 + 抖动，可配置重试谓词区分瞬时与永久错误
// - 记录三态：pending（执行中）、completed（结果回放）、failed（拒绝重跑）
// - 跨进程正确性：分布式模式通过 Redis SETNX 原子抢占，pending 记录
//   对其他进程可见，等待方轮询记录直至落定
// - Gin 中间件：按 X-Idempotency-Key 回放缓存的 JSON 响应
// - 后端可配置：支持 Redis / Memory
//
// ## 基本使用
//
//	orch, _ := retry.New(&retry.Config{
//	    Mode:      "distributed",
//	    Prefix:    "myapp:retry:",
//	    RecordTTL: 24 * time.Hour,
//	}, retry.WithRedisConnector(redisConn), retry.WithLogger(logger))
//
//	result, err := orch.Execute(ctx, "order:create:12345", func(ctx context.Context) (any, error) {
//	    return createOrder(ctx, req)
//	})
//
// ## Gin 中间件
//
//	r := gin.Default()
//	r.POST("/orders", orch.GinMiddleware(), createOrderHandler)
//
// ## 与熔断器组合
//
//	orch, _ := retry.New(cfg, retry.WithBreaker(brk, "billing"))
package retry

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Operation 业务操作函数，同一幂等键下至多被调用一轮（含重试）
type Operation func(ctx context.Context) (any, error)

// Orchestrator 幂等重试编排核心接口
type Orchestrator interface {
	// Execute 按幂等键执行操作：
	//   - 首个调用方抢占 key（pending 记录，TTL = LockTTL），在重试
	//     策略（及注入的熔断器）下执行 op，结果落定为 completed/failed
	//   - key 为 pending：不重新执行 op，轮询存储直至落定并返回同一结果
	//   - key 为 completed：回放已存储的结果
	//   - key 为 failed：返回 ErrRecordFailed（包装原始错误信息），
	//     在记录过期或被 Clear 前永不重跑
	Execute(ctx context.Context, key string, op Operation, opts ...ExecuteOption) (any, error)

	// Clear 提前删除 key 的记录，用于问题修复后对 failed 键重试
	Clear(ctx context.Context, key string) error

	// GinMiddleware 创建 Gin 幂等中间件，从 X-Idempotency-Key 请求头
	// 提取幂等键，重复请求回放缓存的 JSON 响应
	GinMiddleware(opts ...MiddlewareOption) gin.HandlerFunc

	// Close 释放存储资源
	Close() error
}

// ========================================
// 记录定义 (Record)
// ========================================

// Status 记录状态
type Status string

const (
	// StatusPending 操作执行中，等待方轮询直至落定
	StatusPending Status = "pending"

	// StatusCompleted 操作成功，结果可回放
	StatusCompleted Status = "completed"

	// StatusFailed 操作以终态失败，不再重跑
	StatusFailed Status = "failed"
)

// Record 幂等记录。每个 key 至多存在一条记录，
// pending 记录的保留时长为 LockTTL，落定后为 RecordTTL。
type Record struct {
	// Status 记录状态
	Status Status `msgpack:"s"`

	// Result 成功时的操作结果（分布式模式需可被 MessagePack 序列化）
	Result any `msgpack:"r"`

	// ErrMsg 失败时的错误信息
	ErrMsg string `msgpack:"e"`

	// ResultHash 结果的 SHA-256 摘要（十六进制），用于回放校验
	ResultHash string `msgpack:"h"`

	// Attempts 实际执行的尝试次数
	Attempts int `msgpack:"a"`

	// Token 抢占方的唯一令牌，落定与释放时在存储内校验，
	// pending 过期后被他方重新抢占的 key 不会被原抢占方覆盖
	Token string `msgpack:"t"`

	// CreatedAt 记录创建时间
	CreatedAt time.Time `msgpack:"c"`
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Policy 重试策略
type Policy struct {
	// MaxAttempts 最大尝试次数，含首次（默认：3）
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BackoffBase 首次重试前的基础退避时长（默认：100ms）
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`

	// BackoffMax 单次退避时长上限（默认：5s）
	BackoffMax time.Duration `json:"backoff_max" yaml:"backoff_max"`

	// Multiplier 退避倍增因子（默认：2.0）
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`

	// Jitter 抖动比例 [0, 1]，在退避时长上附加随机量（默认：0.2）
	Jitter float64 `json:"jitter" yaml:"jitter"`

	// RetryIf 重试谓词，返回 false 的错误立即终止且不再重试。
	// 为 nil 时所有错误均视为可重试。
	RetryIf func(error) bool `json:"-" yaml:"-"`
}

func (p *Policy) setDefaults() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = 100 * time.Millisecond
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = 5 * time.Second
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2.0
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = 0.2
	}
}

// Config 幂等重试组件统一配置
type Config struct {
	// Mode 存储模式: "standalone" | "distributed" (默认 "standalone")
	Mode string `json:"mode" yaml:"mode"`

	// Prefix 分布式模式下的全局 Key 前缀 (e.g., "app:retry:")
	Prefix string `json:"prefix" yaml:"prefix"`

	// RecordTTL 落定记录的保留时长（默认：24 小时）
	RecordTTL time.Duration `json:"record_ttl" yaml:"record_ttl"`

	// LockTTL pending 记录的保留时长，抢占方崩溃后其他调用方
	// 在此之后可重新抢占（默认：30 秒）
	LockTTL time.Duration `json:"lock_ttl" yaml:"lock_ttl"`

	// WaitInterval 等待方轮询 pending 记录的间隔（默认：50ms）
	WaitInterval time.Duration `json:"wait_interval" yaml:"wait_interval"`

	// WaitTimeout 等待方轮询的总时长上限（默认：30 秒）
	WaitTimeout time.Duration `json:"wait_timeout" yaml:"wait_timeout"`

	// Policy 默认重试策略，可被 Execute 的 WithPolicy 覆盖
	Policy Policy `json:"policy" yaml:"policy"`
}

func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = "standalone"
	}
	if c.RecordTTL <= 0 {
		c.RecordTTL = 24 * time.Hour
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.WaitInterval <= 0 {
		c.WaitInterval = 50 * time.Millisecond
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 30 * time.Second
	}
	c.Policy.setDefaults()
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.Mode != "standalone" && c.Mode != "distributed" {
		return ErrInvalidMode
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 根据配置创建幂等重试编排器
//
// 单机模式使用内存存储；分布式模式需要通过 WithRedisConnector
// 注入 Redis 连接器，pending 记录对所有进程可见。
func New(cfg *Config, opts ...Option) (Orchestrator, error) {
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

	var store Store
	switch cfg.Mode {
	case "standalone":
		store = newMemoryStore()
	case "distributed":
		if opt.redisConn == nil {
			return nil, ErrConnectorNil
		}
		store = newRedisStore(opt.redisConn.GetClient(), cfg.Prefix)
	}

	return newOrchestrator(cfg, store, &opt), nil
}

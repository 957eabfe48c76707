// Package cache 提供读穿透（read-through）缓存组件，支持陈旧值服务
// （stale-while-revalidate）与故障降级（stale-if-error）。
//
// cache 是 Aegis 治理层的组合组件，它提供了：
// - 统一的 Loader 接口：Get 未命中时自动调用 fetch 回源并回填
// - 三段生命周期：新鲜（直接返回）、陈旧（返回旧值 + 后台刷新）、过期（同步回源）
// - 回源路径经过 限流 → 请求合并 → 熔断，同 key 并发未命中只回源一次
// - 故障降级：回源失败时在 stale-if-error 窗口内返回旧值并标记 Degraded
// - 世代戳失效：Invalidate 后，失效前启动的刷新结果会被丢弃
// - 两种存储：单机模式基于 otter 内存缓存，分布式模式基于 Redis + MessagePack
//
// ## 基本使用
//
//	loader, _ := cache.New(&cache.Config{
//	    Mode:     "standalone",
//	    FreshTTL: time.Minute,
//	}, cache.WithLogger(logger))
//	defer loader.Close()
//
//	result, err := loader.Get(ctx, "user:123", func(ctx context.Context) (any, error) {
//	    return fetchUser(ctx, "123")
//	})
//	if err == nil && result.Stale {
//	    // 返回的是陈旧值，后台刷新已触发
//	}
//
// ## 分布式模式
//
//	redisConn, _ := connector.NewRedis(redisConfig)
//	loader, _ := cache.New(&cache.Config{
//	    Mode:   "distributed",
//	    Prefix: "myapp:cache:",
//	}, cache.WithRedisConnector(redisConn), cache.WithLogger(logger))
//
// ## 与熔断器组合
//
//	brk, _ := breaker.New(breakerCfg)
//	loader, _ := cache.New(cfg, cache.WithBreaker(brk, "billing"))
package cache

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/ratelimit"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// FetchFunc 回源函数，负责从上游加载最新值。
// 分布式模式下返回值需可被 MessagePack 序列化。
type FetchFunc func(ctx context.Context) (any, error)

// Result 一次读取的结果
type Result struct {
	// Value 缓存值或刚回源得到的值
	Value any

	// Stale 为 true 表示返回的是陈旧值，后台刷新已触发
	Stale bool

	// Degraded 为 true 表示回源失败，返回的是 stale-if-error
	// 窗口内的旧值，调用方应将其视为降级数据
	Degraded bool
}

// Loader 读穿透缓存核心接口
type Loader interface {
	// Get 读取 key 对应的值：
	//   - 新鲜命中：直接返回
	//   - 陈旧命中：返回旧值（Stale=true）并触发至多一个后台刷新
	//   - 未命中/过期：同步回源，成功则回填；失败时若存在
	//     stale-if-error 窗口内的旧值则降级返回（Degraded=true），
	//     否则返回回源错误
	Get(ctx context.Context, key string, fetch FetchFunc, opts ...GetOption) (*Result, error)

	// Invalidate 删除 key 的缓存并递增其世代戳。
	// 失效前启动的回源/刷新完成后发现世代不匹配，其结果不会回填。
	Invalidate(ctx context.Context, key string) error

	// Close 释放 Loader 持有的资源
	Close() error
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 缓存组件统一配置
type Config struct {
	// Mode 缓存模式: "standalone" | "distributed" (默认 "standalone")
	Mode string `json:"mode" yaml:"mode"`

	// Prefix 分布式模式下的全局 Key 前缀 (e.g., "app:cache:")
	Prefix string `json:"prefix" yaml:"prefix"`

	// FreshTTL 新鲜期时长（默认：1 分钟）
	FreshTTL time.Duration `json:"fresh_ttl" yaml:"fresh_ttl"`

	// StaleTTL 陈旧期时长，新鲜期结束后可继续服务旧值并触发
	// 后台刷新的窗口（默认：5 分钟）
	StaleTTL time.Duration `json:"stale_ttl" yaml:"stale_ttl"`

	// StaleIfError 故障降级窗口，陈旧期结束后仅在回源失败时
	// 可以降级返回旧值的时长（默认：1 小时）
	StaleIfError time.Duration `json:"stale_if_error" yaml:"stale_if_error"`

	// FetchLimit 可选的回源限流规则，按缓存 key 限流。
	// 需要同时通过 WithLimiter 注入限流器才会生效。
	FetchLimit *ratelimit.Limit `json:"fetch_limit" yaml:"fetch_limit"`

	// Capacity 单机模式内存缓存最大条目数（默认：10000）
	Capacity int `json:"capacity" yaml:"capacity"`
}

func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = "standalone"
	}
	if c.FreshTTL <= 0 {
		c.FreshTTL = time.Minute
	}
	if c.StaleTTL <= 0 {
		c.StaleTTL = 5 * time.Minute
	}
	if c.StaleIfError <= 0 {
		c.StaleIfError = time.Hour
	}
	if c.Capacity <= 0 {
		c.Capacity = 10000
	}
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

// New 根据配置创建读穿透缓存实例
//
// 单机模式使用 otter 内存缓存；分布式模式需要通过
// WithRedisConnector 注入 Redis 连接器。
func New(cfg *Config, opts ...Option) (Loader, error) {
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
	var err error
	switch cfg.Mode {
	case "standalone":
		store, err = newMemoryStore(cfg.Capacity)
	case "distributed":
		if opt.redisConn == nil {
			return nil, ErrConnectorNil
		}
		store = newRedisStore(opt.redisConn.GetClient(), cfg.Prefix)
	}
	if err != nil {
		return nil, err
	}

	return newLoader(cfg, store, &opt)
}

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
)

// limiterWrapper 包装 rate.Limiter 并记录最后访问时间
type limiterWrapper struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// standaloneLimiter 单机限流器实现（非导出）
type standaloneLimiter struct {
	cfg      *StandaloneConfig
	logger   clog.Logger
	meter    metrics.Meter
	limiters sync.Map // map[string]*limiterWrapper
	global   *rate.Limiter
	globalMu sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once

	allowedCounter metrics.Counter
	deniedCounter  metrics.Counter
}

// newStandalone 创建单机限流器（内部函数）
func newStandalone(cfg *StandaloneConfig, logger clog.Logger, meter metrics.Meter) (Limiter, error) {
	l := &standaloneLimiter{
		cfg:    cfg,
		logger: logger,
		meter:  meter,
		stopCh: make(chan struct{}),

		allowedCounter: meter.Counter(MetricAllowed),
		deniedCounter:  meter.Counter(MetricDenied),
	}

	if cfg.GlobalLimit != nil {
		l.global = rate.NewLimiter(rate.Limit(cfg.GlobalLimit.Rate), cfg.GlobalLimit.Burst)
	}

	go l.cleanup(cfg.CleanupInterval, cfg.IdleTimeout)

	logger.Info("standalone rate limiter created",
		clog.Duration("cleanup_interval", cfg.CleanupInterval),
		clog.Duration("idle_timeout", cfg.IdleTimeout),
		clog.Bool("global_bucket", l.global != nil))

	return l, nil
}

// Acquire 尝试获取 1 个令牌
func (l *standaloneLimiter) Acquire(ctx context.Context, key string, limit Limit) (Decision, error) {
	return l.AcquireN(ctx, key, limit, 1)
}

// AcquireN 尝试获取 N 个令牌
func (l *standaloneLimiter) AcquireN(ctx context.Context, key string, limit Limit, n int) (Decision, error) {
	if key == "" {
		return Decision{}, ErrKeyEmpty
	}
	if !limit.valid() || n <= 0 {
		return Decision{}, ErrInvalidLimit
	}
	// n 超过桶容量时永远无法被满足
	if n > limit.Burst {
		return Decision{}, ErrInvalidLimit
	}
	if l.cfg.GlobalLimit != nil && n > l.cfg.GlobalLimit.Burst {
		return Decision{}, ErrInvalidLimit
	}

	now := time.Now()

	// per-key 桶：预约 n 个令牌并读取需要等待的时间
	wrapper := l.getLimiter(key, limit)
	wrapper.mu.Lock()
	keyRes := wrapper.limiter.ReserveN(now, n)
	wrapper.lastSeen = now
	wrapper.mu.Unlock()
	keyDelay := keyRes.DelayFrom(now)

	// 全局桶：per-key 通过后仍需全局桶放行
	var globalRes *rate.Reservation
	var globalDelay time.Duration
	if l.global != nil {
		l.globalMu.Lock()
		globalRes = l.global.ReserveN(now, n)
		l.globalMu.Unlock()
		globalDelay = globalRes.DelayFrom(now)
	}

	if keyDelay > 0 || globalDelay > 0 {
		// 任一桶拒绝时归还全部预约，令牌不泄漏
		keyRes.CancelAt(now)
		if globalRes != nil {
			globalRes.CancelAt(now)
		}

		retryAfter := keyDelay
		if globalDelay > retryAfter {
			retryAfter = globalDelay
		}

		l.deniedCounter.Inc(ctx, metrics.L(LabelMode, "standalone"))
		l.logger.Debug("rate limit denied",
			clog.String("key", key),
			clog.Duration("retry_after", retryAfter),
			clog.Int("requested", n))

		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	l.allowedCounter.Inc(ctx, metrics.L(LabelMode, "standalone"))
	l.logger.Debug("rate limit allowed",
		clog.String("key", key),
		clog.Float64("rate", limit.Rate),
		clog.Int("burst", limit.Burst),
		clog.Int("requested", n))

	return Decision{Allowed: true}, nil
}

// getLimiter 获取或创建指定 key 的限流器
func (l *standaloneLimiter) getLimiter(key string, limit Limit) *limiterWrapper {
	// 缓存 key 包含 rate 和 burst，规则变化时自然切换到新桶
	cacheKey := fmt.Sprintf("%s:%v:%d", key, limit.Rate, limit.Burst)

	if v, ok := l.limiters.Load(cacheKey); ok {
		return v.(*limiterWrapper)
	}

	wrapper := &limiterWrapper{
		limiter:  rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst),
		lastSeen: time.Now(),
	}

	actual, _ := l.limiters.LoadOrStore(cacheKey, wrapper)
	return actual.(*limiterWrapper)
}

// cleanup 定期清理空闲的限流器
func (l *standaloneLimiter) cleanup(interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			count := 0

			l.limiters.Range(func(key, value any) bool {
				wrapper := value.(*limiterWrapper)
				wrapper.mu.Lock()
				idle := now.Sub(wrapper.lastSeen)
				wrapper.mu.Unlock()

				if idle > idleTimeout {
					l.limiters.Delete(key)
					count++
				}
				return true
			})

			if count > 0 {
				l.logger.Debug("cleaned up idle limiters", clog.Int("count", count))
			}

		case <-l.stopCh:
			return
		}
	}
}

// Close 关闭限流器并停止清理协程
func (l *standaloneLimiter) Close() error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	return nil
}

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/ratelimit"
	"github.com/ceyewan/aegis/singleflight"
	"github.com/ceyewan/aegis/xerrors"
)

// loader 读穿透缓存实现（非导出）
type loader struct {
	cfg        *Config
	store      Store
	logger     clog.Logger
	limiter    ratelimit.Limiter
	brk        breaker.Breaker
	breakerKey string

	// 同 key 的同步回源与后台刷新共用一个 singleflight Group，
	// 保证任一时刻每个 key 至多一次上游调用
	group singleflight.Group

	// 世代戳，Invalidate 递增；map[string]*atomic.Int64
	gens sync.Map

	refreshCtx    context.Context
	refreshCancel context.CancelFunc
	refreshWG     sync.WaitGroup

	hitsCounter         metrics.Counter
	staleHitsCounter    metrics.Counter
	missesCounter       metrics.Counter
	refreshCounter      metrics.Counter
	refreshFailsCounter metrics.Counter
	degradedCounter     metrics.Counter
	invalidateCounter   metrics.Counter
}

func newLoader(cfg *Config, store Store, opt *options) (Loader, error) {
	refreshCtx, refreshCancel := context.WithCancel(context.Background())

	l := &loader{
		cfg:           cfg,
		store:         store,
		logger:        opt.logger,
		limiter:       opt.limiter,
		brk:           opt.breaker,
		breakerKey:    opt.breakerKey,
		refreshCtx:    refreshCtx,
		refreshCancel: refreshCancel,

		hitsCounter:         opt.meter.Counter(MetricHits),
		staleHitsCounter:    opt.meter.Counter(MetricStaleHits),
		missesCounter:       opt.meter.Counter(MetricMisses),
		refreshCounter:      opt.meter.Counter(MetricRefreshes),
		refreshFailsCounter: opt.meter.Counter(MetricRefreshFailures),
		degradedCounter:     opt.meter.Counter(MetricDegraded),
		invalidateCounter:   opt.meter.Counter(MetricInvalidations),
	}

	l.logger.Info("cache loader created",
		clog.String("mode", cfg.Mode),
		clog.Duration("fresh_ttl", cfg.FreshTTL),
		clog.Duration("stale_ttl", cfg.StaleTTL),
		clog.Duration("stale_if_error", cfg.StaleIfError))

	return l, nil
}

// Get 读取 key 对应的值，按生命周期分类处理
func (l *loader) Get(ctx context.Context, key string, fetch FetchFunc, opts ...GetOption) (*Result, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}
	if fetch == nil {
		return nil, ErrFetchNil
	}

	gopt := getOptions{
		freshTTL: l.cfg.FreshTTL,
		staleTTL: l.cfg.StaleTTL,
	}
	for _, o := range opts {
		o(&gopt)
	}

	entry, found, err := l.store.Get(ctx, key)
	if err != nil {
		// 存储故障按未命中处理，回源路径仍可服务请求
		l.logger.Warn("cache store read failed, treating as miss",
			clog.String("key", key), clog.Err(err))
		found = false
	}

	now := time.Now()

	if found && entry.fresh(now) {
		l.hitsCounter.Inc(ctx, metrics.L(LabelMode, l.cfg.Mode))
		l.logger.Debug("cache hit", clog.String("key", key))
		return &Result{Value: entry.Value}, nil
	}

	if found && entry.stale(now) {
		// 陈旧命中：立即返回旧值，后台触发至多一个刷新
		l.triggerRefresh(key, fetch, gopt)
		l.staleHitsCounter.Inc(ctx, metrics.L(LabelMode, l.cfg.Mode))
		l.logger.Debug("cache stale hit, background refresh triggered",
			clog.String("key", key))
		return &Result{Value: entry.Value, Stale: true}, nil
	}

	// 未命中或已过期：同步回源
	l.missesCounter.Inc(ctx, metrics.L(LabelMode, l.cfg.Mode))

	val, _, fetchErr := l.group.Do(ctx, key, func(ctx context.Context) (any, error) {
		return l.doFetch(ctx, key, fetch, gopt)
	})
	if fetchErr != nil {
		// 故障降级：stale-if-error 窗口内仍有旧值可用
		if found && entry.usableOnError(now, l.cfg.StaleIfError) {
			l.degradedCounter.Inc(ctx, metrics.L(LabelMode, l.cfg.Mode))
			l.logger.Warn("fetch failed, serving degraded value",
				clog.String("key", key), clog.Err(fetchErr))
			return &Result{Value: entry.Value, Stale: true, Degraded: true}, nil
		}
		return nil, fetchErr
	}

	return &Result{Value: val}, nil
}

// doFetch 执行一次受保护的回源：限流 → 熔断 → fetch，
// 成功后在世代戳未变化时回填存储
func (l *loader) doFetch(ctx context.Context, key string, fetch FetchFunc, gopt getOptions) (any, error) {
	gen := l.currentGen(key)

	if l.limiter != nil && l.cfg.FetchLimit != nil {
		decision, err := l.limiter.Acquire(ctx, key, *l.cfg.FetchLimit)
		if err != nil {
			// 限流器故障时放行，回源自身仍有熔断保护
			l.logger.Warn("fetch limiter failed, allowing fetch",
				clog.String("key", key), clog.Err(err))
		} else if !decision.Allowed {
			return nil, xerrors.Wrapf(ErrRateLimited, "retry after %v", decision.RetryAfter)
		}
	}

	val, err := l.callUpstream(ctx, key, fetch)
	if err != nil {
		return nil, err
	}

	if l.currentGen(key) != gen {
		// 回源期间发生了 Invalidate，丢弃结果避免写回旧世代数据
		l.logger.Debug("fetch result discarded due to invalidation",
			clog.String("key", key))
		return val, nil
	}

	l.storeEntry(ctx, key, val, gen, gopt)
	return val, nil
}

// callUpstream 调用上游，配置了熔断器时经过熔断保护
func (l *loader) callUpstream(ctx context.Context, key string, fetch FetchFunc) (any, error) {
	if l.brk == nil {
		return fetch(ctx)
	}

	bkey := l.breakerKey
	if bkey == "" {
		bkey = key
	}
	return l.brk.Execute(ctx, bkey, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
}

// storeEntry 写入一个新鲜条目
func (l *loader) storeEntry(ctx context.Context, key string, val any, gen int64, gopt getOptions) {
	now := time.Now()
	entry := &Entry{
		Value:      val,
		InsertedAt: now,
		FreshUntil: now.Add(gopt.freshTTL),
		StaleUntil: now.Add(gopt.freshTTL + gopt.staleTTL),
		Generation: gen,
	}
	ttl := gopt.freshTTL + gopt.staleTTL + l.cfg.StaleIfError

	if err := l.store.Set(ctx, key, entry, ttl); err != nil {
		l.logger.Warn("cache store write failed",
			clog.String("key", key), clog.Err(err))
	}
}

// triggerRefresh 触发后台刷新。同 key 已有回源或刷新进行中时，
// TryDo 直接放弃，保证每个 key 至多一个在途刷新。
func (l *loader) triggerRefresh(key string, fetch FetchFunc, gopt getOptions) {
	l.refreshWG.Add(1)
	go func() {
		defer l.refreshWG.Done()

		_, executed, err := l.group.TryDo(l.refreshCtx, key, func(ctx context.Context) (any, error) {
			return l.doFetch(ctx, key, fetch, gopt)
		})
		if !executed {
			return
		}

		l.refreshCounter.Inc(l.refreshCtx, metrics.L(LabelMode, l.cfg.Mode))
		if err != nil {
			// 刷新失败不影响已返回的陈旧值，顺延陈旧窗口等待下一次触发
			l.refreshFailsCounter.Inc(l.refreshCtx, metrics.L(LabelMode, l.cfg.Mode))
			l.logger.Warn("background refresh failed, stale value retained",
				clog.String("key", key), clog.Err(err))
			l.extendStale(l.refreshCtx, key, gopt)
		}
	}()
}

// extendStale 刷新失败后把旧条目的陈旧窗口从当前时刻顺延，
// 后续读取继续陈旧命中并触发刷新，而不是在原窗口耗尽后
// 退化为同步回源
func (l *loader) extendStale(ctx context.Context, key string, gopt getOptions) {
	entry, found, err := l.store.Get(ctx, key)
	if err != nil || !found {
		return
	}

	now := time.Now()
	if !entry.stale(now) || entry.Generation != l.currentGen(key) {
		return
	}

	entry.StaleUntil = now.Add(gopt.staleTTL)
	ttl := gopt.staleTTL + l.cfg.StaleIfError
	if err := l.store.Set(ctx, key, entry, ttl); err != nil {
		l.logger.Warn("failed to extend stale window",
			clog.String("key", key), clog.Err(err))
	}
}

// Invalidate 删除缓存并递增世代戳
func (l *loader) Invalidate(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	// 先递增世代戳再删除，保证在途回源一定能观察到世代变化
	l.bumpGen(key)

	if err := l.store.Delete(ctx, key); err != nil {
		return err
	}

	l.invalidateCounter.Inc(ctx, metrics.L(LabelMode, l.cfg.Mode))
	l.logger.Debug("cache invalidated", clog.String("key", key))
	return nil
}

// Close 停止后台刷新并释放存储资源
func (l *loader) Close() error {
	l.refreshCancel()
	l.refreshWG.Wait()
	return l.store.Close()
}

// ========================================
// 世代戳管理
// ========================================

func (l *loader) currentGen(key string) int64 {
	v, _ := l.gens.LoadOrStore(key, &atomic.Int64{})
	return v.(*atomic.Int64).Load()
}

func (l *loader) bumpGen(key string) {
	v, _ := l.gens.LoadOrStore(key, &atomic.Int64{})
	v.(*atomic.Int64).Add(1)
}

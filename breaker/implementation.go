package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/xerrors"

	"github.com/sony/gobreaker/v2"
)

// circuitBreaker 熔断器实现（非导出）
type circuitBreaker struct {
	cfg      *Config
	logger   clog.Logger
	meter    metrics.Meter
	fallback FallbackFunc

	// Key 级熔断器管理
	breakers sync.Map // map[string]*gobreaker.CircuitBreaker[any]

	requestsCounter metrics.Counter
	successCounter  metrics.Counter
	failuresCounter metrics.Counter
	rejectsCounter  metrics.Counter
	timeoutsCounter metrics.Counter
	stateCounter    metrics.Counter
	durationHist    metrics.Histogram
}

// newBreaker 创建熔断器实例（内部函数）
func newBreaker(
	cfg *Config,
	logger clog.Logger,
	meter metrics.Meter,
	fallback FallbackFunc,
) (Breaker, error) {
	cb := &circuitBreaker{
		cfg:      cfg,
		logger:   logger,
		meter:    meter,
		fallback: fallback,

		requestsCounter: meter.Counter(MetricRequestsTotal),
		successCounter:  meter.Counter(MetricSuccessTotal),
		failuresCounter: meter.Counter(MetricFailuresTotal),
		rejectsCounter:  meter.Counter(MetricRejectsTotal),
		timeoutsCounter: meter.Counter(MetricTimeoutsTotal),
		stateCounter:    meter.Counter(MetricStateChanges),
		durationHist:    meter.Histogram(MetricRequestDuration, metrics.WithUnit("s")),
	}

	return cb, nil
}

// Execute 执行受熔断保护的函数
func (cb *circuitBreaker) Execute(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}

	breaker := cb.getOrCreateBreaker(key)

	start := time.Now()
	result, err := breaker.Execute(func() (any, error) {
		return cb.invoke(ctx, fn)
	})
	duration := time.Since(start)

	cb.recordMetrics(ctx, key, err, duration)

	// 熔断打开或半开探测名额已满：不再调用 fn，走降级或快速失败
	if err != nil && (xerrors.Is(err, gobreaker.ErrOpenState) || xerrors.Is(err, gobreaker.ErrTooManyRequests)) {
		cb.logger.Warn("circuit breaker open",
			clog.String("key", key),
			clog.Err(err))

		if cb.fallback != nil {
			return cb.fallback(ctx, key, ErrOpenState)
		}
		return nil, ErrOpenState
	}

	return result, err
}

// invoke 执行 fn，带可选的单次调用超时
//
// 超时或上游 ctx 取消时立即向调用者返回错误；fn 的 goroutine
// 通过派生 ctx 收到取消信号后自行退出，其结果被丢弃。
func (cb *circuitBreaker) invoke(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if cb.cfg.CallTimeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, cb.cfg.CallTimeout)
	defer cancel()

	type outcome struct {
		val any
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		val, err := fn(callCtx)
		done <- outcome{val: val, err: err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-callCtx.Done():
		if xerrors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, callCtx.Err()
	}
}

// State 获取指定键的熔断器状态
func (cb *circuitBreaker) State(key string) (State, error) {
	if key == "" {
		return StateClosed, ErrKeyEmpty
	}

	val, ok := cb.breakers.Load(key)
	if !ok {
		return StateClosed, ErrBreakerNotFound
	}

	breaker := val.(*gobreaker.CircuitBreaker[any])
	switch breaker.State() {
	case gobreaker.StateClosed:
		return StateClosed, nil
	case gobreaker.StateHalfOpen:
		return StateHalfOpen, nil
	case gobreaker.StateOpen:
		return StateOpen, nil
	default:
		return StateClosed, nil
	}
}

// getOrCreateBreaker 获取或创建 Key 级熔断器
func (cb *circuitBreaker) getOrCreateBreaker(key string) *gobreaker.CircuitBreaker[any] {
	val, ok := cb.breakers.Load(key)
	if ok {
		return val.(*gobreaker.CircuitBreaker[any])
	}

	settings := gobreaker.Settings{
		Name:        key,
		MaxRequests: cb.cfg.MaxRequests,
		Interval:    cb.cfg.Interval,
		Timeout:     cb.cfg.Timeout,
		ReadyToTrip: cb.readyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cb.onStateChange(name, from, to)
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)

	// 可能有并发创建，使用 LoadOrStore
	actual, _ := cb.breakers.LoadOrStore(key, breaker)
	return actual.(*gobreaker.CircuitBreaker[any])
}

// readyToTrip 判断是否应该触发熔断
func (cb *circuitBreaker) readyToTrip(counts gobreaker.Counts) bool {
	// 请求数少于最小请求数，不触发熔断
	if counts.Requests < cb.cfg.MinimumRequests {
		return false
	}

	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return failureRatio >= cb.cfg.FailureRatio
}

// onStateChange 状态变更回调
func (cb *circuitBreaker) onStateChange(name string, from gobreaker.State, to gobreaker.State) {
	cb.logger.Info("circuit breaker state changed",
		clog.String("key", name),
		clog.String("from", stateToString(from)),
		clog.String("to", stateToString(to)))

	cb.stateCounter.Inc(context.Background(),
		metrics.L(LabelKey, name),
		metrics.L(LabelFromState, stateToString(from)),
		metrics.L(LabelToState, stateToString(to)))
}

// recordMetrics 记录指标
func (cb *circuitBreaker) recordMetrics(ctx context.Context, key string, err error, duration time.Duration) {
	cb.requestsCounter.Inc(ctx, metrics.L(LabelKey, key))
	cb.durationHist.Observe(ctx, duration.Seconds(), metrics.L(LabelKey, key))

	switch {
	case err == nil:
		cb.successCounter.Inc(ctx, metrics.L(LabelKey, key))
	case xerrors.Is(err, gobreaker.ErrOpenState) || xerrors.Is(err, gobreaker.ErrTooManyRequests):
		cb.rejectsCounter.Inc(ctx, metrics.L(LabelKey, key))
	case xerrors.Is(err, ErrTimeout):
		cb.timeoutsCounter.Inc(ctx, metrics.L(LabelKey, key))
		cb.failuresCounter.Inc(ctx, metrics.L(LabelKey, key))
	default:
		cb.failuresCounter.Inc(ctx, metrics.L(LabelKey, key))
	}
}

// stateToString 将 gobreaker.State 转换为字符串
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half_open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

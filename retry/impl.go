package retry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/xerrors"
)

// orchestrator 幂等重试编排器实现（非导出）
type orchestrator struct {
	cfg        *Config
	store      Store
	logger     clog.Logger
	brk        breaker.Breaker
	breakerKey string

	execCounter    metrics.Counter
	attemptCounter metrics.Counter
	replayCounter  metrics.Counter
	failureCounter metrics.Counter
	joinCounter    metrics.Counter
	clearCounter   metrics.Counter
}

func newOrchestrator(cfg *Config, store Store, opt *options) Orchestrator {
	o := &orchestrator{
		cfg:        cfg,
		store:      store,
		logger:     opt.logger,
		brk:        opt.breaker,
		breakerKey: opt.breakerKey,

		execCounter:    opt.meter.Counter(MetricExecutions),
		attemptCounter: opt.meter.Counter(MetricAttempts),
		replayCounter:  opt.meter.Counter(MetricReplays),
		failureCounter: opt.meter.Counter(MetricFailures),
		joinCounter:    opt.meter.Counter(MetricJoins),
		clearCounter:   opt.meter.Counter(MetricClears),
	}

	o.logger.Info("retry orchestrator created",
		clog.String("mode", cfg.Mode),
		clog.Duration("record_ttl", cfg.RecordTTL),
		clog.Duration("lock_ttl", cfg.LockTTL),
		clog.Int("max_attempts", cfg.Policy.MaxAttempts))

	return o
}

// Execute 按幂等键执行操作
func (o *orchestrator) Execute(ctx context.Context, key string, op Operation, opts ...ExecuteOption) (any, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}
	if op == nil {
		return nil, ErrOperationNil
	}

	eo := executeOptions{policy: o.cfg.Policy}
	for _, apply := range opts {
		apply(&eo)
	}

	for {
		rec, found, err := o.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			if rec.Status == StatusPending {
				return o.waitForOutcome(ctx, key)
			}
			return o.replay(ctx, key, rec)
		}

		pending := &Record{
			Status:    StatusPending,
			Token:     uuid.New().String(),
			CreatedAt: time.Now(),
		}
		claimed, existing, err := o.store.Claim(ctx, key, pending, o.cfg.LockTTL)
		if err != nil {
			return nil, err
		}
		if claimed {
			return o.runClaimed(ctx, key, pending.Token, op, &eo.policy)
		}
		if existing == nil {
			// 抢占失败但记录已过期，重新进入抢占流程
			continue
		}
		if existing.Status == StatusPending {
			return o.waitForOutcome(ctx, key)
		}
		return o.replay(ctx, key, existing)
	}
}

// runClaimed 抢占成功后执行操作并落定记录。
// 落定携带抢占令牌：pending 在执行期间过期且 key 被他方重新抢占时，
// 落定失败（ErrClaimLost），本方结果仅返回给自己的调用方，
// 不覆盖他方的记录。
func (o *orchestrator) runClaimed(ctx context.Context, key, token string, op Operation, policy *Policy) (any, error) {
	o.execCounter.Inc(ctx, metrics.L(LabelMode, o.cfg.Mode))
	o.logger.Debug("claimed idempotency key", clog.String("key", key))

	val, attempts, runErr := o.runWithPolicy(ctx, key, op, policy)

	// 落定与清理不受调用方取消影响
	settleCtx := context.WithoutCancel(ctx)

	if runErr != nil {
		if xerrors.Is(runErr, context.Canceled) || xerrors.Is(runErr, context.DeadlineExceeded) {
			// 调用方取消不是操作的终态结果，释放抢占让后续调用重试
			if err := o.store.Release(settleCtx, key, token); err != nil {
				o.logger.Error("failed to release claim after cancellation",
					clog.String("key", key), clog.Err(err))
			}
			return nil, runErr
		}

		rec := &Record{
			Status:    StatusFailed,
			ErrMsg:    runErr.Error(),
			Attempts:  attempts,
			Token:     token,
			CreatedAt: time.Now(),
		}
		if err := o.store.Settle(settleCtx, key, token, rec, o.cfg.RecordTTL); err != nil {
			o.logSettleFailure(key, err)
		}
		o.failureCounter.Inc(ctx, metrics.L(LabelMode, o.cfg.Mode))
		o.logger.Warn("operation failed terminally",
			clog.String("key", key), clog.Int("attempts", attempts), clog.Err(runErr))
		return nil, runErr
	}

	rec := &Record{
		Status:     StatusCompleted,
		Result:     val,
		ResultHash: hashResult(val),
		Attempts:   attempts,
		Token:      token,
		CreatedAt:  time.Now(),
	}
	if err := o.store.Settle(settleCtx, key, token, rec, o.cfg.RecordTTL); err != nil {
		// 结果仍然返回给调用方，记录缺失只影响后续回放
		o.logSettleFailure(key, err)
	}

	o.logger.Debug("operation completed",
		clog.String("key", key), clog.Int("attempts", attempts))
	return val, nil
}

// logSettleFailure 区分丢失抢占与存储故障
func (o *orchestrator) logSettleFailure(key string, err error) {
	if xerrors.Is(err, ErrClaimLost) {
		o.logger.Warn("claim lost before settling, record kept by new claimant",
			clog.String("key", key))
		return
	}
	o.logger.Error("failed to settle record",
		clog.String("key", key), clog.Err(err))
}

// runWithPolicy 在重试策略下执行操作，返回结果与实际尝试次数
func (o *orchestrator) runWithPolicy(ctx context.Context, key string, op Operation, p *Policy) (any, int, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		o.attemptCounter.Inc(ctx, metrics.L(LabelMode, o.cfg.Mode))

		val, err := o.callOp(ctx, key, op)
		if err == nil {
			return val, attempt, nil
		}
		lastErr = err

		if p.RetryIf != nil && !p.RetryIf(err) {
			o.logger.Debug("non-retryable error",
				clog.String("key", key), clog.Err(err))
			return nil, attempt, err
		}
		if attempt >= p.MaxAttempts {
			return nil, attempt, lastErr
		}

		delay := backoffDelay(attempt, p)
		o.logger.Debug("attempt failed, backing off",
			clog.String("key", key),
			clog.Int("attempt", attempt),
			clog.Duration("delay", delay),
			clog.Err(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, ctx.Err()
		case <-timer.C:
		}
	}
}

// callOp 调用业务操作，配置了熔断器时经过熔断保护
func (o *orchestrator) callOp(ctx context.Context, key string, op Operation) (any, error) {
	if o.brk == nil {
		return op(ctx)
	}

	bkey := o.breakerKey
	if bkey == "" {
		bkey = key
	}
	return o.brk.Execute(ctx, bkey, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
}

// waitForOutcome 轮询 pending 记录直至落定
func (o *orchestrator) waitForOutcome(ctx context.Context, key string) (any, error) {
	o.joinCounter.Inc(ctx, metrics.L(LabelMode, o.cfg.Mode))
	o.logger.Debug("joining pending operation", clog.String("key", key))

	deadline := time.NewTimer(o.cfg.WaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(o.cfg.WaitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, xerrors.Wrapf(ErrWaitTimeout, "key %s", key)
		case <-ticker.C:
			rec, found, err := o.store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, xerrors.Wrapf(ErrPendingExpired, "key %s", key)
			}
			if rec.Status != StatusPending {
				return o.replay(ctx, key, rec)
			}
		}
	}
}

// replay 回放已落定的记录
func (o *orchestrator) replay(ctx context.Context, key string, rec *Record) (any, error) {
	switch rec.Status {
	case StatusCompleted:
		o.replayCounter.Inc(ctx, metrics.L(LabelMode, o.cfg.Mode))
		o.logger.Debug("replaying completed result",
			clog.String("key", key), clog.String("hash", rec.ResultHash))
		return rec.Result, nil
	case StatusFailed:
		return nil, xerrors.Wrapf(ErrRecordFailed, "%s", rec.ErrMsg)
	default:
		return nil, xerrors.Wrapf(ErrPendingExpired, "unexpected record status %q", rec.Status)
	}
}

// Clear 提前删除记录
func (o *orchestrator) Clear(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	if err := o.store.Delete(ctx, key); err != nil {
		return err
	}

	o.clearCounter.Inc(ctx, metrics.L(LabelMode, o.cfg.Mode))
	o.logger.Debug("record cleared", clog.String("key", key))
	return nil
}

// Close 释放存储资源
func (o *orchestrator) Close() error {
	return o.store.Close()
}

// hashResult 计算结果的 SHA-256 摘要（十六进制）
func hashResult(val any) string {
	data, err := msgpack.Marshal(val)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

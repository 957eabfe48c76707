package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/aegis/clog"
)

func newTestLimiter(t *testing.T, cfg *StandaloneConfig) Limiter {
	t.Helper()
	limiter, err := NewStandalone(cfg, WithLogger(clog.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter
}

// ============================================================
// 参数校验测试
// ============================================================

func TestStandaloneValidation(t *testing.T) {
	limiter := newTestLimiter(t, nil)
	ctx := context.Background()

	t.Run("空 key 返回错误", func(t *testing.T) {
		_, err := limiter.Acquire(ctx, "", Limit{Rate: 1, Burst: 1})
		assert.ErrorIs(t, err, ErrKeyEmpty)
	})

	t.Run("非法限流规则返回错误", func(t *testing.T) {
		_, err := limiter.Acquire(ctx, "k", Limit{Rate: 0, Burst: 1})
		assert.ErrorIs(t, err, ErrInvalidLimit)

		_, err = limiter.Acquire(ctx, "k", Limit{Rate: 1, Burst: 0})
		assert.ErrorIs(t, err, ErrInvalidLimit)

		_, err = limiter.AcquireN(ctx, "k", Limit{Rate: 1, Burst: 1}, 0)
		assert.ErrorIs(t, err, ErrInvalidLimit)
	})

	t.Run("n 超过桶容量永远无法满足", func(t *testing.T) {
		_, err := limiter.AcquireN(ctx, "k", Limit{Rate: 10, Burst: 5}, 6)
		assert.ErrorIs(t, err, ErrInvalidLimit)
	})

	t.Run("全局桶规则非法时构造失败", func(t *testing.T) {
		_, err := NewStandalone(&StandaloneConfig{
			GlobalLimit: &Limit{Rate: -1, Burst: 1},
		})
		assert.ErrorIs(t, err, ErrInvalidLimit)
	})
}

// ============================================================
// 令牌桶行为测试
// ============================================================

func TestStandaloneTokenBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("突发流量不超过桶容量", func(t *testing.T) {
		limiter := newTestLimiter(t, nil)
		limit := Limit{Rate: 1, Burst: 3}
		key := "burst"

		for i := 0; i < 3; i++ {
			decision, err := limiter.Acquire(ctx, key, limit)
			require.NoError(t, err)
			assert.True(t, decision.Allowed, "第 %d 个请求应该被允许", i+1)
		}

		decision, err := limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Greater(t, decision.RetryAfter, time.Duration(0))
	})

	t.Run("容量 5 速率 5 时第 6 个请求提示约 200ms", func(t *testing.T) {
		limiter := newTestLimiter(t, nil)
		limit := Limit{Rate: 5, Burst: 5}
		key := "hint"

		for i := 0; i < 5; i++ {
			decision, err := limiter.Acquire(ctx, key, limit)
			require.NoError(t, err)
			require.True(t, decision.Allowed)
		}

		decision, err := limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		require.False(t, decision.Allowed)
		// 下一个令牌约 1/5 秒后生成，容忍调度误差
		assert.InDelta(t, 200, float64(decision.RetryAfter.Milliseconds()), 60)
	})

	t.Run("等待重试提示后可以重新获取", func(t *testing.T) {
		limiter := newTestLimiter(t, nil)
		limit := Limit{Rate: 20, Burst: 1}
		key := "refill"

		decision, err := limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		require.True(t, decision.Allowed)

		decision, err = limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		require.False(t, decision.Allowed)

		time.Sleep(decision.RetryAfter + 10*time.Millisecond)

		decision, err = limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("不同 key 互不影响", func(t *testing.T) {
		limiter := newTestLimiter(t, nil)
		limit := Limit{Rate: 1, Burst: 1}

		decision, err := limiter.Acquire(ctx, "a", limit)
		require.NoError(t, err)
		require.True(t, decision.Allowed)

		decision, err = limiter.Acquire(ctx, "b", limit)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("AcquireN 一次消耗多个令牌", func(t *testing.T) {
		limiter := newTestLimiter(t, nil)
		limit := Limit{Rate: 1, Burst: 5}
		key := "batch"

		decision, err := limiter.AcquireN(ctx, key, limit, 5)
		require.NoError(t, err)
		require.True(t, decision.Allowed)

		decision, err = limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	})
}

// ============================================================
// 全局桶测试
// ============================================================

func TestStandaloneGlobalBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("全局桶耗尽时拒绝所有 key", func(t *testing.T) {
		limiter := newTestLimiter(t, &StandaloneConfig{
			GlobalLimit: &Limit{Rate: 1, Burst: 2},
		})
		limit := Limit{Rate: 100, Burst: 100}

		decision, err := limiter.Acquire(ctx, "a", limit)
		require.NoError(t, err)
		require.True(t, decision.Allowed)

		decision, err = limiter.Acquire(ctx, "b", limit)
		require.NoError(t, err)
		require.True(t, decision.Allowed)

		// per-key 桶充足，但全局桶已空
		decision, err = limiter.Acquire(ctx, "c", limit)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Greater(t, decision.RetryAfter, time.Duration(0))
	})

	t.Run("两个桶都拒绝时返回较大的提示", func(t *testing.T) {
		limiter := newTestLimiter(t, &StandaloneConfig{
			GlobalLimit: &Limit{Rate: 0.5, Burst: 1},
		})
		// per-key 桶速率较快，耗尽后提示应来自更慢的全局桶
		limit := Limit{Rate: 100, Burst: 1}
		key := "both"

		decision, err := limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		require.True(t, decision.Allowed)

		decision, err = limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		require.False(t, decision.Allowed)
		// 全局桶 0.5/s，需要约 2s；per-key 只需约 10ms
		assert.Greater(t, decision.RetryAfter, time.Second)
	})

	t.Run("全局桶拒绝后 per-key 令牌不泄漏", func(t *testing.T) {
		limiter := newTestLimiter(t, &StandaloneConfig{
			GlobalLimit: &Limit{Rate: 0.1, Burst: 1},
		})
		limit := Limit{Rate: 0.1, Burst: 1}

		decision, err := limiter.Acquire(ctx, "a", limit)
		require.NoError(t, err)
		require.True(t, decision.Allowed)

		// 全局桶已空，key b 被拒绝，但 b 的 per-key 令牌被归还
		decision, err = limiter.Acquire(ctx, "b", limit)
		require.NoError(t, err)
		require.False(t, decision.Allowed)

		// b 被拒绝时的提示来自全局桶（约 10s），而不是
		// per-key 桶叠加泄漏后的更长时间
		assert.LessOrEqual(t, decision.RetryAfter, 11*time.Second)

		// 再次请求：如果上一次的预约没有被归还，提示会翻倍到约 20s
		decision, err = limiter.Acquire(ctx, "b", limit)
		require.NoError(t, err)
		require.False(t, decision.Allowed)
		assert.LessOrEqual(t, decision.RetryAfter, 11*time.Second)
	})
}

// ============================================================
// 并发测试
// ============================================================

func TestStandaloneConcurrent(t *testing.T) {
	t.Run("并发获取不超过桶容量", func(t *testing.T) {
		limiter := newTestLimiter(t, nil)
		limit := Limit{Rate: 0.001, Burst: 10}
		ctx := context.Background()

		allowed := make(chan bool, 100)
		done := make(chan struct{})
		for i := 0; i < 100; i++ {
			go func() {
				decision, err := limiter.Acquire(ctx, "concurrent", limit)
				require.NoError(t, err)
				allowed <- decision.Allowed
				done <- struct{}{}
			}()
		}

		for i := 0; i < 100; i++ {
			<-done
		}
		close(allowed)

		count := 0
		for a := range allowed {
			if a {
				count++
			}
		}
		assert.Equal(t, 10, count)
	})
}

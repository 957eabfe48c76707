package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/aegis/testkit"
)

// ============================================================
// 分布式限流集成测试（需要 Redis）
// ============================================================

func TestDistributedLimiter(t *testing.T) {
	conn := testkit.GetRedisConnector(t)
	ctx := context.Background()

	newLimiter := func(t *testing.T, cfg *DistributedConfig) Limiter {
		if cfg == nil {
			cfg = &DistributedConfig{}
		}
		cfg.Prefix = fmt.Sprintf("test:ratelimit:%s:", testkit.NewID())
		limiter, err := NewDistributed(conn, cfg, WithLogger(testkit.NewLogger()))
		require.NoError(t, err)
		t.Cleanup(func() { _ = limiter.Close() })
		return limiter
	}

	t.Run("突发流量不超过桶容量", func(t *testing.T) {
		limiter := newLimiter(t, nil)
		limit := Limit{Rate: 1, Burst: 3}
		key := testkit.NewID()

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

	t.Run("拒绝时返回毫秒级重试提示", func(t *testing.T) {
		limiter := newLimiter(t, nil)
		limit := Limit{Rate: 5, Burst: 5}
		key := testkit.NewID()

		for i := 0; i < 5; i++ {
			decision, err := limiter.Acquire(ctx, key, limit)
			require.NoError(t, err)
			require.True(t, decision.Allowed)
		}

		decision, err := limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		require.False(t, decision.Allowed)
		// 下一个令牌约 200ms 后生成，容忍网络往返误差
		assert.InDelta(t, 200, float64(decision.RetryAfter.Milliseconds()), 100)
	})

	t.Run("等待重试提示后可以重新获取", func(t *testing.T) {
		limiter := newLimiter(t, nil)
		limit := Limit{Rate: 10, Burst: 1}
		key := testkit.NewID()

		decision, err := limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		require.True(t, decision.Allowed)

		decision, err = limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		require.False(t, decision.Allowed)

		time.Sleep(decision.RetryAfter + 20*time.Millisecond)

		decision, err = limiter.Acquire(ctx, key, limit)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("全局桶与 per-key 桶同时生效", func(t *testing.T) {
		limiter := newLimiter(t, &DistributedConfig{
			GlobalLimit: &Limit{Rate: 1, Burst: 2},
		})
		limit := Limit{Rate: 100, Burst: 100}

		decision, err := limiter.Acquire(ctx, testkit.NewID(), limit)
		require.NoError(t, err)
		require.True(t, decision.Allowed)

		decision, err = limiter.Acquire(ctx, testkit.NewID(), limit)
		require.NoError(t, err)
		require.True(t, decision.Allowed)

		decision, err = limiter.Acquire(ctx, testkit.NewID(), limit)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Greater(t, decision.RetryAfter, time.Duration(0))
	})

	t.Run("参数校验", func(t *testing.T) {
		limiter := newLimiter(t, nil)

		_, err := limiter.Acquire(ctx, "", Limit{Rate: 1, Burst: 1})
		assert.ErrorIs(t, err, ErrKeyEmpty)

		_, err = limiter.AcquireN(ctx, "k", Limit{Rate: 10, Burst: 5}, 6)
		assert.ErrorIs(t, err, ErrInvalidLimit)
	})
}

func TestNewDistributedValidation(t *testing.T) {
	t.Run("连接器为空返回错误", func(t *testing.T) {
		_, err := NewDistributed(nil, nil)
		assert.ErrorIs(t, err, ErrConnectorNil)
	})
}

package breaker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/ceyewan/aegis/xerrors"
)

var errUpstream = xerrors.New("upstream failure")

func newTestBreaker(t *testing.T, cfg *Config, opts ...Option) Breaker {
	t.Helper()
	brk, err := New(cfg, opts...)
	require.NoError(t, err)
	return brk
}

// tripBreaker 连续注入失败直到熔断器打开
func tripBreaker(t *testing.T, brk Breaker, key string, failures int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < failures; i++ {
		_, _ = brk.Execute(ctx, key, func(ctx context.Context) (any, error) {
			return nil, errUpstream
		})
	}
}

// ============================================================
// 状态机测试
// ============================================================

func TestStateMachine(t *testing.T) {
	ctx := context.Background()

	t.Run("失败率达到阈值且样本足够时熔断", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{
			Timeout:         time.Minute,
			FailureRatio:    0.5,
			MinimumRequests: 4,
		})

		tripBreaker(t, brk, "svc", 4)

		state, err := brk.State("svc")
		require.NoError(t, err)
		assert.Equal(t, StateOpen, state)

		// 熔断打开后不再调用 fn
		var called atomic.Bool
		_, err = brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
			called.Store(true)
			return nil, nil
		})
		assert.ErrorIs(t, err, ErrOpenState)
		assert.False(t, called.Load())
	})

	t.Run("样本不足时不熔断", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{
			Timeout:         time.Minute,
			FailureRatio:    0.5,
			MinimumRequests: 10,
		})

		tripBreaker(t, brk, "svc", 5)

		state, err := brk.State("svc")
		require.NoError(t, err)
		assert.Equal(t, StateClosed, state)
	})

	t.Run("冷却后半开探测成功则闭合", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{
			Timeout:         100 * time.Millisecond,
			FailureRatio:    0.5,
			MinimumRequests: 2,
		})

		tripBreaker(t, brk, "svc", 2)
		state, _ := brk.State("svc")
		require.Equal(t, StateOpen, state)

		time.Sleep(150 * time.Millisecond)

		// 探测请求成功，熔断器闭合
		val, err := brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
			return "recovered", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "recovered", val)

		state, err = brk.State("svc")
		require.NoError(t, err)
		assert.Equal(t, StateClosed, state)
	})

	t.Run("半开探测失败则重新打开", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{
			Timeout:         100 * time.Millisecond,
			FailureRatio:    0.5,
			MinimumRequests: 2,
		})

		tripBreaker(t, brk, "svc", 2)
		time.Sleep(150 * time.Millisecond)

		_, err := brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
			return nil, errUpstream
		})
		assert.ErrorIs(t, err, errUpstream)

		state, err := brk.State("svc")
		require.NoError(t, err)
		assert.Equal(t, StateOpen, state)
	})

	t.Run("半开状态只放行一个探测请求", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{
			Timeout:         100 * time.Millisecond,
			FailureRatio:    0.5,
			MinimumRequests: 2,
		})

		tripBreaker(t, brk, "svc", 2)
		time.Sleep(150 * time.Millisecond)

		probeStarted := make(chan struct{})
		release := make(chan struct{})
		probeDone := make(chan error, 1)

		go func() {
			_, err := brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
				close(probeStarted)
				<-release
				return nil, nil
			})
			probeDone <- err
		}()

		<-probeStarted

		// 探测进行中，第二个请求按熔断打开处理
		var called atomic.Bool
		_, err := brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
			called.Store(true)
			return nil, nil
		})
		assert.ErrorIs(t, err, ErrOpenState)
		assert.False(t, called.Load())

		close(release)
		require.NoError(t, <-probeDone)
	})

	t.Run("不同 key 的熔断互不影响", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{
			Timeout:         time.Minute,
			FailureRatio:    0.5,
			MinimumRequests: 2,
		})

		tripBreaker(t, brk, "bad", 2)

		val, err := brk.Execute(ctx, "good", func(ctx context.Context) (any, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", val)
	})
}

// ============================================================
// 调用超时测试
// ============================================================

func TestCallTimeout(t *testing.T) {
	ctx := context.Background()

	t.Run("超时返回 ErrTimeout 并释放调用者", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{
			CallTimeout:     50 * time.Millisecond,
			MinimumRequests: 100,
		})

		start := time.Now()
		_, err := brk.Execute(ctx, "slow", func(ctx context.Context) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
		elapsed := time.Since(start)

		assert.ErrorIs(t, err, ErrTimeout)
		assert.Less(t, elapsed, time.Second)
	})

	t.Run("超时计为失败并参与熔断统计", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{
			Timeout:         time.Minute,
			FailureRatio:    0.5,
			MinimumRequests: 2,
			CallTimeout:     20 * time.Millisecond,
		})

		for i := 0; i < 2; i++ {
			_, err := brk.Execute(ctx, "slow", func(ctx context.Context) (any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})
			require.ErrorIs(t, err, ErrTimeout)
		}

		state, err := brk.State("slow")
		require.NoError(t, err)
		assert.Equal(t, StateOpen, state)
	})

	t.Run("未配置超时时不限制调用时长", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{MinimumRequests: 100})

		val, err := brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
			time.Sleep(50 * time.Millisecond)
			return "done", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "done", val)
	})
}

// ============================================================
// 降级与参数测试
// ============================================================

func TestFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("熔断打开时执行降级逻辑", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{
			Timeout:         time.Minute,
			FailureRatio:    0.5,
			MinimumRequests: 2,
		}, WithFallback(func(ctx context.Context, key string, err error) (any, error) {
			assert.ErrorIs(t, err, ErrOpenState)
			return "fallback-value", nil
		}))

		tripBreaker(t, brk, "svc", 2)

		val, err := brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "fallback-value", val)
	})
}

// ============================================================
// gRPC 拦截器测试
// ============================================================

func TestStreamClientInterceptor(t *testing.T) {
	t.Run("熔断打开时拒绝建流", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{
			Timeout:         time.Minute,
			FailureRatio:    0.5,
			MinimumRequests: 2,
		})
		tripBreaker(t, brk, "/pkg.Svc/Watch", 2)

		interceptor := brk.StreamClientInterceptor(WithKeyFunc(MethodLevelKey()))

		var streamerCalled atomic.Bool
		streamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
			streamerCalled.Store(true)
			return nil, nil
		}

		_, err := interceptor(context.Background(), &grpc.StreamDesc{}, nil, "/pkg.Svc/Watch", streamer)
		assert.ErrorIs(t, err, ErrOpenState)
		assert.False(t, streamerCalled.Load())
	})
}

func TestValidation(t *testing.T) {
	t.Run("空 key 返回错误", func(t *testing.T) {
		brk := newTestBreaker(t, nil)
		_, err := brk.Execute(context.Background(), "", func(ctx context.Context) (any, error) {
			return nil, nil
		})
		assert.ErrorIs(t, err, ErrKeyEmpty)
	})

	t.Run("未知 key 的状态查询", func(t *testing.T) {
		brk := newTestBreaker(t, nil)
		_, err := brk.State("unknown")
		assert.ErrorIs(t, err, ErrBreakerNotFound)
	})

	t.Run("非法失败率配置", func(t *testing.T) {
		_, err := New(&Config{FailureRatio: 1.5})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

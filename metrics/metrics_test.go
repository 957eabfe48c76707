package metrics

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("缺少命名空间返回错误", func(t *testing.T) {
		_, err := New(&Config{})
		assert.Error(t, err)
	})

	t.Run("默认配置创建成功", func(t *testing.T) {
		meter, err := New(nil)
		require.NoError(t, err)
		require.NotNil(t, meter)
		assert.NoError(t, meter.Shutdown(context.Background()))
	})
}

func TestInstruments(t *testing.T) {
	meter, err := New(&Config{Namespace: "test"})
	require.NoError(t, err)
	defer func() { _ = meter.Shutdown(context.Background()) }()

	ctx := context.Background()

	t.Run("同名仪表被复用", func(t *testing.T) {
		c1 := meter.Counter("requests")
		c2 := meter.Counter("requests")
		assert.Same(t, c1, c2)
	})

	t.Run("指标出现在 Prometheus 输出中", func(t *testing.T) {
		meter.Counter("hits").Inc(ctx, L("store", "memory"))
		meter.Counter("hits").Add(ctx, 2, L("store", "redis"))
		meter.Gauge("inflight").Set(ctx, 5)
		meter.Histogram("latency", WithUnit("ms")).Observe(ctx, 12.5)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/metrics", nil)
		meter.Handler().ServeHTTP(rec, req)

		body := rec.Body.String()
		assert.Contains(t, body, "test_hits")
		assert.Contains(t, body, `store="memory"`)
		assert.Contains(t, body, "test_inflight")
		assert.Contains(t, body, "test_latency")
	})
}

func TestDiscard(t *testing.T) {
	t.Run("空实现不 panic", func(t *testing.T) {
		meter := Discard()
		ctx := context.Background()
		meter.Counter("x").Inc(ctx)
		meter.Gauge("y").Set(ctx, 1)
		meter.Histogram("z").Observe(ctx, 1)
		assert.NoError(t, meter.Shutdown(ctx))
	})
}

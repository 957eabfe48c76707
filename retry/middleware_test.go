package retry_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/aegis/retry"
)

func newMiddlewareRouter(t *testing.T, orch retry.Orchestrator, counter *atomic.Int32) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/orders", orch.GinMiddleware(), func(c *gin.Context) {
		n := counter.Add(1)
		c.JSON(http.StatusCreated, gin.H{"order_id": n})
	})
	r.POST("/broken", orch.GinMiddleware(), func(c *gin.Context) {
		counter.Add(1)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	return r
}

func doRequest(r *gin.Engine, path, idemKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if idemKey != "" {
		req.Header.Set("X-Idempotency-Key", idemKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGinMiddlewareReplaysResponse(t *testing.T) {
	orch := newTestOrchestrator(t, &retry.Config{})
	var counter atomic.Int32
	r := newMiddlewareRouter(t, orch, &counter)

	w1 := doRequest(r, "/orders", "idem-1")
	assert.Equal(t, http.StatusCreated, w1.Code)
	assert.JSONEq(t, `{"order_id":1}`, w1.Body.String())

	// 同键重复请求：handler 不再执行，响应被回放
	w2 := doRequest(r, "/orders", "idem-1")
	assert.Equal(t, http.StatusCreated, w2.Code)
	assert.JSONEq(t, `{"order_id":1}`, w2.Body.String())
	assert.Equal(t, int32(1), counter.Load())

	// 不同键正常执行
	w3 := doRequest(r, "/orders", "idem-2")
	assert.Equal(t, http.StatusCreated, w3.Code)
	assert.JSONEq(t, `{"order_id":2}`, w3.Body.String())
}

func TestGinMiddlewareWithoutKeyPassesThrough(t *testing.T) {
	orch := newTestOrchestrator(t, &retry.Config{})
	var counter atomic.Int32
	r := newMiddlewareRouter(t, orch, &counter)

	w1 := doRequest(r, "/orders", "")
	w2 := doRequest(r, "/orders", "")
	require.Equal(t, http.StatusCreated, w1.Code)
	require.Equal(t, http.StatusCreated, w2.Code)

	// 无幂等键时每次请求都执行
	assert.Equal(t, int32(2), counter.Load())
}

func TestGinMiddlewareFailedHandlerBlocksRerun(t *testing.T) {
	orch := newTestOrchestrator(t, &retry.Config{})
	var counter atomic.Int32
	r := newMiddlewareRouter(t, orch, &counter)

	w1 := doRequest(r, "/broken", "idem-1")
	assert.Equal(t, http.StatusInternalServerError, w1.Code)
	assert.Equal(t, int32(1), counter.Load())

	// 失败已落定，同键重复请求返回 409 且不重跑 handler
	w2 := doRequest(r, "/broken", "idem-1")
	assert.Equal(t, http.StatusConflict, w2.Code)
	assert.Equal(t, int32(1), counter.Load())
}

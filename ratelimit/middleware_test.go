package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, limit Limit) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limiter, err := NewStandalone(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })

	r := gin.New()
	r.Use(GinMiddleware(limiter, nil, func(c *gin.Context) Limit {
		return limit
	}))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestGinMiddleware(t *testing.T) {
	t.Run("容量内的请求放行", func(t *testing.T) {
		r := newTestRouter(t, Limit{Rate: 1, Burst: 2})

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/ping", nil)
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("超出容量返回 429 和 Retry-After", func(t *testing.T) {
		r := newTestRouter(t, Limit{Rate: 1, Burst: 1})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("非法限流规则时放行", func(t *testing.T) {
		r := newTestRouter(t, Limit{Rate: 0, Burst: 0})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

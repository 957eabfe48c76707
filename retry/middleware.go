package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/xerrors"
)

// cachedResponse 缓存的 HTTP 响应
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// GinMiddleware 创建 Gin 幂等中间件
//
// 工作流程：
//  1. 从请求头提取幂等键，缺失时直接放行
//  2. 首次请求：执行 handler 并缓存 2xx 响应；非 2xx 视为失败落定，
//     同一幂等键的后续请求会收到 409
//  3. 重复请求：回放缓存的响应（状态码、响应头、响应体）
//  4. 同一幂等键的并发请求：等待首次请求落定后回放
//
// 使用示例：
//
//	r := gin.Default()
//	r.POST("/orders", orch.GinMiddleware(), createOrderHandler)
func (o *orchestrator) GinMiddleware(opts ...MiddlewareOption) gin.HandlerFunc {
	mo := middlewareOptions{
		headerKey: "X-Idempotency-Key",
	}
	for _, apply := range opts {
		apply(&mo)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(mo.headerKey)
		if key == "" {
			c.Next()
			return
		}

		executed := false
		// handler 不可重入，强制单次尝试
		result, err := o.Execute(c.Request.Context(), key, func(ctx context.Context) (any, error) {
			executed = true

			writer := &responseRecorder{
				ResponseWriter: c.Writer,
				body:           bytes.NewBuffer(nil),
			}
			c.Writer = writer

			c.Next()

			status := writer.Status()
			if status < 200 || status >= 300 {
				return nil, xerrors.Newf("retry: handler returned status %d", status)
			}

			resp := cachedResponse{
				Status: status,
				Header: cloneHeader(writer.Header()),
				Body:   append([]byte(nil), writer.body.Bytes()...),
			}
			resp.Header.Del("Content-Length")
			return json.Marshal(resp)
		}, WithPolicy(Policy{MaxAttempts: 1}))

		if executed {
			// 响应已由 handler 写出，成功与否都不再处理
			return
		}

		if err != nil {
			if xerrors.Is(err, ErrRecordFailed) {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"error": "operation previously failed for this idempotency key",
				})
				return
			}
			o.logger.Error("idempotency middleware failed",
				clog.String("key", key), clog.Err(err))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		if !writeCachedResponse(c, result) {
			o.logger.Error("failed to replay cached response", clog.String("key", key))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Abort()
	}
}

// writeCachedResponse 将缓存的响应写回客户端
func writeCachedResponse(c *gin.Context, result any) bool {
	var data []byte
	switch v := result.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return false
	}

	var resp cachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false
	}

	for name, values := range resp.Header {
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}
	c.Status(resp.Status)
	_, _ = c.Writer.Write(resp.Body)
	return true
}

func cloneHeader(header http.Header) http.Header {
	dup := make(http.Header, len(header))
	for k, v := range header {
		dup[k] = append([]string(nil), v...)
	}
	return dup
}

// responseRecorder 响应写入器包装器，用于捕获响应体
type responseRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

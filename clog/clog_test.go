package clog

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// 基础功能测试
// ============================================================

func TestNew(t *testing.T) {
	t.Run("默认配置创建成功", func(t *testing.T) {
		logger, err := New(nil)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("非法级别返回错误", func(t *testing.T) {
		_, err := New(&Config{Level: "verbose"})
		assert.Error(t, err)
	})

	t.Run("非法格式返回错误", func(t *testing.T) {
		_, err := New(&Config{Format: "xml"})
		assert.Error(t, err)
	})
}

func TestLogOutput(t *testing.T) {
	t.Run("json 格式输出包含字段", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&Config{Level: "debug", Format: "json"}, WithWriter(&buf))
		require.NoError(t, err)

		logger.Info("hello", String("key", "value"), Int("count", 3))

		out := buf.String()
		assert.Contains(t, out, `"msg":"hello"`)
		assert.Contains(t, out, `"key":"value"`)
		assert.Contains(t, out, `"count":3`)
	})

	t.Run("低于当前级别的日志被过滤", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&Config{Level: "warn", Format: "json"}, WithWriter(&buf))
		require.NoError(t, err)

		logger.Debug("invisible")
		logger.Info("invisible too")
		logger.Warn("visible")

		assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("SetLevel 动态调整级别", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&Config{Level: "info", Format: "json"}, WithWriter(&buf))
		require.NoError(t, err)

		logger.Debug("before")
		require.NoError(t, logger.SetLevel(DebugLevel))
		logger.Debug("after")

		assert.NotContains(t, buf.String(), "before")
		assert.Contains(t, buf.String(), "after")
	})
}

// ============================================================
// 派生 Logger 测试
// ============================================================

func TestWithNamespace(t *testing.T) {
	t.Run("命名空间逐级拼接", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&Config{Format: "json", Namespace: "aegis"}, WithWriter(&buf))
		require.NoError(t, err)

		child := logger.WithNamespace("cache", "redis")
		child.Info("hit")

		assert.Contains(t, buf.String(), `"namespace":"aegis.cache.redis"`)
	})

	t.Run("With 预设字段出现在每条日志中", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&Config{Format: "json"}, WithWriter(&buf))
		require.NoError(t, err)

		child := logger.With(String("component", "breaker"))
		child.Info("first")
		child.Warn("second")

		assert.Equal(t, 2, strings.Count(buf.String(), `"component":"breaker"`))
	})
}

func TestDiscard(t *testing.T) {
	t.Run("Discard 不产生任何输出且不 panic", func(t *testing.T) {
		logger := Discard()
		logger.Info("dropped", String("k", "v"))
		logger.ErrorContext(context.Background(), "dropped")
		assert.NotNil(t, logger.With(String("k", "v")))
		assert.NotNil(t, logger.WithNamespace("x"))
		assert.NoError(t, logger.SetLevel(DebugLevel))
	})
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

package xerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("包装非空错误保留错误链", func(t *testing.T) {
		base := New("base error")
		wrapped := Wrap(base, "context")

		require.Error(t, wrapped)
		assert.Equal(t, "context: base error", wrapped.Error())
		assert.True(t, Is(wrapped, base))
	})

	t.Run("包装 nil 返回 nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "context"))
		assert.NoError(t, Wrapf(nil, "context %d", 1))
	})

	t.Run("Wrapf 支持格式化", func(t *testing.T) {
		base := New("base")
		wrapped := Wrapf(base, "attempt %d", 3)
		assert.Equal(t, "attempt 3: base", wrapped.Error())
	})
}

func TestWithCode(t *testing.T) {
	t.Run("错误码可以从错误链中提取", func(t *testing.T) {
		base := New("connection refused")
		coded := WithCode(base, "CONN_REFUSED")

		assert.Equal(t, "CONN_REFUSED", GetCode(coded))
		assert.True(t, Is(coded, base))
	})

	t.Run("多层包装后仍能提取错误码", func(t *testing.T) {
		base := New("boom")
		coded := WithCode(base, "BOOM")
		wrapped := Wrap(coded, "outer")

		assert.Equal(t, "BOOM", GetCode(wrapped))
	})

	t.Run("无错误码返回空字符串", func(t *testing.T) {
		assert.Equal(t, "", GetCode(New("plain")))
		assert.Equal(t, "", GetCode(nil))
	})
}

func TestMust(t *testing.T) {
	t.Run("无错误返回值", func(t *testing.T) {
		v := Must(42, nil)
		assert.Equal(t, 42, v)
	})

	t.Run("有错误时 panic", func(t *testing.T) {
		assert.Panics(t, func() {
			Must(0, New("boom"))
		})
	})
}

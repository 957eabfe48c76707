package ratelimit

// Metrics 指标常量定义
const (
	// MetricAllowed 允许通过的请求数 (Counter)
	MetricAllowed = "ratelimit.allowed"

	// MetricDenied 被拒绝的请求数 (Counter)
	MetricDenied = "ratelimit.denied"

	// MetricErrors 限流器错误数 (Counter)
	MetricErrors = "ratelimit.errors"

	// LabelMode 模式标签 (standalone/distributed)
	LabelMode = "mode"
)

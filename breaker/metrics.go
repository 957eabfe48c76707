package breaker

// Metrics 指标常量定义
const (
	// MetricRequestsTotal 请求总数 (Counter)
	MetricRequestsTotal = "breaker.requests"

	// MetricSuccessTotal 成功请求数 (Counter)
	MetricSuccessTotal = "breaker.success"

	// MetricFailuresTotal 失败请求数 (Counter)
	MetricFailuresTotal = "breaker.failures"

	// MetricRejectsTotal 被熔断拒绝的请求数 (Counter)
	MetricRejectsTotal = "breaker.rejects"

	// MetricTimeoutsTotal 超时请求数 (Counter)
	MetricTimeoutsTotal = "breaker.timeouts"

	// MetricStateChanges 状态变更次数 (Counter)
	MetricStateChanges = "breaker.state_changes"

	// MetricRequestDuration 请求耗时 (Histogram)
	MetricRequestDuration = "breaker.request_duration"

	// LabelKey 熔断键标签
	LabelKey = "key"

	// LabelMethod 方法标签
	LabelMethod = "method"

	// LabelResult 结果标签 (success/failure)
	LabelResult = "result"

	// LabelFromState 变更前状态标签
	LabelFromState = "from"

	// LabelToState 变更后状态标签
	LabelToState = "to"
)

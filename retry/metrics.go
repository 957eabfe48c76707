package retry

// Metrics 指标常量定义
const (
	// MetricExecutions 首次执行数 (Counter)
	MetricExecutions = "retry.executions"

	// MetricAttempts 操作尝试总数，含重试 (Counter)
	MetricAttempts = "retry.attempts"

	// MetricReplays 完成记录回放数 (Counter)
	MetricReplays = "retry.replays"

	// MetricFailures 终态失败数 (Counter)
	MetricFailures = "retry.failures"

	// MetricJoins 等待方加入 pending 记录数 (Counter)
	MetricJoins = "retry.joins"

	// MetricClears 记录清除数 (Counter)
	MetricClears = "retry.clears"

	// LabelMode 模式标签 (standalone/distributed)
	LabelMode = "mode"
)

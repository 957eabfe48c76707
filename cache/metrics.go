package cache

// Metrics 指标常量定义
const (
	// MetricHits 新鲜命中数 (Counter)
	MetricHits = "cache.hits"

	// MetricStaleHits 陈旧命中数 (Counter)
	MetricStaleHits = "cache.stale_hits"

	// MetricMisses 未命中数 (Counter)
	MetricMisses = "cache.misses"

	// MetricRefreshes 后台刷新触发数 (Counter)
	MetricRefreshes = "cache.refreshes"

	// MetricRefreshFailures 后台刷新失败数 (Counter)
	MetricRefreshFailures = "cache.refresh_failures"

	// MetricDegraded 故障降级返回数 (Counter)
	MetricDegraded = "cache.degraded"

	// MetricInvalidations 失效操作数 (Counter)
	MetricInvalidations = "cache.invalidations"

	// LabelMode 模式标签 (standalone/distributed)
	LabelMode = "mode"
)

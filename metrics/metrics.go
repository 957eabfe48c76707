// Package metrics 为 Aegis 组件库提供统一的指标采集契约。
//
// 底层基于 OpenTelemetry SDK，通过 Prometheus exporter 暴露指标。
// 各组件只依赖本包的 Meter 接口，并通过 WithMeter 注入；
// 未注入时组件使用空实现，指标调用为零开销。
//
// 基本使用：
//
//	meter, _ := metrics.New(&metrics.Config{Namespace: "gateway"})
//	hits := meter.Counter("cache.hits")
//	hits.Inc(ctx, metrics.L("store", "memory"))
//	http.Handle("/metrics", meter.Handler())
package metrics

// New 创建一个基于 OpenTelemetry + Prometheus 的 Meter
func New(config *Config, opts ...Option) (Meter, error) {
	if config == nil {
		config = NewDevDefaultConfig("aegis")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	return newMeter(config, &opt)
}

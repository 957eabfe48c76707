package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option 创建 Meter 时的可选配置
type Option func(*options)

type options struct {
	registry *prometheus.Registry
}

// WithRegistry 使用外部 Prometheus Registry，
// 便于与应用已有的指标端点共用一个 Registry。
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

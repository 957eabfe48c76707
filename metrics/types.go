package metrics

import (
	"context"
	"net/http"
)

// Meter 指标采集接口
//
// 同名仪表会被复用，多次调用 Counter("x") 返回同一个实例。
type Meter interface {
	// Counter 获取或创建一个单调递增计数器
	Counter(name string, opts ...InstrumentOption) Counter
	// Gauge 获取或创建一个可任意设置的仪表
	Gauge(name string, opts ...InstrumentOption) Gauge
	// Histogram 获取或创建一个直方图
	Histogram(name string, opts ...InstrumentOption) Histogram
	// Handler 返回 Prometheus 格式的指标暴露端点
	Handler() http.Handler
	// Shutdown 关闭底层 MeterProvider
	Shutdown(ctx context.Context) error
}

// Counter 单调递增计数器
type Counter interface {
	Inc(ctx context.Context, labels ...Label)
	Add(ctx context.Context, delta float64, labels ...Label)
}

// Gauge 可任意设置的仪表
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

// Histogram 直方图，记录值的分布
type Histogram interface {
	Observe(ctx context.Context, value float64, labels ...Label)
}

// InstrumentOption 创建仪表时的可选配置
type InstrumentOption func(*instrumentOptions)

type instrumentOptions struct {
	description string
	unit        string
}

// WithDescription 设置仪表描述
func WithDescription(desc string) InstrumentOption {
	return func(o *instrumentOptions) {
		o.description = desc
	}
}

// WithUnit 设置仪表单位，如 "ms"、"By"
func WithUnit(unit string) InstrumentOption {
	return func(o *instrumentOptions) {
		o.unit = unit
	}
}

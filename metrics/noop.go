package metrics

import (
	"context"
	"net/http"
)

// Discard 返回一个丢弃所有指标的 Meter，用于测试或禁用指标
func Discard() Meter {
	return noopMeter{}
}

type noopMeter struct{}

func (noopMeter) Counter(string, ...InstrumentOption) Counter     { return noopCounter{} }
func (noopMeter) Gauge(string, ...InstrumentOption) Gauge         { return noopGauge{} }
func (noopMeter) Histogram(string, ...InstrumentOption) Histogram { return noopHistogram{} }
func (noopMeter) Handler() http.Handler                           { return http.NotFoundHandler() }
func (noopMeter) Shutdown(context.Context) error                  { return nil }

type noopCounter struct{}

func (noopCounter) Inc(context.Context, ...Label)          {}
func (noopCounter) Add(context.Context, float64, ...Label) {}

type noopGauge struct{}

func (noopGauge) Set(context.Context, float64, ...Label) {}

type noopHistogram struct{}

func (noopHistogram) Observe(context.Context, float64, ...Label) {}

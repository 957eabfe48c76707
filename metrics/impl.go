package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// otelMeter 基于 OpenTelemetry SDK + Prometheus exporter 的 Meter 实现
type otelMeter struct {
	provider  *sdkmetric.MeterProvider
	meter     metric.Meter
	registry  *prometheus.Registry
	namespace string

	mu         sync.Mutex
	counters   map[string]Counter
	gauges     map[string]Gauge
	histograms map[string]Histogram
}

func newMeter(config *Config, opt *options) (Meter, error) {
	registry := opt.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(config.Namespace))
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res))

	return &otelMeter{
		provider:   provider,
		meter:      provider.Meter(config.Namespace),
		registry:   registry,
		namespace:  config.Namespace,
		counters:   make(map[string]Counter),
		gauges:     make(map[string]Gauge),
		histograms: make(map[string]Histogram),
	}, nil
}

func (m *otelMeter) fullName(name string) string {
	return m.namespace + "." + name
}

func (m *otelMeter) Counter(name string, opts ...InstrumentOption) Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c
	}

	io := applyInstrumentOptions(opts)
	c, err := m.meter.Float64Counter(m.fullName(name),
		metric.WithDescription(io.description), metric.WithUnit(io.unit))
	if err != nil {
		return noopCounter{}
	}
	wrapped := &otelCounter{counter: c}
	m.counters[name] = wrapped
	return wrapped
}

func (m *otelMeter) Gauge(name string, opts ...InstrumentOption) Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gauges[name]; ok {
		return g
	}

	io := applyInstrumentOptions(opts)
	g, err := m.meter.Float64Gauge(m.fullName(name),
		metric.WithDescription(io.description), metric.WithUnit(io.unit))
	if err != nil {
		return noopGauge{}
	}
	wrapped := &otelGauge{gauge: g}
	m.gauges[name] = wrapped
	return wrapped
}

func (m *otelMeter) Histogram(name string, opts ...InstrumentOption) Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.histograms[name]; ok {
		return h
	}

	io := applyInstrumentOptions(opts)
	h, err := m.meter.Float64Histogram(m.fullName(name),
		metric.WithDescription(io.description), metric.WithUnit(io.unit))
	if err != nil {
		return noopHistogram{}
	}
	wrapped := &otelHistogram{histogram: h}
	m.histograms[name] = wrapped
	return wrapped
}

func (m *otelMeter) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *otelMeter) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

func applyInstrumentOptions(opts []InstrumentOption) *instrumentOptions {
	io := &instrumentOptions{}
	for _, o := range opts {
		o(io)
	}
	return io
}

// ========================================
// 仪表包装
// ========================================

type otelCounter struct {
	counter metric.Float64Counter
}

func (c *otelCounter) Inc(ctx context.Context, labels ...Label) {
	c.Add(ctx, 1, labels...)
}

func (c *otelCounter) Add(ctx context.Context, delta float64, labels ...Label) {
	c.counter.Add(ctx, delta, metric.WithAttributes(toAttributes(labels)...))
}

type otelGauge struct {
	gauge metric.Float64Gauge
}

func (g *otelGauge) Set(ctx context.Context, value float64, labels ...Label) {
	g.gauge.Record(ctx, value, metric.WithAttributes(toAttributes(labels)...))
}

type otelHistogram struct {
	histogram metric.Float64Histogram
}

func (h *otelHistogram) Observe(ctx context.Context, value float64, labels ...Label) {
	h.histogram.Record(ctx, value, metric.WithAttributes(toAttributes(labels)...))
}

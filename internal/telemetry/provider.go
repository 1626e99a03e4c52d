// Package telemetry wires the §6 metrics sink onto OpenTelemetry
// instruments: counters and gauges named `/santa/fam_enabled`,
// `/santa/file_access_event/{version,name,status,event_type,decision}`,
// `/santa/device_manager/startup_disk_operation`,
// `/santa/device_manager/startup_preference`, and a rate-limited-events
// counter. Instruments are created lazily, one per distinct metric name,
// the same way the teacher's MCPInstruments pre-declares one instrument
// per concern rather than building a registry on every call.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config controls whether OTel instrumentation is active.
type Config struct {
	ServiceName string
	Enabled     bool
}

// Provider owns the OTel meter provider and the lazily created named
// instruments backing the §6 metrics sink. It implements
// collab.MetricsSink.
type Provider struct {
	enabled bool
	meter   metric.Meter

	tracerProvider *sdktrace.TracerProvider

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
	gauges   map[string]metric.Float64Gauge
}

// Setup constructs a Provider. A stdout trace exporter is wired for
// local/test visibility; the production exporter is an out-of-scope
// concern named by the system this core is embedded in.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{
		counters: make(map[string]metric.Int64Counter),
		gauges:   make(map[string]metric.Float64Gauge),
	}
	if !cfg.Enabled {
		return p, nil
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "authcored"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", name)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewManualReader()),
		sdkmetric.WithResource(res),
	)
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: init stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithMaxExportBatchSize(64)),
		sdktrace.WithResource(res),
	)

	p.enabled = true
	p.meter = mp.Meter("github.com/wardsec/authcore/internal/telemetry")
	p.tracerProvider = tp
	return p, nil
}

// Shutdown flushes the tracer provider if one was started.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}

// IncCounter implements collab.MetricsSink: add delta to the named
// counter, with labels attached as attributes.
func (p *Provider) IncCounter(name string, labels map[string]string, delta int64) {
	if p == nil || !p.enabled {
		return
	}
	c := p.counterFor(name)
	if c == nil {
		return
	}
	c.Add(context.Background(), delta, metric.WithAttributes(attrsFrom(labels)...))
}

// SetGauge implements collab.MetricsSink: record value on the named
// gauge, with labels attached as attributes.
func (p *Provider) SetGauge(name string, labels map[string]string, value float64) {
	if p == nil || !p.enabled {
		return
	}
	g := p.gaugeFor(name)
	if g == nil {
		return
	}
	g.Record(context.Background(), value, metric.WithAttributes(attrsFrom(labels)...))
}

func (p *Provider) counterFor(name string) metric.Int64Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[name]; ok {
		return c
	}
	c, err := p.meter.Int64Counter(instrumentName(name))
	if err != nil {
		return nil
	}
	p.counters[name] = c
	return c
}

func (p *Provider) gaugeFor(name string) metric.Float64Gauge {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.gauges[name]; ok {
		return g
	}
	g, err := p.meter.Float64Gauge(instrumentName(name))
	if err != nil {
		return nil
	}
	p.gauges[name] = g
	return g
}

func attrsFrom(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

// instrumentName converts the santa-style path metric name
// ("/santa/file_access_event") into the dotted form OTel instrument
// naming conventions expect.
func instrumentName(name string) string {
	trimmed := strings.Trim(name, "/")
	return strings.ReplaceAll(trimmed, "/", ".")
}

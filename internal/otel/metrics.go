package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig holds configuration for metrics export.
type MetricsConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	ExporterType   ExporterType
	OTLPEndpoint   string
	OTLPInsecure   bool
	Attributes     map[string]string
}

// DefaultMetricsConfig returns a default configuration with metrics disabled.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      false,
		ServiceName:  "codecoach",
		ExporterType: ExporterNone,
	}
}

// Metrics wraps the client's metric instruments. With export disabled the
// instruments still exist against an unreadable provider, so recording is
// always safe.
type Metrics struct {
	config        *MetricsConfig
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	shutdown      func(context.Context) error

	turnLatency      metric.Float64Histogram
	timeToFirstDelta metric.Float64Histogram
	deltaCounter     metric.Int64Counter
	streamCounter    metric.Int64Counter
	fallbackCounter  metric.Int64Counter
	scoreHistogram   metric.Int64Histogram
}

// NewMetrics creates a Metrics instance.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{config: cfg}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		if err := m.registerInstruments(); err != nil {
			return nil, err
		}
		return m, nil
	}

	exporter, err := m.createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := buildResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}

	return m, nil
}

func (m *Metrics) createExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

func (m *Metrics) registerInstruments() error {
	var err error

	m.turnLatency, err = m.meter.Float64Histogram(
		"codecoach.chat.turn_latency",
		metric.WithDescription("End-to-end latency of chat turns"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create turn latency histogram: %w", err)
	}

	m.timeToFirstDelta, err = m.meter.Float64Histogram(
		"codecoach.stream.time_to_first_delta",
		metric.WithDescription("Time from stream open to first delta"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create first delta histogram: %w", err)
	}

	m.deltaCounter, err = m.meter.Int64Counter(
		"codecoach.stream.deltas",
		metric.WithDescription("Count of streamed text deltas"),
	)
	if err != nil {
		return fmt.Errorf("failed to create delta counter: %w", err)
	}

	m.streamCounter, err = m.meter.Int64Counter(
		"codecoach.stream.completed",
		metric.WithDescription("Count of completed responses by protocol"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stream counter: %w", err)
	}

	m.fallbackCounter, err = m.meter.Int64Counter(
		"codecoach.fallbacks",
		metric.WithDescription("Count of local fallbacks by kind"),
	)
	if err != nil {
		return fmt.Errorf("failed to create fallback counter: %w", err)
	}

	m.scoreHistogram, err = m.meter.Int64Histogram(
		"codecoach.score.overall",
		metric.WithDescription("Distribution of overall scores"),
	)
	if err != nil {
		return fmt.Errorf("failed to create score histogram: %w", err)
	}

	return nil
}

// RecordTurn records one finished chat turn.
func (m *Metrics) RecordTurn(ctx context.Context, latency time.Duration, streaming bool, deltas int, firstDelta time.Duration) {
	protocol := "json"
	if streaming {
		protocol = "sse"
	}
	attrs := metric.WithAttributes(attribute.String("protocol", protocol))
	m.turnLatency.Record(ctx, float64(latency.Milliseconds()), attrs)
	m.streamCounter.Add(ctx, 1, attrs)
	m.deltaCounter.Add(ctx, int64(deltas), attrs)
	if streaming && deltas > 0 {
		m.timeToFirstDelta.Record(ctx, float64(firstDelta.Milliseconds()), attrs)
	}
}

// RecordFallback records one local fallback, kind "exec" or "score".
func (m *Metrics) RecordFallback(ctx context.Context, kind string) {
	m.fallbackCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordScore records one overall score.
func (m *Metrics) RecordScore(ctx context.Context, overall int, fallback bool) {
	m.scoreHistogram.Record(ctx, int64(overall),
		metric.WithAttributes(attribute.Bool("fallback", fallback)))
}

// Shutdown flushes pending metrics.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.shutdown(ctx)
}

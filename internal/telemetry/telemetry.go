// Package telemetry exports analysis metrics and traces over OTLP. With
// telemetry disabled every call degrades to a no-op, so callers never need
// to nil-check before recording.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Config controls telemetry setup.
type Config struct {
	Enabled  bool
	Endpoint string
	Protocol string // grpc | http
	Service  string
	Version  string
}

// Provider owns the tracer, the meter and the analysis instruments.
type Provider struct {
	Enabled bool

	tracer trace.Tracer
	meter  metric.Meter

	analyses metric.Int64Counter
	scores   metric.Int64Histogram
	latency  metric.Float64Histogram

	shutdowns []func(context.Context) error
}

// NewProvider sets up OTLP exporters for the configured protocol. A disabled
// config yields a provider whose instruments all discard.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !cfg.Enabled {
		p := &Provider{
			tracer: tracenoop.NewTracerProvider().Tracer(""),
			meter:  metricnoop.NewMeterProvider().Meter(""),
		}
		p.makeInstruments()
		return p, nil
	}

	proto := strings.ToLower(cfg.Protocol)
	if proto == "" {
		proto = "grpc"
	}

	log.Printf("telemetry: exporting via OTLP/%s to %s (upload warnings are expected when no collector is listening)", proto, cfg.Endpoint)

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.Service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	traceExp, err := newTraceExporter(ctx, proto, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	metricExp, err := newMetricExporter(ctx, proto, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	p := &Provider{
		Enabled:   true,
		tracer:    tp.Tracer(cfg.Service),
		meter:     mp.Meter(cfg.Service),
		shutdowns: []func(context.Context) error{tp.Shutdown, mp.Shutdown},
	}
	p.makeInstruments()
	return p, nil
}

func newTraceExporter(ctx context.Context, proto, endpoint string) (sdktrace.SpanExporter, error) {
	switch proto {
	case "grpc":
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	case "http":
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", proto)
	}
}

func newMetricExporter(ctx context.Context, proto, endpoint string) (sdkmetric.Exporter, error) {
	switch proto {
	case "grpc":
		return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure())
	case "http":
		return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", proto)
	}
}

// Instrument creation errors are swallowed: telemetry is best-effort and must
// never take the analysis path down with it.
func (p *Provider) makeInstruments() {
	p.analyses, _ = p.meter.Int64Counter("squatchscan_analyses_total")
	p.scores, _ = p.meter.Int64Histogram("squatchscan_score")
	p.latency, _ = p.meter.Float64Histogram("squatchscan_vision_duration_ms")
}

func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

// Shutdown flushes pending spans and metric batches.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	for _, fn := range p.shutdowns {
		_ = fn(ctx)
	}
}

// RecordAnalysis emits the instruments for one completed analysis. Outcome
// and verdict come from fixed vocabularies, which keeps label cardinality
// bounded; visionMs of zero means the classifier was never reached.
func (p *Provider) RecordAnalysis(outcome, verdict, providerName string, score int, visionMs float64) {
	if p == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("squatchscan.outcome", outcome),
		attribute.String("squatchscan.verdict", verdict),
		attribute.String("squatchscan.provider", providerName),
	)
	ctx := context.Background()
	p.analyses.Add(ctx, 1, attrs)
	p.scores.Record(ctx, int64(score), attrs)
	if visionMs > 0 {
		p.latency.Record(ctx, visionMs, attrs)
	}
}

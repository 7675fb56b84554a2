package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/BlagoCuljak/ApiPosture/internal/config"
	"github.com/BlagoCuljak/ApiPosture/internal/core"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

type telemetry struct {
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider

	scanDuration    metric.Float64Histogram
	fileCounter     metric.Int64Counter
	endpointCounter metric.Int64Counter
	findingCounter  metric.Int64Counter
}

// New bootstraps the OTLP trace exporter and the scan metrics. A disabled
// config yields a no-op implementation.
func New(ctx context.Context, cfg config.TelemetryConfig) (core.Telemetry, error) {
	if !cfg.Enabled {
		return &noopTelemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.ExporterType {
	case "otlp":
		client := otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	meter := otel.Meter(cfg.ServiceName)

	scanDuration, err := meter.Float64Histogram("apiposture.scan.duration",
		metric.WithDescription("Scan duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	fileCounter, err := meter.Int64Counter("apiposture.files.total",
		metric.WithDescription("Files processed, by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	endpointCounter, err := meter.Int64Counter("apiposture.endpoints.total",
		metric.WithDescription("Endpoints discovered, by posture"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	findingCounter, err := meter.Int64Counter("apiposture.findings.total",
		metric.WithDescription("Findings emitted, by severity"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:          tp.Tracer(cfg.ServiceName),
		tracerProvider:  tp,
		scanDuration:    scanDuration,
		fileCounter:     fileCounter,
		endpointCounter: endpointCounter,
		findingCounter:  findingCounter,
	}, nil
}

func (t *telemetry) RecordScan(duration float64, filesScanned, filesFailed int) {
	ctx := context.Background()
	t.scanDuration.Record(ctx, duration)
	t.fileCounter.Add(ctx, int64(filesScanned), metric.WithAttributes(attribute.String("outcome", "scanned")))
	t.fileCounter.Add(ctx, int64(filesFailed), metric.WithAttributes(attribute.String("outcome", "failed")))
}

func (t *telemetry) RecordEndpoint(posture types.PostureClass) {
	t.endpointCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("posture", string(posture))))
}

func (t *telemetry) RecordFinding(severity types.Severity) {
	t.findingCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("severity", string(severity))))
}

func (t *telemetry) Close(ctx context.Context) error {
	if t.tracerProvider == nil {
		return nil
	}
	return t.tracerProvider.Shutdown(ctx)
}

type noopTelemetry struct{}

func (n *noopTelemetry) RecordScan(duration float64, filesScanned, filesFailed int) {}
func (n *noopTelemetry) RecordEndpoint(posture types.PostureClass)                  {}
func (n *noopTelemetry) RecordFinding(severity types.Severity)                      {}
func (n *noopTelemetry) Close(ctx context.Context) error                            { return nil }

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	ExporterNone       = "none"
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
)

// Telemetry holds all telemetry instruments and providers.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	registry       *prom.Registry

	clientOperationsTotal   metric.Int64Counter
	clientErrors            metric.Int64Counter
	clientOperationDuration metric.Float64Histogram
	downloadsTotal          metric.Int64Counter
	downloadsActive         metric.Int64UpDownCounter
	downloadDuration        metric.Float64Histogram
	downloadedBytes         metric.Int64Counter
}

// Config holds telemetry configuration.
type Config struct {
	Exporter       string
	ServiceName    string
	ServiceVersion string
}

// New creates a new telemetry instance. Tracing is always enabled so that log
// records carry trace and span ids; metrics are only recorded when an exporter is set.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))

	t := &Telemetry{
		tracerProvider: tp,
		tracer:         tp.Tracer(cfg.ServiceName),
	}

	var reader sdkmetric.Reader

	switch cfg.Exporter {
	case ExporterNone, "":
		return t, nil
	case ExporterPrometheus:
		t.registry = prom.NewRegistry()

		exporter, err := prometheus.New(prometheus.WithRegisterer(t.registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		reader = exporter
	case ExporterOTLP:
		exporter, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}

		reader = sdkmetric.NewPeriodicReader(exporter)
	default:
		return nil, fmt.Errorf("unknown telemetry exporter: %s", cfg.Exporter)
	}

	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	t.meter = t.meterProvider.Meter(cfg.ServiceName)

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := runtime.Start(runtime.WithMeterProvider(t.meterProvider)); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	return t, nil
}

// Tracer returns the OpenTelemetry tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// MetricsEnabled reports whether metrics are being recorded.
func (t *Telemetry) MetricsEnabled() bool {
	return t != nil && t.meterProvider != nil
}

// Handler returns the HTTP handler for the metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t == nil || t.registry == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// RecordClientOperation records media server API operation metrics.
func (t *Telemetry) RecordClientOperation(ctx context.Context, operation, status string, seconds float64) {
	if t == nil || t.clientOperationsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)

	t.clientOperationsTotal.Add(ctx, 1, attrs)
	t.clientOperationDuration.Record(ctx, seconds, attrs)

	if status == "error" {
		t.clientErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
	}
}

// RecordDownload records the outcome of a single item.
func (t *Telemetry) RecordDownload(ctx context.Context, status string, bytes int64) {
	if t == nil || t.downloadsTotal == nil {
		return
	}

	t.downloadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))

	if bytes > 0 {
		t.downloadedBytes.Add(ctx, bytes)
	}
}

func (t *Telemetry) incrementActiveDownloads(ctx context.Context, delta int64) {
	if t.downloadsActive != nil {
		t.downloadsActive.Add(ctx, delta)
	}
}

func (t *Telemetry) recordDownloadDuration(ctx context.Context, status string, seconds float64) {
	if t.downloadDuration != nil {
		t.downloadDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("status", status)))
	}
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error

	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}

	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	t.clientOperationsTotal, err = t.meter.Int64Counter(
		"client_operations_total",
		metric.WithDescription("Total number of media server API operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create client_operations_total counter: %w", err)
	}

	t.clientErrors, err = t.meter.Int64Counter(
		"client_errors_total",
		metric.WithDescription("Total number of media server API errors"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create client_errors counter: %w", err)
	}

	t.clientOperationDuration, err = t.meter.Float64Histogram(
		"client_operation_duration_seconds",
		metric.WithDescription("Media server API operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create client_operation_duration histogram: %w", err)
	}

	t.downloadsTotal, err = t.meter.Int64Counter(
		"downloads_total",
		metric.WithDescription("Total number of processed items by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloads_total counter: %w", err)
	}

	t.downloadsActive, err = t.meter.Int64UpDownCounter(
		"downloads_active",
		metric.WithDescription("Number of active downloads"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloads_active counter: %w", err)
	}

	t.downloadDuration, err = t.meter.Float64Histogram(
		"download_duration_seconds",
		metric.WithDescription("Download duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create download_duration histogram: %w", err)
	}

	t.downloadedBytes, err = t.meter.Int64Counter(
		"downloaded_bytes_total",
		metric.WithDescription("Total number of bytes written to disk"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloaded_bytes counter: %w", err)
	}

	return nil
}

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span and metric attributes must stay low cardinality: operation names and
// statuses only. Item ids, names and paths belong in log records.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation runs fn inside a span named after the operation.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	))

	defer span.End()

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentClientOperation instruments media server API operations.
func (t *Telemetry) InstrumentClientOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "client_"+operation, "media_client", fn)

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordClientOperation(ctx, operation, status, time.Since(start).Seconds())

	return err
}

// InstrumentDownload instruments the processing of a single item. fn returns the
// outcome label recorded on the duration histogram.
func (t *Telemetry) InstrumentDownload(ctx context.Context, fn func(ctx context.Context) (string, error)) error {
	if t == nil {
		_, err := fn(ctx)

		return err
	}

	start := time.Now()

	t.incrementActiveDownloads(ctx, 1)
	defer t.incrementActiveDownloads(ctx, -1)

	var status string

	err := t.InstrumentOperation(ctx, "download_item", "downloader", func(ctx context.Context) error {
		var err error

		status, err = fn(ctx)

		return err
	})

	t.recordDownloadDuration(ctx, status, time.Since(start).Seconds())

	return err
}

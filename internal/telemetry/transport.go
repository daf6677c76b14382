package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/italolelis/jellyfin_downloader/internal/logctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ctxKey string

const (
	requestIDKey    ctxKey = "request_id"
	RequestIDHeader        = "X-Request-ID"
)

// Transport wraps base with OpenTelemetry instrumentation, a per-request
// X-Request-ID header and request logging. A nil Telemetry skips the instrumentation.
func (t *Telemetry) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	var rt http.RoundTripper = &requestIDTransport{next: &loggingTransport{next: base}}

	if t == nil || t.tracerProvider == nil {
		return rt
	}

	opts := []otelhttp.Option{otelhttp.WithTracerProvider(t.tracerProvider)}
	if t.meterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(t.meterProvider))
	}

	return otelhttp.NewTransport(rt, opts...)
}

// requestIDTransport tags every outbound request with a unique X-Request-ID,
// reusing one already set by the caller.
type requestIDTransport struct {
	next http.RoundTripper
}

func (rt *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	ctx := context.WithValue(req.Context(), requestIDKey, requestID)

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(ctx)
	req.Header.Set(RequestIDHeader, requestID)

	return rt.next.RoundTrip(req)
}

// GetRequestID retrieves the request_id from context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// loggingTransport logs each outbound request with a level based on the outcome.
type loggingTransport struct {
	next http.RoundTripper
}

func (rt *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	logger := logctx.LoggerFromContext(ctx)
	start := time.Now()

	resp, err := rt.next.RoundTrip(req)

	attrs := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", GetRequestID(ctx),
	}

	switch {
	case err != nil:
		logger.ErrorContext(ctx, "http request failed", append(attrs, "err", err)...)
	case resp.StatusCode >= 500:
		logger.ErrorContext(ctx, "http request completed", append(attrs, "status", resp.StatusCode)...)
	case resp.StatusCode >= 400:
		logger.WarnContext(ctx, "http request completed", append(attrs, "status", resp.StatusCode)...)
	default:
		logger.DebugContext(ctx, "http request completed", append(attrs, "status", resp.StatusCode)...)
	}

	return resp, err
}

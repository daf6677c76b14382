package telemetry

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// NewServer exposes the metrics endpoint on addr for the lifetime of ctx.
func NewServer(ctx context.Context, addr string, t *Telemetry) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", t.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

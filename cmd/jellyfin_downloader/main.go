package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/italolelis/jellyfin_downloader/internal/config"
	"github.com/italolelis/jellyfin_downloader/internal/downloader"
	"github.com/italolelis/jellyfin_downloader/internal/jellyfin"
	"github.com/italolelis/jellyfin_downloader/internal/library"
	"github.com/italolelis/jellyfin_downloader/internal/logctx"
	"github.com/italolelis/jellyfin_downloader/internal/media"
	"github.com/italolelis/jellyfin_downloader/internal/notifier"
	"github.com/italolelis/jellyfin_downloader/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(newLogHandler(cfg)))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logctx.WithRunID(logctx.WithLogger(ctx, logger), uuid.NewString())

	logger.InfoContext(ctx, "jellyfin downloader starting...",
		"log_level", cfg.LogLevel,
		"server", cfg.JellyfinURL,
		"download_path", cfg.DownloadPath,
		"dry_run", bool(cfg.DryRun),
	)

	if err := run(ctx, cfg); err != nil {
		logger.ErrorContext(ctx, "fatal error", "err", err)
		stop()
		os.Exit(1)
	}
}

func newLogHandler(cfg *config.Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.NewTextHandler(os.Stdout, opts)
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Exporter:       cfg.Telemetry.Exporter,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Client.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(ctx, "failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Media Server Client
	client := jellyfin.NewClient(cfg.JellyfinURL, jellyfin.Identity{
		Client:   cfg.Client.Name,
		Device:   cfg.Client.Device,
		DeviceID: cfg.Client.DeviceID,
		Version:  cfg.Client.Version,
	}, jellyfin.WithTransport(tel.Transport(nil)))

	instrumented := media.NewInstrumentedClient(client, tel)

	// =========================================================================
	// Start Downloader
	dl := downloader.NewDownloader(cfg.DownloadPath, instrumented, buildDownloaderOptions(cfg, tel)...)

	var opts []library.Option
	if cfg.DiscordWebhookURL != "" {
		opts = append(opts, library.WithNotifier(notifier.NewDiscordNotifier(cfg.DiscordWebhookURL, nil)))
	}

	orchestrator := library.NewOrchestrator(instrumented, dl, media.Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
	}, opts...)

	// =========================================================================
	// Run
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	if cfg.Telemetry.Exporter == telemetry.ExporterPrometheus {
		startMetricsServer(ctx, gctx, g, done, cfg.Telemetry.MetricsAddress, tel)
	}

	var report *library.Report

	g.Go(func() error {
		defer close(done)

		return tel.InstrumentOperation(gctx, "sync_library", "library", func(ctx context.Context) error {
			var err error

			report, err = orchestrator.Run(ctx)

			return err
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if ctx.Err() != nil {
		logger.WarnContext(ctx, "interrupted, partially written files may remain", "download_path", cfg.DownloadPath)
	}

	fmt.Fprintln(os.Stdout, report.Summary())

	return nil
}

func buildDownloaderOptions(cfg *config.Config, tel *telemetry.Telemetry) []downloader.Option {
	opts := []downloader.Option{
		downloader.WithDryRun(bool(cfg.DryRun)),
		downloader.WithRateLimit(uint64(cfg.RateLimit)),
		downloader.WithTelemetry(tel),
	}

	if cfg.ProgressBar {
		opts = append(opts, downloader.WithProgressBar(os.Stdout))
	}

	return opts
}

// startMetricsServer serves the metrics endpoint until done is closed or the group fails.
func startMetricsServer(ctx, gctx context.Context, g *errgroup.Group, done <-chan struct{}, addr string, tel *telemetry.Telemetry) {
	logger := logctx.LoggerFromContext(ctx)
	server := telemetry.NewServer(gctx, addr, tel)

	g.Go(func() error {
		logger.InfoContext(ctx, "serving metrics", "address", addr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		select {
		case <-done:
		case <-gctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(ctx, "failed to gracefully shutdown the metrics server", "err", err)

			return server.Close()
		}

		return nil
	})
}

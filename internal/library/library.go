// Package library synchronizes the video catalog of a media server into a local directory.
package library

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/jellyfin_downloader/internal/downloader"
	"github.com/italolelis/jellyfin_downloader/internal/logctx"
	"github.com/italolelis/jellyfin_downloader/internal/media"
	"github.com/italolelis/jellyfin_downloader/internal/notifier"
)

type Orchestrator struct {
	client     media.Client
	downloader *downloader.Downloader
	creds      media.Credentials
	notifier   notifier.Notifier
}

type Option func(*Orchestrator)

// WithNotifier sends the run summary through n once the run ends.
func WithNotifier(n notifier.Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

func NewOrchestrator(client media.Client, dl *downloader.Downloader, creds media.Credentials, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:     client,
		downloader: dl,
		creds:      creds,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run authenticates, fetches the catalog and downloads every video item in
// catalog order. Authentication and catalog failures end the run early and are
// recorded in the report. The returned error is only set when the download
// directory cannot be created.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	logger := logctx.LoggerFromContext(ctx)

	if err := o.downloader.EnsureDownloadDir(); err != nil {
		return nil, err
	}

	report := &Report{}
	defer o.notify(ctx, report)

	session, err := o.client.Authenticate(ctx, o.creds)
	if err != nil {
		logger.ErrorContext(ctx, "authentication failed, aborting", "username", o.creds.Username, "err", err)

		report.Err = fmt.Errorf("failed to authenticate: %w", err)

		return report, nil
	}

	logger.InfoContext(ctx, "authenticated", "user_id", session.UserID)

	items, err := media.FetchCatalog(ctx, o.client, session)
	if err != nil {
		logger.ErrorContext(ctx, "failed to fetch catalog", "err", err)

		report.Err = err

		return report, nil
	}

	report.Items = len(items)

	if len(items) == 0 {
		logger.InfoContext(ctx, "catalog is empty, nothing to do")

		return report, nil
	}

	logger.InfoContext(ctx, "catalog fetched", "videos", len(items))

	for i, item := range items {
		if ctx.Err() != nil {
			logger.WarnContext(ctx, "run cancelled, stopping", "processed", i, "total", len(items))

			break
		}

		itemCtx := logctx.WithLogger(ctx, logger.With("item", fmt.Sprintf("%d/%d", i+1, len(items))))

		report.add(o.downloader.Download(itemCtx, session, item))
	}

	logger.InfoContext(ctx, "sync finished",
		"items", report.Items,
		"downloaded", report.Downloaded,
		"skipped", report.Skipped,
		"dry_run", report.DryRun,
		"failed", report.Failed,
		"bytes", humanize.Bytes(uint64(max(report.Bytes, 0))),
	)

	if err := report.ItemErrors(); err != nil {
		logger.WarnContext(ctx, "some items failed", "err", err)
	}

	return report, nil
}

func (o *Orchestrator) notify(ctx context.Context, report *Report) {
	if o.notifier == nil {
		return
	}

	// The summary is still delivered when the run was cancelled.
	if err := o.notifier.Notify(context.WithoutCancel(ctx), report.Summary()); err != nil {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to send notification", "err", err)
	}
}

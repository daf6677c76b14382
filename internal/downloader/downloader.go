package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/jellyfin_downloader/internal/downloader/progress"
	"github.com/italolelis/jellyfin_downloader/internal/logctx"
	"github.com/italolelis/jellyfin_downloader/internal/media"
	"github.com/italolelis/jellyfin_downloader/internal/telemetry"
	"golang.org/x/time/rate"
)

const (
	dirPerm          = 0755
	chunkSize        = 8 * 1024
	progressInterval = int64(100 * 1024 * 1024) // 100MB
)

// Streamer opens the content stream of an item.
type Streamer interface {
	GrabStream(ctx context.Context, session *media.Session, itemID string) (*media.Stream, error)
}

type Downloader struct {
	downloadDir string
	streamer    Streamer
	dryRun      bool
	limiter     *rate.Limiter
	progressOut io.Writer
	telemetry   *telemetry.Telemetry
}

type Option func(*Downloader)

// WithDryRun makes the downloader stop after the existence check.
func WithDryRun(dryRun bool) Option {
	return func(d *Downloader) {
		d.dryRun = dryRun
	}
}

// WithRateLimit caps the transfer speed in bytes per second. Zero disables the cap.
func WithRateLimit(bytesPerSecond uint64) Option {
	return func(d *Downloader) {
		if bytesPerSecond == 0 {
			d.limiter = nil

			return
		}

		burst := max(int(bytesPerSecond), chunkSize)
		d.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
	}
}

// WithProgressBar renders a byte progress bar per item to w.
func WithProgressBar(w io.Writer) Option {
	return func(d *Downloader) {
		d.progressOut = w
	}
}

func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(d *Downloader) {
		d.telemetry = t
	}
}

func NewDownloader(downloadDir string, streamer Streamer, opts ...Option) *Downloader {
	d := &Downloader{
		downloadDir: downloadDir,
		streamer:    streamer,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// EnsureDownloadDir creates the download directory tree if it does not exist yet.
func (d *Downloader) EnsureDownloadDir() error {
	if err := os.MkdirAll(d.downloadDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	return nil
}

// Download stores a single item in the download directory. Failures are
// reported in the result and never affect other items.
func (d *Downloader) Download(ctx context.Context, session *media.Session, item *media.Item) Result {
	filename := Filename(item)
	result := Result{
		Item:     item,
		Filename: filename,
		Path:     filepath.Join(d.downloadDir, filename),
	}

	_ = d.telemetry.InstrumentDownload(ctx, func(ctx context.Context) (string, error) {
		result = d.download(ctx, session, result)

		return result.Status.String(), result.Err
	})

	d.telemetry.RecordDownload(ctx, result.Status.String(), result.Bytes)

	return result
}

func (d *Downloader) download(ctx context.Context, session *media.Session, result Result) Result {
	logger := logctx.LoggerFromContext(ctx).With("item_id", result.Item.ID, "item_name", result.Item.Name)

	// Any stat error counts as absent; a real problem surfaces when creating the file.
	if _, err := os.Stat(result.Path); err == nil {
		logger.InfoContext(ctx, "skipping item, file already exists", "target", result.Path)

		result.Status = StatusSkipped

		return result
	}

	if d.dryRun {
		logger.InfoContext(ctx, "dry run, would download item", "target", result.Path)

		result.Status = StatusDryRun

		return result
	}

	logger.InfoContext(ctx, "downloading item", "target", result.Path)

	stream, err := d.streamer.GrabStream(ctx, session, result.Item.ID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to grab stream", "err", err)

		result.Status = StatusFailed
		result.Err = fmt.Errorf("failed to grab stream: %w", err)

		return result
	}

	defer stream.Body.Close()

	written, err := d.writeFile(ctx, logger, result.Path, result.Filename, stream)
	result.Bytes = written

	if err != nil {
		logger.ErrorContext(ctx, "failed to download item", "target", result.Path, "written", humanize.Bytes(uint64(written)), "err", err)

		result.Status = StatusFailed
		result.Err = fmt.Errorf("failed to download file: %w", err)

		return result
	}

	logger.InfoContext(ctx, "downloaded and saved file", "target", result.Path, "size", humanize.Bytes(uint64(written)))

	result.Status = StatusDownloaded

	return result
}

// writeFile streams the content into targetPath. A partially written file is
// left in place when the transfer fails.
func (d *Downloader) writeFile(ctx context.Context, logger *slog.Logger, targetPath, filename string, stream *media.Stream) (int64, error) {
	totalBytes := max(stream.Size, 0)

	out, err := os.Create(targetPath)
	if err != nil {
		return 0, &media.WriteError{Path: targetPath, Op: "create", Err: err}
	}

	progressCb := func(written int64, total int64) {
		if total > 0 {
			logger.DebugContext(ctx, "download progress",
				"target", targetPath,
				"downloaded", humanize.Bytes(uint64(written)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(written)*100/float64(total), 2))
		} else {
			logger.DebugContext(ctx, "download progress", "target", targetPath, "downloaded", humanize.Bytes(uint64(written)))
		}
	}
	reader := progress.NewReader(stream.Body, totalBytes, progressInterval, progressCb)

	var dst io.Writer = out

	bar := progress.NewBar(d.progressOut, totalBytes, filename)
	if bar != nil {
		dst = io.MultiWriter(out, bar)
	}

	written, copyErr := d.copyChunks(ctx, dst, reader, targetPath)

	if err := out.Close(); err != nil && copyErr == nil {
		copyErr = &media.WriteError{Path: targetPath, Op: "close", Err: err}
	}

	if bar != nil {
		bar.End(copyErr == nil)
	}

	return written, copyErr
}

// copyChunks moves the stream in fixed size chunks, writing each one as soon as it is read.
func (d *Downloader) copyChunks(ctx context.Context, dst io.Writer, src io.Reader, targetPath string) (int64, error) {
	buf := make([]byte, chunkSize)

	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if d.limiter != nil {
				if err := d.limiter.WaitN(ctx, n); err != nil {
					return written, &media.NetworkError{Operation: "grab_stream", APIMessage: err.Error(), Err: err}
				}
			}

			w, err := dst.Write(buf[:n])
			written += int64(w)

			if err != nil {
				return written, &media.WriteError{Path: targetPath, Op: "write", Err: err}
			}
		}

		if errors.Is(readErr, io.EOF) {
			return written, nil
		}

		if readErr != nil {
			return written, &media.NetworkError{Operation: "grab_stream", APIMessage: readErr.Error(), Err: readErr}
		}
	}
}

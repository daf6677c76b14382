package library

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/italolelis/jellyfin_downloader/internal/downloader"
	"github.com/italolelis/jellyfin_downloader/internal/media"
)

// Report is the tally of a single run.
type Report struct {
	Items      int
	Downloaded int
	Skipped    int
	DryRun     int
	Failed     int
	Bytes      int64
	Results    []downloader.Result

	// Err is set when the run stopped before processing items: a failed
	// authentication or catalog request.
	Err error

	itemErrs *multierror.Error
}

func (r *Report) add(result downloader.Result) {
	r.Results = append(r.Results, result)
	r.Bytes += result.Bytes

	switch result.Status {
	case downloader.StatusDownloaded:
		r.Downloaded++
	case downloader.StatusSkipped:
		r.Skipped++
	case downloader.StatusDryRun:
		r.DryRun++
	case downloader.StatusFailed:
		r.Failed++
		r.itemErrs = multierror.Append(r.itemErrs, fmt.Errorf("%s: %w", result.Filename, result.Err))
	}
}

// Succeeded counts the items that were downloaded, already present or planned in dry-run mode.
func (r *Report) Succeeded() int {
	return r.Downloaded + r.Skipped + r.DryRun
}

// Failure tells why the run stopped early, FailureNone when it did not.
func (r *Report) Failure() media.FailureKind {
	return media.Classify(r.Err)
}

// ItemErrors aggregates the errors of every failed item, nil when none failed.
func (r *Report) ItemErrors() error {
	return r.itemErrs.ErrorOrNil()
}

// Summary renders a one-line human readable description of the run.
func (r *Report) Summary() string {
	if r.Err != nil {
		return fmt.Sprintf("sync aborted (%s): %v", r.Failure(), r.Err)
	}

	if r.Items == 0 {
		return "sync finished: nothing to do"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "sync finished: %d/%d items succeeded", r.Succeeded(), r.Items)
	fmt.Fprintf(&b, ", %d downloaded (%s)", r.Downloaded, humanize.Bytes(uint64(max(r.Bytes, 0))))
	fmt.Fprintf(&b, ", %d skipped", r.Skipped)

	if r.DryRun > 0 {
		fmt.Fprintf(&b, ", %d dry run", r.DryRun)
	}

	if r.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", r.Failed)
	}

	return b.String()
}

package downloader

import "github.com/italolelis/jellyfin_downloader/internal/media"

// Status is the outcome of processing a single item.
type Status int

const (
	StatusDownloaded Status = iota
	StatusSkipped
	StatusDryRun
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusSkipped:
		return "skipped"
	case StatusDryRun:
		return "dry_run"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes what happened to an item. Err is only set when Status is StatusFailed.
type Result struct {
	Item     *media.Item
	Status   Status
	Filename string
	Path     string
	Bytes    int64
	Err      error
}

// Succeeded reports whether the item counts as a success: downloaded, already
// present or planned in dry-run mode.
func (r Result) Succeeded() bool {
	return r.Status != StatusFailed
}

// Failure tells why the item failed.
func (r Result) Failure() media.FailureKind {
	return media.Classify(r.Err)
}

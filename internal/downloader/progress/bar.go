package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Bar is a byte progress bar for a single transfer.
type Bar struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewBar returns a bar rendered to w, or nil when w is nil. A total <= 0
// renders a spinner that only counts the bytes transferred.
func NewBar(w io.Writer, total int64, description string) *Bar {
	if w == nil {
		return nil
	}

	if total <= 0 {
		total = -1
	}

	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	)

	return &Bar{bar: bar, out: w}
}

// Write advances the bar by len(p) bytes.
func (b *Bar) Write(p []byte) (int, error) {
	return b.bar.Write(p)
}

// End completes the bar on success. On failure the last rendered state stays visible.
func (b *Bar) End(succeeded bool) {
	if succeeded {
		_ = b.bar.Finish()
	}

	fmt.Fprintln(b.out)
}

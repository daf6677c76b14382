package progress

import "io"

// ProgressReader wraps an io.Reader and reports progress via a callback every
// reportInterval bytes and at every 10% step when the total is known.
type ProgressReader struct {
	Reader         io.Reader
	Total          int64
	OnProgress     func(written int64, total int64)
	totalRead      int64 // cumulative total
	lastReport     int64 // bytes since last report
	reportInterval int64 // bytes
}

func NewReader(r io.Reader, total int64, interval int64, cb func(written int64, total int64)) *ProgressReader {
	return &ProgressReader{
		Reader:         r,
		Total:          total,
		OnProgress:     cb,
		reportInterval: interval,
	}
}

// Read implements io.Reader.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.totalRead += int64(n)
		pr.lastReport += int64(n)

		if pr.lastReport >= pr.reportInterval || pr.crossedStep(int64(n)) {
			pr.OnProgress(pr.totalRead, pr.Total)
			pr.lastReport = 0
		}
	}

	return n, err
}

// Written returns the number of bytes read so far.
func (pr *ProgressReader) Written() int64 {
	return pr.totalRead
}

func (pr *ProgressReader) crossedStep(n int64) bool {
	if pr.Total <= 0 {
		return false
	}

	before := (pr.totalRead - n) * 10 / pr.Total
	after := pr.totalRead * 10 / pr.Total

	return after > before
}

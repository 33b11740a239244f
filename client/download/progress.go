package download

import (
	"fmt"
	"log/slog"
	"time"
)

// Reporter is a progress sink logging transfer progress via slog at
// most once per second. Wire its Add method into a download with
// WithProgress(r.Add).
type Reporter struct {
	logger      *slog.Logger
	transferred int64
	total       int64
	startTime   time.Time
	lastLog     time.Time
}

// NewReporter returns a Reporter for a transfer of total bytes. A
// total <= 0 suppresses the percentage field.
func NewReporter(logger *slog.Logger, total int64) *Reporter {
	return &Reporter{
		logger:    logger,
		total:     total,
		startTime: time.Now(),
	}
}

// Add records n transferred bytes.
func (r *Reporter) Add(n int) {
	r.transferred += int64(n)

	if time.Since(r.lastLog) >= time.Second {
		r.lastLog = time.Now()
		r.log("downloading")
	}

	if r.total > 0 && r.transferred == r.total {
		r.log("download complete")
	}
}

func (r *Reporter) log(msg string) {
	elapsed := time.Since(r.startTime)
	attrs := []any{
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", r.transferred,
		"total", r.total,
		"mbps", fmt.Sprintf("%.2f", float64(r.transferred)/elapsed.Seconds()/(1024*1024)),
	}
	if r.total > 0 {
		attrs = append(attrs, "progress", fmt.Sprintf("%.1f%%", float64(r.transferred)/float64(r.total)*100))
	}
	r.logger.Info(msg, attrs...)
}

package decode

import (
	"log/slog"
	"time"
)

// Reporter receives streaming progress. Implementations must be cheap;
// the stream calls Progress on every emitted chunk.
type Reporter interface {
	Progress(stats Stats)
}

// NopReporter discards all progress.
type NopReporter struct{}

// Progress implements Reporter.
func (NopReporter) Progress(Stats) {}

// LogReporter logs streaming progress, rate-limited to one line per
// interval so large captures do not flood the log.
type LogReporter struct {
	log      *slog.Logger
	interval time.Duration
	last     time.Time
}

// NewLogReporter creates a reporter writing to the given logger. A nil
// logger uses the default.
func NewLogReporter(logger *slog.Logger, interval time.Duration) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &LogReporter{log: logger, interval: interval}
}

// Progress implements Reporter.
func (r *LogReporter) Progress(stats Stats) {
	now := time.Now()
	if !r.last.IsZero() && now.Sub(r.last) < r.interval {
		return
	}
	r.last = now
	r.log.Info("Decoding capture",
		slog.Int64("frames_read", stats.FramesRead),
		slog.Int64("rows_buffered", stats.RowsBuffered),
		slog.Int64("chunks_emitted", stats.ChunksEmitted),
		slog.Int64("decode_failures", stats.DecodeFailures))
}

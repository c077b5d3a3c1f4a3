package decode

import (
	"log/slog"

	"canmlio/internal/canlog"
	"canmlio/internal/dictionary"
	apperrors "canmlio/internal/errors"
	"canmlio/internal/table"
)

// LoadOptions narrows and shapes a one-call load.
type LoadOptions struct {
	// IDs restricts decoding to the listed message ids. Empty means all.
	IDs []uint32
	// Expected is the final signal column set, in output order. Nil
	// defaults to every registry signal. Duplicates are rejected before
	// any frame is read, and frames whose decoded signals all fall
	// outside the set are dropped whole rather than buffered as
	// all-missing rows.
	Expected []string
	// Reporter receives progress while streaming.
	Reporter Reporter
}

// Load drains a capture source into one assembled table, returning the
// streaming counters alongside. Request errors (duplicate expected
// signals, dtype overrides naming unknown signals) and missing inputs
// surface unchanged; any failure while streaming is wrapped once as a
// processing error.
func Load(src canlog.Source, reg *dictionary.Registry, cfg *table.Config, opts LoadOptions) (*table.Table, Stats, error) {
	expected, err := table.CheckExpected(reg, cfg, opts.Expected)
	if err != nil {
		src.Close()
		return nil, Stats{}, err
	}

	stream, err := NewStream(src, reg, cfg, StreamOptions{
		IDs:      opts.IDs,
		Signals:  expected,
		Reporter: opts.Reporter,
	})
	if err != nil {
		return nil, Stats{}, err
	}

	chunks, err := Collect(stream)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, stream.Stats(), err
		}
		return nil, stream.Stats(), apperrors.NewProcessingError("streaming capture failed", err)
	}

	result, err := table.Assemble(chunks, reg, cfg, expected)
	if err != nil {
		return nil, stream.Stats(), err
	}

	stats := stream.Stats()
	slog.Info("Capture loaded",
		slog.Int64("frames_read", stats.FramesRead),
		slog.Int64("rows", stats.RowsBuffered),
		slog.Int("columns", result.NumCols()))
	return result, stats, nil
}

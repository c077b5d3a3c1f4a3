package table

import (
	apperrors "canmlio/internal/errors"
)

// Config carries the per-run pipeline options. It is immutable once
// validated and shared by the decode stream and the assembler.
type Config struct {
	// ChunkSize is the number of buffered rows per streamed chunk.
	ChunkSize int
	// ProgressBar enables progress reporting while streaming.
	ProgressBar bool
	// DTypeMap overrides the default float typing per signal. Keys
	// must be members of the expected-signal set.
	DTypeMap map[string]DType
	// SortTimestamps stable-sorts all rows by timestamp ascending.
	SortTimestamps bool
	// ForceUniformTiming rewrites timestamps to i*IntervalSeconds,
	// preserving the original under a raw_timestamp column.
	ForceUniformTiming bool
	// IntervalSeconds is the uniform spacing applied by
	// ForceUniformTiming.
	IntervalSeconds float64
	// InterpolateMissing fills registry-known absent signals by linear
	// interpolation instead of zero/NaN fill.
	InterpolateMissing bool
}

// DefaultConfig returns the options matching an unconfigured run.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:       10000,
		ProgressBar:     true,
		IntervalSeconds: 0.01,
	}
}

// Validate checks the construction-time constraints.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return apperrors.NewValidationError("chunk_size must be positive")
	}
	if c.IntervalSeconds <= 0 {
		return apperrors.NewValidationError("interval_seconds must be positive")
	}
	return nil
}

// Package decode turns raw capture frames into chunked signal tables.
//
// The Stream is a pull pipeline: each Next call reads frames from the
// source, decodes them against the dictionary registry, and returns one
// chunk of buffered rows. Frames that fail to decode are dropped and
// counted, never surfaced as errors; the capture is treated as lossy
// field data.
package decode

import (
	"io"
	"log/slog"

	"canmlio/internal/canlog"
	"canmlio/internal/dictionary"
	"canmlio/internal/table"
)

// Stats counts what the stream did with the capture so far. Dropped
// frames are visible here and nowhere else.
type Stats struct {
	FramesRead       int64
	FramesFiltered   int64
	DecodeFailures   int64
	EmptyRowsDropped int64
	RowsBuffered     int64
	ChunksEmitted    int64
}

// StreamOptions narrows what the stream decodes.
type StreamOptions struct {
	// IDs restricts decoding to the listed message ids. Empty means all.
	IDs []uint32
	// Signals restricts each decoded row to the listed signal names.
	// A row left with no signals after filtering is dropped whole.
	Signals []string
	// Reporter receives progress after every emitted chunk. Nil disables
	// reporting regardless of the config's progress flag.
	Reporter Reporter
}

// Stream reads a frame source and yields decoded chunks of up to
// ChunkSize rows each. The final chunk may be smaller.
type Stream struct {
	src       canlog.Source
	reg       *dictionary.Registry
	chunkSize int
	idFilter  map[uint32]struct{}
	sigFilter map[string]struct{}
	order     []string
	reporter  Reporter

	stats Stats
	done  bool
	err   error
}

// NewStream builds a decode stream over the source. The stream owns the
// source from here on and closes it on exhaustion, on error, and on
// Close, whichever comes first.
func NewStream(src canlog.Source, reg *dictionary.Registry, cfg *table.Config, opts StreamOptions) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		src.Close()
		return nil, err
	}

	s := &Stream{
		src:       src,
		reg:       reg,
		chunkSize: cfg.ChunkSize,
	}
	if len(opts.IDs) > 0 {
		s.idFilter = make(map[uint32]struct{}, len(opts.IDs))
		for _, id := range opts.IDs {
			s.idFilter[id] = struct{}{}
		}
	}
	if len(opts.Signals) > 0 {
		s.sigFilter = make(map[string]struct{}, len(opts.Signals))
		for _, name := range opts.Signals {
			s.sigFilter[name] = struct{}{}
		}
	}
	if cfg.ProgressBar {
		s.reporter = opts.Reporter
	}

	// Chunk column order follows the registry so output is stable
	// across runs.
	for _, name := range reg.SignalNames() {
		if s.sigFilter != nil {
			if _, ok := s.sigFilter[name]; !ok {
				continue
			}
		}
		s.order = append(s.order, name)
	}
	return s, nil
}

// Next returns the next chunk, or io.EOF once the capture is exhausted.
// Any other error is a source read failure; the stream is unusable
// afterwards and the source is already closed.
func (s *Stream) Next() (*table.Table, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.done {
		return nil, io.EOF
	}

	rows := make([]table.Row, 0, s.chunkSize)
	for len(rows) < s.chunkSize {
		frame, err := s.src.Next()
		if err == io.EOF {
			s.done = true
			s.Close()
			break
		}
		if err != nil {
			s.err = err
			s.Close()
			return nil, err
		}

		s.stats.FramesRead++
		if s.idFilter != nil {
			if _, ok := s.idFilter[frame.ID]; !ok {
				s.stats.FramesFiltered++
				continue
			}
		}

		values, err := s.reg.Decode(frame.ID, frame.Data)
		if err != nil {
			s.stats.DecodeFailures++
			continue
		}
		if s.sigFilter != nil {
			for name := range values {
				if _, ok := s.sigFilter[name]; !ok {
					delete(values, name)
				}
			}
		}
		if len(values) == 0 {
			s.stats.EmptyRowsDropped++
			continue
		}

		rows = append(rows, table.Row{Timestamp: frame.Timestamp, Values: values})
		s.stats.RowsBuffered++
	}

	if len(rows) == 0 {
		return nil, io.EOF
	}

	chunk := table.FromRows(rows, s.order)
	s.stats.ChunksEmitted++
	if s.reporter != nil {
		s.reporter.Progress(s.stats)
	}
	return chunk, nil
}

// Stats returns the counters accumulated so far.
func (s *Stream) Stats() Stats {
	return s.stats
}

// Close releases the underlying source. Safe to call more than once.
func (s *Stream) Close() error {
	return s.src.Close()
}

// Collect drains the stream into memory. On error the chunks read so
// far are discarded.
func Collect(s *Stream) ([]*table.Table, error) {
	defer s.Close()

	var chunks []*table.Table
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			if st := s.stats; st.DecodeFailures > 0 || st.EmptyRowsDropped > 0 {
				slog.Debug("Dropped frames while decoding capture",
					slog.Int64("decode_failures", st.DecodeFailures),
					slog.Int64("empty_rows", st.EmptyRowsDropped))
			}
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
}

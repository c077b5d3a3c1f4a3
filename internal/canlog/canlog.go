// Package canlog reads raw CAN frames from capture files.
//
// The shipped reader understands the candump log format written by
// can-utils ("(<seconds>.<micros>) <iface> <id>#<hexdata>"). The Source
// interface is the seam for other capture formats and for in-memory
// frame feeds.
package canlog

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	apperrors "canmlio/internal/errors"
)

// Frame is one observed message instance on the network.
type Frame struct {
	ID        uint32
	Data      []byte
	Timestamp float64
}

// Source yields an ordered sequence of frames from a capture.
//
// Next returns io.EOF when the capture is exhausted. Close releases the
// underlying handle and is safe to call more than once; consumers must
// call it on every exit path, including early termination.
type Source interface {
	Next() (Frame, error)
	Close() error
}

// Open opens a candump log file as a frame source.
func Open(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("capture log %s", path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("capture log %s", path))
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &logReader{path: path, file: f, scanner: scanner}, nil
}

// logReader streams frames from a candump log file.
type logReader struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	closed  bool
	skipped int
}

// Next returns the next parseable frame. Lines that do not carry a data
// frame (remote frames, error frames, comments) are skipped and
// counted, not surfaced as errors.
func (r *logReader) Next() (Frame, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		frame, ok := parseLine(line)
		if !ok {
			r.skipped++
			continue
		}
		return frame, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("reading %s: %w", r.path, err)
	}
	if r.skipped > 0 {
		slog.Debug("Skipped unparseable log lines",
			slog.String("path", r.path),
			slog.Int("count", r.skipped))
		r.skipped = 0
	}
	return Frame{}, io.EOF
}

// Close releases the file handle. Idempotent.
func (r *logReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// parseLine parses one candump log line: "(ts) iface id#hexdata".
func parseLine(line string) (Frame, bool) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Frame{}, false
	}

	tsField := strings.TrimSuffix(strings.TrimPrefix(fields[0], "("), ")")
	if tsField == fields[0] {
		return Frame{}, false
	}
	ts, err := strconv.ParseFloat(tsField, 64)
	if err != nil {
		return Frame{}, false
	}

	idPart, dataPart, ok := strings.Cut(fields[2], "#")
	if !ok {
		return Frame{}, false
	}
	id, err := strconv.ParseUint(idPart, 16, 32)
	if err != nil {
		return Frame{}, false
	}

	// Remote frames carry "R" instead of payload bytes.
	if strings.HasPrefix(dataPart, "R") {
		return Frame{}, false
	}
	data, err := hex.DecodeString(dataPart)
	if err != nil {
		return Frame{}, false
	}

	return Frame{ID: uint32(id), Data: data, Timestamp: ts}, true
}

// SliceSource is an in-memory frame source for tests and embedding.
type SliceSource struct {
	Frames []Frame
	pos    int
	Closed bool
}

// Next implements Source.
func (s *SliceSource) Next() (Frame, error) {
	if s.pos >= len(s.Frames) {
		return Frame{}, io.EOF
	}
	f := s.Frames[s.pos]
	s.pos++
	return f, nil
}

// Close implements Source.
func (s *SliceSource) Close() error {
	s.Closed = true
	return nil
}

// ErrSource is a frame source that fails after yielding its frames.
// It exists so pipeline error paths can be exercised in tests.
type ErrSource struct {
	Frames []Frame
	Err    error
	pos    int
	Closed bool
}

// Next implements Source.
func (s *ErrSource) Next() (Frame, error) {
	if s.pos >= len(s.Frames) {
		return Frame{}, s.Err
	}
	f := s.Frames[s.pos]
	s.pos++
	return f, nil
}

// Close implements Source.
func (s *ErrSource) Close() error {
	s.Closed = true
	return nil
}

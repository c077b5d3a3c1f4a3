package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"canmlio/internal/config"
	apperrors "canmlio/internal/errors"
	"canmlio/internal/table"
)

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths *config.Paths
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// CSVOptions configures CSV writing behavior
type CSVOptions struct {
	// Columns restricts output to a subset of the table's columns, in
	// the given order. Nil exports every column in table order.
	Columns []string
	// BOMPrefix adds a UTF-8 BOM for Excel compatibility
	BOMPrefix bool
	// MetadataPath, when set, writes the signal attribute sidecar next
	// to the data. For streamed exports the sidecar comes from the
	// first chunk.
	MetadataPath string
}

// WriteTable writes one assembled table to a CSV file.
func (w *CSVWriter) WriteTable(filePath string, t *table.Table, opts CSVOptions) error {
	sw, err := w.CreateStreamWriter(filePath, opts)
	if err != nil {
		return err
	}
	if err := sw.WriteChunk(t); err != nil {
		sw.Close()
		return err
	}
	return sw.Close()
}

// StreamWriter appends chunks to one CSV file. The header row and the
// optional metadata sidecar are produced from the first chunk; later
// chunks must carry the same columns.
type StreamWriter struct {
	file    *os.File
	writer  *csv.Writer
	path    string
	opts    CSVOptions
	columns []string
	rows    int
}

// CreateStreamWriter opens the output file. The header is deferred
// until the first chunk arrives.
func (w *CSVWriter) CreateStreamWriter(filePath string, opts CSVOptions) (*StreamWriter, error) {
	if err := checkColumnSubset(opts.Columns); err != nil {
		return nil, err
	}

	fullPath := w.resolvePath(filePath)
	slog.Info("Creating CSV stream writer",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, apperrors.NewWriteError("failed to create export directory", err).
			WithContext("path", fullPath)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, apperrors.NewWriteError("failed to create CSV file", err).
			WithContext("path", fullPath)
	}

	if opts.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			file.Close()
			return nil, apperrors.NewWriteError("failed to write BOM", err).
				WithContext("path", fullPath)
		}
	}

	return &StreamWriter{
		file:   file,
		writer: csv.NewWriter(file),
		path:   fullPath,
		opts:   opts,
	}, nil
}

// WriteChunk appends one chunk's rows. The first chunk fixes the column
// set and writes the header and sidecar.
func (s *StreamWriter) WriteChunk(t *table.Table) error {
	if s.columns == nil {
		cols, err := selectColumns(t, s.opts.Columns)
		if err != nil {
			return err
		}
		s.columns = cols
		if err := s.writer.Write(cols); err != nil {
			return apperrors.NewWriteError("failed to write header", err).
				WithContext("path", s.path)
		}
		if s.opts.MetadataPath != "" {
			if err := WriteMetadata(s.opts.MetadataPath, t); err != nil {
				return err
			}
		}
	}

	cols := make([]*table.Column, len(s.columns))
	for i, name := range s.columns {
		col, ok := t.Column(name)
		if !ok {
			return apperrors.NewWriteError(
				fmt.Sprintf("chunk is missing column %s", name), nil).
				WithContext("path", s.path)
		}
		cols[i] = col
	}

	record := make([]string, len(cols))
	for row := 0; row < t.NumRows(); row++ {
		for i, col := range cols {
			record[i] = cellValue(col, row)
		}
		if err := s.writer.Write(record); err != nil {
			return apperrors.NewWriteError(
				fmt.Sprintf("failed to write row %d", s.rows), err).
				WithContext("path", s.path)
		}
		s.rows++
	}
	return nil
}

// Rows returns the number of data rows written so far.
func (s *StreamWriter) Rows() int {
	return s.rows
}

// Close flushes and closes the output file.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return apperrors.NewWriteError("failed to flush CSV", err).
			WithContext("path", s.path)
	}
	if err := s.file.Close(); err != nil {
		return apperrors.NewWriteError("failed to close CSV", err).
			WithContext("path", s.path)
	}
	return nil
}

// checkColumnSubset rejects duplicate names in a requested subset.
func checkColumnSubset(names []string) error {
	seen := make(map[string]struct{}, len(names))
	var dupes []string
	for _, name := range names {
		if _, ok := seen[name]; ok {
			dupes = append(dupes, name)
			continue
		}
		seen[name] = struct{}{}
	}
	if len(dupes) > 0 {
		return apperrors.NewDuplicateNameError("column", dupes)
	}
	return nil
}

// selectColumns resolves the requested subset against the table, or
// defaults to every column in table order.
func selectColumns(t *table.Table, requested []string) ([]string, error) {
	if requested == nil {
		return t.ColumnNames(), nil
	}
	for _, name := range requested {
		if _, ok := t.Column(name); !ok {
			return nil, apperrors.NewWriteError(
				fmt.Sprintf("requested column %s not in table", name), nil)
		}
	}
	return requested, nil
}

// resolvePath resolves a path to the appropriate directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil {
		return filePath
	}
	return w.paths.GetExportPath(filePath)
}

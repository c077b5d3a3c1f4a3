package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	apperrors "canmlio/internal/errors"
	"canmlio/internal/table"
)

// ParquetOptions configures Parquet writing behavior
type ParquetOptions struct {
	// Compression is the column codec: snappy (default), gzip, zstd, or
	// uncompressed.
	Compression string
	// MetadataPath, when set, writes the signal attribute sidecar next
	// to the data.
	MetadataPath string
}

// WriteParquet writes one assembled table to a Parquet file. The schema
// is derived from the table: float and integer columns become optional
// numeric fields, categorical columns become optional strings, and the
// timestamp is required.
func WriteParquet(path string, t *table.Table, opts ParquetOptions) error {
	codec, err := codecFor(opts.Compression)
	if err != nil {
		return err
	}

	slog.Info("Writing Parquet file",
		slog.String("path", path),
		slog.Int("rows", t.NumRows()),
		slog.Int("columns", t.NumCols()))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewWriteError("failed to create export directory", err).
			WithContext("path", path)
	}

	file, err := os.Create(path)
	if err != nil {
		return apperrors.NewWriteError("failed to create Parquet file", err).
			WithContext("path", path)
	}
	defer file.Close()

	schema := schemaFor(t)
	writer := parquet.NewGenericWriter[map[string]any](file, schema, parquet.Compression(codec))

	rows := make([]map[string]any, t.NumRows())
	for i := range rows {
		row := make(map[string]any, t.NumCols())
		for _, col := range t.Columns {
			switch col.DType {
			case table.Int64:
				if v, ok := col.Int(i); ok {
					row[col.Name] = v
				}
			case table.String:
				if v, ok := col.Label(i); ok {
					row[col.Name] = v
				}
			default:
				if v, ok := col.Float(i); ok {
					row[col.Name] = v
				}
			}
		}
		rows[i] = row
	}

	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return apperrors.NewWriteError("failed to write Parquet rows", err).
				WithContext("path", path)
		}
	}
	if err := writer.Close(); err != nil {
		return apperrors.NewWriteError("failed to finalize Parquet file", err).
			WithContext("path", path)
	}

	if opts.MetadataPath != "" {
		return WriteMetadata(opts.MetadataPath, t)
	}
	return nil
}

// schemaFor maps the table's columns onto a Parquet schema.
func schemaFor(t *table.Table) *parquet.Schema {
	group := parquet.Group{}
	for _, col := range t.Columns {
		var node parquet.Node
		switch col.DType {
		case table.Int64:
			node = parquet.Int(64)
		case table.String:
			node = parquet.String()
		default:
			node = parquet.Leaf(parquet.DoubleType)
		}
		if col.Name != table.TimestampColumn {
			node = parquet.Optional(node)
		}
		group[col.Name] = node
	}
	return parquet.NewSchema("signals", group)
}

// codecFor resolves a compression name to a Parquet codec.
func codecFor(name string) (compress.Codec, error) {
	switch name {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "uncompressed", "none":
		return &parquet.Uncompressed, nil
	default:
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("unsupported parquet compression: %s", name))
	}
}

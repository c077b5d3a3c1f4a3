package exporter

import (
	"encoding/json"
	"os"
	"path/filepath"

	apperrors "canmlio/internal/errors"
	"canmlio/internal/table"
)

// WriteMetadata writes the signal attribute sidecar: a JSON object
// mapping every signal column to its declared attributes. Columns with
// no declared attributes get an empty object so consumers can rely on
// the key set matching the signal columns. The timestamp and
// raw_timestamp columns are synthesized by the pipeline rather than
// declared in a dictionary, so they get no entry.
func WriteMetadata(path string, t *table.Table) error {
	doc := make(map[string]map[string]interface{})
	for _, col := range t.Columns {
		if col.Name == table.TimestampColumn || col.Name == table.RawTimestampColumn {
			continue
		}
		if attrs, ok := t.Attrs[col.Name]; ok && attrs != nil {
			doc[col.Name] = attrs
		} else {
			doc[col.Name] = map[string]interface{}{}
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperrors.NewWriteError("failed to encode metadata", err).
			WithContext("path", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewWriteError("failed to create metadata directory", err).
			WithContext("path", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.NewWriteError("failed to write metadata", err).
			WithContext("path", path)
	}
	return nil
}

package exporter

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	apperrors "canmlio/internal/errors"
	"canmlio/internal/table"
)

// ExcelSheetName is the worksheet holding the exported signals.
const ExcelSheetName = "Signals"

// WriteExcel writes one assembled table to an Excel workbook. Missing
// values render as empty cells.
func WriteExcel(path string, t *table.Table) error {
	slog.Info("Writing Excel file",
		slog.String("path", path),
		slog.Int("rows", t.NumRows()),
		slog.Int("columns", t.NumCols()))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewWriteError("failed to create export directory", err).
			WithContext("path", path)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExcelSheetName); err != nil {
		return apperrors.NewWriteError("failed to create sheet", err).
			WithContext("path", path)
	}

	header := make([]interface{}, t.NumCols())
	for i, name := range t.ColumnNames() {
		header[i] = name
	}
	if err := f.SetSheetRow(ExcelSheetName, "A1", &header); err != nil {
		return apperrors.NewWriteError("failed to write header", err).
			WithContext("path", path)
	}

	row := make([]interface{}, t.NumCols())
	for r := 0; r < t.NumRows(); r++ {
		for c, col := range t.Columns {
			row[c] = excelCell(col, r)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return apperrors.NewWriteError("failed to compute cell coordinates", err).
				WithContext("path", path)
		}
		if err := f.SetSheetRow(ExcelSheetName, cell, &row); err != nil {
			return apperrors.NewWriteError("failed to write row", err).
				WithContext("path", path)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return apperrors.NewWriteError("failed to save Excel file", err).
			WithContext("path", path)
	}
	return nil
}

// excelCell renders one cell as a native Excel value, nil for missing.
func excelCell(col *table.Column, i int) interface{} {
	switch col.DType {
	case table.Int64:
		if v, ok := col.Int(i); ok {
			return v
		}
	case table.String:
		if v, ok := col.Label(i); ok {
			return v
		}
	default:
		if v, ok := col.Float(i); ok {
			return v
		}
	}
	return nil
}

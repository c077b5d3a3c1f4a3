package exporter

import (
	"strconv"

	"canmlio/internal/table"
)

// formatFloat renders a float so that parsing the cell back yields the
// identical value.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatInt formats an int64 value for output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// cellValue renders one cell. Missing values render as the empty cell
// regardless of dtype.
func cellValue(col *table.Column, i int) string {
	switch col.DType {
	case table.Int64:
		if v, ok := col.Int(i); ok {
			return formatInt(v)
		}
	case table.String:
		if v, ok := col.Label(i); ok {
			return v
		}
	default:
		if v, ok := col.Float(i); ok {
			return formatFloat(v)
		}
	}
	return ""
}

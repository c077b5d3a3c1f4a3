package table

import (
	"math"
)

// TimestampColumn is the name of the mandatory first column.
const TimestampColumn = "timestamp"

// RawTimestampColumn preserves original timestamps when uniform timing
// rewrites the timestamp column.
const RawTimestampColumn = "raw_timestamp"

// Column is one named, typed value vector with a validity mask.
type Column struct {
	Name  string
	DType DType

	Floats []float64
	Ints   []int64
	Labels []string
	Valid  []bool

	// Categories is the closed label domain of a categorical column,
	// in declaration order. Nil for non-categorical columns.
	Categories []string
}

// NewColumn creates an empty column of the given dtype.
func NewColumn(name string, dtype DType) *Column {
	return &Column{Name: name, DType: dtype}
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	return len(c.Valid)
}

// IsCategorical reports whether the column carries a closed label set.
func (c *Column) IsCategorical() bool {
	return c.Categories != nil
}

// AppendFloat appends a known float value.
func (c *Column) AppendFloat(v float64) {
	c.Floats = append(c.Floats, v)
	if c.DType == Int64 {
		c.Ints = append(c.Ints, int64(v))
	}
	c.Valid = append(c.Valid, true)
}

// AppendMissing appends one missing value of the column's dtype.
func (c *Column) AppendMissing() {
	switch c.DType {
	case Int64:
		c.Ints = append(c.Ints, 0)
		c.Floats = append(c.Floats, math.NaN())
	case String:
		c.Labels = append(c.Labels, "")
	default:
		c.Floats = append(c.Floats, math.NaN())
	}
	c.Valid = append(c.Valid, false)
}

// Float returns the value at row i and whether it is known.
func (c *Column) Float(i int) (float64, bool) {
	if !c.Valid[i] {
		return math.NaN(), false
	}
	return c.Floats[i], true
}

// Int returns the integer value at row i and whether it is known.
func (c *Column) Int(i int) (int64, bool) {
	if !c.Valid[i] || c.DType != Int64 {
		return 0, false
	}
	return c.Ints[i], true
}

// Label returns the label at row i and whether it is known.
func (c *Column) Label(i int) (string, bool) {
	if !c.Valid[i] || c.DType != String {
		return "", false
	}
	return c.Labels[i], true
}

// Table is an ordered set of equal-length columns plus a side-channel
// mapping from signal name to its declared attribute set.
type Table struct {
	Columns []*Column
	Attrs   map[string]map[string]interface{}
}

// NumRows returns the row count (zero for a table with no columns).
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Row is one decoded frame: a timestamp plus the surviving
// signal-name→value mapping.
type Row struct {
	Timestamp float64
	Values    map[string]float64
}

// FromRows materializes buffered rows as a float-typed chunk. Column
// order is the timestamp followed by the signals of order that appear
// in at least one row, keeping order's ordering so chunks are
// deterministic regardless of map iteration.
func FromRows(rows []Row, order []string) *Table {
	ts := NewColumn(TimestampColumn, Float64)
	for _, row := range rows {
		ts.AppendFloat(row.Timestamp)
	}

	t := &Table{Columns: []*Column{ts}}
	for _, name := range order {
		present := false
		for _, row := range rows {
			if _, ok := row.Values[name]; ok {
				present = true
				break
			}
		}
		if !present {
			continue
		}
		col := NewColumn(name, Float64)
		for _, row := range rows {
			if v, ok := row.Values[name]; ok {
				col.AppendFloat(v)
			} else {
				col.AppendMissing()
			}
		}
		t.Columns = append(t.Columns, col)
	}
	return t
}

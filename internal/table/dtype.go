package table

import (
	"fmt"
	"strings"
)

// DType is the declared type of a table column.
type DType int

const (
	// Float64 is the default column type; missing values are NaN.
	Float64 DType = iota
	// Int64 covers every integer kind; missing values fill as zero.
	Int64
	// String holds categorical labels; missing values are empty cells.
	String
)

// String implements fmt.Stringer.
func (d DType) String() string {
	switch d {
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	case String:
		return "string"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// IsInteger reports whether the dtype is an integer kind.
func (d DType) IsInteger() bool {
	return d == Int64
}

// ParseDType resolves a declared type name to a column dtype. All
// integer widths collapse to Int64 and all float widths to Float64.
func ParseDType(name string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "float", "float32", "float64", "double":
		return Float64, nil
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64":
		return Int64, nil
	case "string", "category":
		return String, nil
	default:
		return Float64, fmt.Errorf("unknown dtype %q", name)
	}
}

// Package table materializes decoded signal rows as a typed, columnar
// table and implements the assembly policy layered on top: column
// projection, timestamp normalization, missing-signal fill and
// interpolation, per-signal metadata, and categorical conversion.
//
// A Table is not a general dataframe. Column 0 is always "timestamp",
// the remaining columns are the caller's expected-signal list in caller
// order, and the only supported dtypes are 64-bit floats, 64-bit
// integers, and categorical labels.
package table

package table

import (
	"log/slog"
	"math"
	"sort"
	"strconv"

	"canmlio/internal/dictionary"
	apperrors "canmlio/internal/errors"
)

// Assemble merges decoded chunks into one table with the final column
// contract: column 0 is "timestamp" and the remaining columns are
// expected in caller order, each typed, filled, and converted per the
// configured policy. A nil expected list defaults to every signal in
// the registry, in registry order.
func Assemble(chunks []*Table, reg *dictionary.Registry, cfg *Config, expected []string) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	expected, err := CheckExpected(reg, cfg, expected)
	if err != nil {
		return nil, err
	}

	resolve := func(name string) DType { return resolveDType(cfg, reg, name) }

	var t *Table
	if len(chunks) == 0 {
		t = buildEmpty(expected, resolve)
	} else {
		t = concatProject(chunks, expected)
	}

	if cfg.SortTimestamps {
		sortByTimestamp(t)
	}
	if cfg.ForceUniformTiming {
		applyUniformTiming(t, cfg.IntervalSeconds)
	}

	applyDTypes(t, resolve)
	injectMissing(t, reg, cfg, expected, resolve)
	attachMetadata(t, reg)
	convertCategoricals(t, reg)

	return t, nil
}

// CheckExpected resolves and validates the expected-signal list against
// the registry and the configured dtype overrides. Callers that stream
// run it before consuming any input so a bad request fails fast.
func CheckExpected(reg *dictionary.Registry, cfg *Config, expected []string) ([]string, error) {
	expected, err := resolveExpected(reg, expected)
	if err != nil {
		return nil, err
	}
	if err := validateDTypeMap(cfg, expected); err != nil {
		return nil, err
	}
	return expected, nil
}

// resolveExpected validates the caller's expected-signal list or
// defaults it to the registry's flattened signal list.
func resolveExpected(reg *dictionary.Registry, expected []string) ([]string, error) {
	if expected == nil {
		return reg.SignalNames(), nil
	}

	seen := make(map[string]struct{}, len(expected))
	var dupes []string
	for _, name := range expected {
		if _, ok := seen[name]; ok {
			dupes = append(dupes, name)
			continue
		}
		seen[name] = struct{}{}
	}
	if len(dupes) > 0 {
		return nil, apperrors.NewDuplicateNameError("expected signal", dupes)
	}
	return expected, nil
}

// validateDTypeMap ensures every dtype override targets an expected
// signal.
func validateDTypeMap(cfg *Config, expected []string) error {
	if len(cfg.DTypeMap) == 0 {
		return nil
	}
	members := make(map[string]struct{}, len(expected))
	for _, name := range expected {
		members[name] = struct{}{}
	}
	for name := range cfg.DTypeMap {
		if _, ok := members[name]; !ok {
			return apperrors.NewUnknownSignalError(name)
		}
	}
	return nil
}

// resolveDType resolves a column's dtype: explicit override first, then
// the dictionary's declared hint, then the float default.
func resolveDType(cfg *Config, reg *dictionary.Registry, name string) DType {
	if dt, ok := cfg.DTypeMap[name]; ok {
		return dt
	}
	if sig, ok := reg.Signal(name); ok && sig.DTypeHint != "" {
		if dt, err := ParseDType(sig.DTypeHint); err == nil {
			return dt
		}
	}
	return Float64
}

// buildEmpty constructs the zero-row table for the zero-chunk case.
func buildEmpty(expected []string, resolve func(string) DType) *Table {
	t := &Table{Columns: []*Column{NewColumn(TimestampColumn, Float64)}}
	for _, name := range expected {
		t.Columns = append(t.Columns, NewColumn(name, resolve(name)))
	}
	return t
}

// concatProject concatenates all chunks in arrival order and restricts
// the result to the timestamp plus the expected signals that decoded in
// at least one chunk. This is the authoritative projection step; any
// decoded signal not requested is dropped here.
func concatProject(chunks []*Table, expected []string) *Table {
	present := make(map[string]struct{})
	for _, chunk := range chunks {
		for _, col := range chunk.Columns {
			present[col.Name] = struct{}{}
		}
	}

	names := []string{TimestampColumn}
	for _, name := range expected {
		if _, ok := present[name]; ok {
			names = append(names, name)
		}
	}

	t := &Table{}
	for _, name := range names {
		merged := NewColumn(name, Float64)
		for _, chunk := range chunks {
			if col, ok := chunk.Column(name); ok {
				for i := 0; i < col.Len(); i++ {
					if v, ok := col.Float(i); ok {
						merged.AppendFloat(v)
					} else {
						merged.AppendMissing()
					}
				}
			} else {
				for i := 0; i < chunk.NumRows(); i++ {
					merged.AppendMissing()
				}
			}
		}
		t.Columns = append(t.Columns, merged)
	}
	return t
}

// sortByTimestamp stable-sorts all rows by ascending timestamp.
func sortByTimestamp(t *Table) {
	ts, ok := t.Column(TimestampColumn)
	if !ok || ts.Len() < 2 {
		return
	}

	perm := make([]int, ts.Len())
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return ts.Floats[perm[a]] < ts.Floats[perm[b]]
	})

	for _, col := range t.Columns {
		permuteColumn(col, perm)
	}
}

func permuteColumn(col *Column, perm []int) {
	if len(col.Floats) > 0 {
		src := col.Floats
		col.Floats = make([]float64, len(src))
		for i, j := range perm {
			col.Floats[i] = src[j]
		}
	}
	if len(col.Ints) > 0 {
		src := col.Ints
		col.Ints = make([]int64, len(src))
		for i, j := range perm {
			col.Ints[i] = src[j]
		}
	}
	if len(col.Labels) > 0 {
		src := col.Labels
		col.Labels = make([]string, len(src))
		for i, j := range perm {
			col.Labels[i] = src[j]
		}
	}
	src := col.Valid
	col.Valid = make([]bool, len(src))
	for i, j := range perm {
		col.Valid[i] = src[j]
	}
}

// applyUniformTiming preserves the observed timestamps under
// raw_timestamp and overwrites the timestamp column with
// i*intervalSeconds in current row order. Running after the sort means
// uniform spacing reflects sorted order when both are enabled.
func applyUniformTiming(t *Table, intervalSeconds float64) {
	ts, ok := t.Column(TimestampColumn)
	if !ok {
		return
	}

	raw := NewColumn(RawTimestampColumn, Float64)
	raw.Floats = append(raw.Floats, ts.Floats...)
	raw.Valid = append(raw.Valid, ts.Valid...)
	t.Columns = append(t.Columns, raw)

	for i := range ts.Floats {
		ts.Floats[i] = float64(i) * intervalSeconds
		ts.Valid[i] = true
	}
}

// applyDTypes casts every non-timestamp column to its resolved dtype.
func applyDTypes(t *Table, resolve func(string) DType) {
	for _, col := range t.Columns {
		if col.Name == TimestampColumn || col.Name == RawTimestampColumn {
			continue
		}
		castColumn(col, resolve(col.Name))
	}
}

func castColumn(col *Column, dtype DType) {
	if col.DType == dtype {
		return
	}

	switch dtype {
	case Int64:
		col.Ints = make([]int64, col.Len())
		for i, v := range col.Floats {
			if col.Valid[i] {
				col.Ints[i] = int64(v)
			}
		}
	case String:
		col.Labels = make([]string, col.Len())
		for i, v := range col.Floats {
			if col.Valid[i] {
				col.Labels[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		col.Floats = nil
		col.Ints = nil
	}
	col.DType = dtype
}

// injectMissing adds a column for every expected signal that decoded in
// zero rows. Registry-known signals may interpolate; integer dtypes
// fill with zero; everything else fills with the missing marker.
func injectMissing(t *Table, reg *dictionary.Registry, cfg *Config, expected []string, resolve func(string) DType) {
	n := t.NumRows()
	var injected []*Column

	for _, name := range expected {
		if _, ok := t.Column(name); ok {
			continue
		}

		dtype := resolve(name)
		_, known := reg.Signal(name)

		col := NewColumn(name, dtype)
		switch {
		case cfg.InterpolateMissing && known:
			// A column with no observed values has nothing to
			// interpolate from; it stays entirely undefined.
			col.DType = Float64
			for i := 0; i < n; i++ {
				col.AppendMissing()
			}
			interpolateLinear(col)
			slog.Debug("Injected signal has no values to interpolate",
				slog.String("signal", name), slog.Int("rows", n))
		case dtype.IsInteger():
			for i := 0; i < n; i++ {
				col.AppendFloat(0)
			}
		default:
			for i := 0; i < n; i++ {
				col.AppendMissing()
			}
		}
		injected = append(injected, col)
	}

	if len(injected) == 0 {
		return
	}

	// Injected columns slot into the expected order; raw_timestamp
	// stays last.
	byName := make(map[string]*Column, len(t.Columns)+len(injected))
	for _, col := range t.Columns {
		byName[col.Name] = col
	}
	for _, col := range injected {
		byName[col.Name] = col
	}

	ordered := []*Column{byName[TimestampColumn]}
	for _, name := range expected {
		ordered = append(ordered, byName[name])
	}
	if raw, ok := byName[RawTimestampColumn]; ok {
		ordered = append(ordered, raw)
	}
	t.Columns = ordered
}

// interpolateLinear fills unknown values by linear interpolation
// between the nearest known neighbors, extending flat at both edges.
// A column with no known values is left untouched.
func interpolateLinear(col *Column) {
	n := col.Len()
	var knownIdx []int
	for i := 0; i < n; i++ {
		if col.Valid[i] {
			knownIdx = append(knownIdx, i)
		}
	}
	if len(knownIdx) == 0 {
		return
	}

	first, last := knownIdx[0], knownIdx[len(knownIdx)-1]
	for i := 0; i < first; i++ {
		col.Floats[i] = col.Floats[first]
		col.Valid[i] = true
	}
	for i := last + 1; i < n; i++ {
		col.Floats[i] = col.Floats[last]
		col.Valid[i] = true
	}

	for k := 0; k+1 < len(knownIdx); k++ {
		lo, hi := knownIdx[k], knownIdx[k+1]
		span := float64(hi - lo)
		for i := lo + 1; i < hi; i++ {
			frac := float64(i-lo) / span
			col.Floats[i] = col.Floats[lo] + (col.Floats[hi]-col.Floats[lo])*frac
			col.Valid[i] = true
		}
	}
}

// attachMetadata builds the side-channel mapping from every column
// signal present in the registry to its declared attribute set.
func attachMetadata(t *Table, reg *dictionary.Registry) {
	attrs := make(map[string]map[string]interface{})
	for _, col := range t.Columns {
		sig, ok := reg.Signal(col.Name)
		if !ok {
			continue
		}
		m := make(map[string]interface{}, len(sig.Attributes))
		for k, v := range sig.Attributes {
			m[k] = v
		}
		attrs[col.Name] = m
	}
	t.Attrs = attrs
}

// convertCategoricals replaces raw values with their declared labels
// for every column whose signal carries a choices mapping. Raw values
// outside the declared domain become missing; this narrowing is
// intentional.
func convertCategoricals(t *Table, reg *dictionary.Registry) {
	for _, col := range t.Columns {
		sig, ok := reg.Signal(col.Name)
		if !ok || len(sig.Choices) == 0 {
			continue
		}

		labels := make([]string, col.Len())
		valid := make([]bool, col.Len())
		for i := 0; i < col.Len(); i++ {
			var raw int64
			switch {
			case !col.Valid[i]:
				continue
			case col.DType == Int64:
				raw = col.Ints[i]
			default:
				raw = int64(math.Round(col.Floats[i]))
			}
			if label, ok := sig.ChoiceLabel(raw); ok {
				labels[i] = label
				valid[i] = true
			}
		}

		col.DType = String
		col.Labels = labels
		col.Valid = valid
		col.Floats = nil
		col.Ints = nil
		col.Categories = sig.Labels()
	}
}

// Package transform decodes raw ordered-array rows from the analytics API
// into named records. Decoding is the single boundary where row length is
// validated against the active schema; everything downstream can rely on a
// fully populated record.
package transform

import (
	"strconv"

	"github.com/voicemetrics/vaac-pipeline/internal/schema"
	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
)

// Record is a decoded row: field name to primitive value (string, float64,
// bool, or nil as produced by JSON decoding).
type Record map[string]any

// Decode zips one raw row against the schema's ordered field list. A length
// mismatch is a hard per-row error; partial zips would silently misalign
// every field after the gap.
func Decode(rowIndex int, row []any, s schema.Schema) (Record, error) {
	fields := s.Fields()
	if len(row) != len(fields) {
		return nil, perrors.NewRowError(perrors.ErrSchemaMismatch, rowIndex, "",
			"row has %d values, schema %s expects %d", len(row), s.Report, len(fields))
	}
	rec := make(Record, len(fields))
	for i, name := range fields {
		rec[name] = row[i]
	}
	return rec, nil
}

// String returns the field as a string, or "" when absent, nil, or another
// type. Numeric values are formatted rather than dropped because the API is
// loose about emitting identifiers as numbers.
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Float returns the field as a float64, parsing numeric strings, or def when
// absent or unparseable.
func (r Record) Float(field string, def float64) float64 {
	switch v := r[field].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Int returns the field as an int, truncating floats and parsing numeric
// strings, or def when absent or unparseable.
func (r Record) Int(field string, def int) int {
	switch v := r[field].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Project re-orders the record back into the schema's positional layout.
// Useful for verifying the decode contract; Decode followed by Project is the
// identity on a valid row.
func (r Record) Project(s schema.Schema) []any {
	fields := s.Fields()
	row := make([]any, len(fields))
	for i, name := range fields {
		row[i] = r[name]
	}
	return row
}

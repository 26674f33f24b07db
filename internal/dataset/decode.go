// Package dataset loads raw incident datasets from files or HTTP and
// normalizes them into domain incidents.
package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/couchcryptid/near-miss-analytics/internal/domain"
)

// Decode reads one JSON document. Numbers are kept as json.Number so ids
// and years keep their exact text.
func Decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return v, nil
}

// Unwrap returns the record array of a decoded dataset. Arrays pass through,
// an object with a non-null "data" field yields that field, and anything
// else yields an empty array.
func Unwrap(v any) any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		if data, ok := t["data"]; ok && data != nil {
			return data
		}
	}
	return []any{}
}

// Result is a normalized dataset.
type Result struct {
	Records []domain.Incident
	// Dropped counts entries that were not objects.
	Dropped int
	Source  string
}

func normalize(raw any, source string) Result {
	records := domain.NormalizeRecords(raw)
	dropped := 0
	if rows, ok := raw.([]any); ok {
		dropped = len(rows) - len(records)
	}
	return Result{Records: records, Dropped: dropped, Source: source}
}

// Parse decodes, unwraps and normalizes a JSON dataset.
func Parse(r io.Reader, source string) (Result, error) {
	v, err := Decode(r)
	if err != nil {
		return Result{}, err
	}
	return normalize(Unwrap(v), source), nil
}

package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NormalizeRecords converts a decoded dataset into canonical incidents.
// raw must be a slice of objects ([]any, []map[string]any or []RawRecord);
// any other value yields an empty slice. Entries that are nil or not objects
// are dropped. Never returns nil.
func NormalizeRecords(raw any) []Incident {
	switch rows := raw.(type) {
	case []any:
		out := make([]Incident, 0, len(rows))
		for _, row := range rows {
			if rec, ok := asRecord(row); ok {
				out = append(out, NormalizeRecord(rec))
			}
		}
		return out
	case []map[string]any:
		out := make([]Incident, 0, len(rows))
		for _, row := range rows {
			if row != nil {
				out = append(out, NormalizeRecord(row))
			}
		}
		return out
	case []RawRecord:
		out := make([]Incident, 0, len(rows))
		for _, row := range rows {
			if row != nil {
				out = append(out, NormalizeRecord(row))
			}
		}
		return out
	default:
		return []Incident{}
	}
}

// asRecord reports whether v is a JSON object and returns it as a RawRecord.
func asRecord(v any) (RawRecord, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	case RawRecord:
		return m, m != nil
	default:
		return nil, false
	}
}

// NormalizeRecord coerces one raw record into an Incident. Fields it does
// not recognize are ignored.
func NormalizeRecord(r RawRecord) Incident {
	idSource := r["id"]
	if !truthy(idSource) {
		idSource = r["incident_number"]
	}

	level := normalizeSeverity(r["severity_level"])
	label := SeverityLabel(level)
	if label == "" {
		label = severityLabels[minSeverity]
	}

	return Incident{
		ID:                        safeStr(idSource),
		IncidentDate:              safeNum(r["incident_date"], 0),
		Year:                      safeInt(r["year"]),
		Month:                     safeInt(r["month"]),
		PrimaryCategory:           safeStr(r["primary_category"]),
		ActionCause:               safeStr(r["action_cause"]),
		SeverityLevel:             level,
		SeverityLabel:             label,
		Region:                    safeStr(r["region"]),
		Location:                  safeStr(r["location"]),
		Job:                       safeStr(r["job"]),
		GBU:                       safeStr(r["gbu"]),
		BehaviorType:              safeStr(r["behavior_type"]),
		UnsafeConditionOrBehavior: safeStr(r["unsafe_condition_or_behavior"]),
	}
}

// normalizeSeverity coerces a severity level with fallback 1, truncates it
// and clamps it to [1,4].
func normalizeSeverity(v any) int {
	n := math.Trunc(safeNum(v, minSeverity))
	return int(math.Min(maxSeverity, math.Max(minSeverity, n)))
}

// safeStr renders v as trimmed text, returning Unknown for nil, empty or
// whitespace-only values.
func safeStr(v any) string {
	if v == nil {
		return Unknown
	}
	s := strings.TrimSpace(toText(v))
	if s == "" {
		return Unknown
	}
	return s
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		// Numerically equal tokens such as 1, 1.0 and 1e0 share one form.
		if f, err := strconv.ParseFloat(t.String(), 64); err == nil {
			return formatFloat(f)
		}
		return t.String()
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// formatFloat prints whole numbers without a fractional part, so 12.0
// renders as "12".
func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) || math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// safeNum converts v to a finite number, or returns fallback.
func safeNum(v any, fallback float64) float64 {
	n, ok := toNumber(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return fallback
	}
	return n
}

// safeInt is safeNum with fallback 0, truncated to an integer. Values outside
// the int32 range are treated as invalid.
func safeInt(v any) int {
	n := math.Trunc(safeNum(v, 0))
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0
	}
	return int(n)
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case json.Number:
		return parseNumber(t.String())
	case string:
		return parseNumber(t)
	default:
		return 0, false
	}
}

// parseNumber accepts decimal and exponent forms plus 0x/0o/0b integers.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if len(s) > 2 && s[0] == '0' && strings.ContainsRune("xXoObB", rune(s[1])) {
		if i, err := strconv.ParseInt(s, 0, 64); err == nil {
			return float64(i), true
		}
	}
	return 0, false
}

// truthy reports whether v would count as present for id resolution:
// nil, "", false and zero are absent.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number, float64, float32, int, int64, int32, uint64:
		n, ok := toNumber(t)
		return !ok || (n != 0 && !math.IsNaN(n))
	default:
		return true
	}
}

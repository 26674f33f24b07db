// Package domain models construction near-miss and incident records and the
// aggregate views built from them.
//
// # Data Source
//
// Records come from an incident-tracking export: a JSON array of flat
// objects (or an object wrapping that array in a "data" field, unwrapped by
// the loader before records reach this package). The export is loosely
// typed. Fields go missing, arrive as null or "", carry numbers as strings,
// or hold out-of-range values.
//
// # Normalization Conventions
//
// Categorical fields:
//
//	nil, "" and whitespace-only values become the sentinel
//	"Unknown / Unspecified" (see [Unknown]). Anything else is rendered as
//	text and trimmed, so the number 7 becomes "7".
//
// Numeric fields:
//
//	incident_date, year and month fall back to 0 when the value is absent or
//	not a finite number. A year or month of 0 means "date unknown".
//
// Identity:
//
//	id is taken from "id" when it is truthy, else from "incident_number".
//	A numeric id of 0 counts as missing.
//
// Severity:
//
//	severity_level falls back to 1, is truncated to an integer and clamped
//	to 1..4. The label is derived from the level:
//
//	  1 Low | 2 Medium | 3 High | 4 Critical
//
// # Aggregation Conventions
//
// Categorical views count by the text form of a field and sort by count,
// descending. Equal counts keep the order in which values were first seen.
// Time views drop records with an unknown year (and, for months, an unknown
// month) instead of bucketing them as unknown: a time axis has nowhere to
// place them.
package domain

package domain

import "strconv"

// Unknown is substituted for any missing or empty categorical field.
const Unknown = "Unknown / Unspecified"

// DefaultLimit caps categorical views when the caller does not pick a limit.
const DefaultLimit = 15

const (
	minSeverity = 1
	maxSeverity = 4
)

// severityLabels maps a clamped severity level to its display name.
var severityLabels = map[int]string{
	1: "Low",
	2: "Medium",
	3: "High",
	4: "Critical",
}

// SeverityLabel returns the display name for level, or "" when the level is
// outside the table.
func SeverityLabel(level int) string {
	return severityLabels[level]
}

// RawRecord is one untrusted object from the source dataset.
type RawRecord map[string]any

// Incident is the canonical form of a near-miss or incident record. Every
// string field is non-empty and every number is finite.
type Incident struct {
	ID                        string  `json:"id"`
	IncidentDate              float64 `json:"incident_date"`
	Year                      int     `json:"year"`
	Month                     int     `json:"month"`
	PrimaryCategory           string  `json:"primary_category"`
	ActionCause               string  `json:"action_cause"`
	SeverityLevel             int     `json:"severity_level"`
	SeverityLabel             string  `json:"severity_label"`
	Region                    string  `json:"region"`
	Location                  string  `json:"location"`
	Job                       string  `json:"job"`
	GBU                       string  `json:"gbu"`
	BehaviorType              string  `json:"behavior_type"`
	UnsafeConditionOrBehavior string  `json:"unsafe_condition_or_behavior"`
}

// Field returns the text form of the named field, keyed by its JSON name.
// Numeric fields are rendered in decimal. ok is false for unknown names.
func (i Incident) Field(name string) (value string, ok bool) {
	switch name {
	case "id":
		return i.ID, true
	case "incident_date":
		return formatFloat(i.IncidentDate), true
	case "year":
		return strconv.Itoa(i.Year), true
	case "month":
		return strconv.Itoa(i.Month), true
	case "primary_category":
		return i.PrimaryCategory, true
	case "action_cause":
		return i.ActionCause, true
	case "severity_level":
		return strconv.Itoa(i.SeverityLevel), true
	case "severity_label":
		return i.SeverityLabel, true
	case "region":
		return i.Region, true
	case "location":
		return i.Location, true
	case "job":
		return i.Job, true
	case "gbu":
		return i.GBU, true
	case "behavior_type":
		return i.BehaviorType, true
	case "unsafe_condition_or_behavior":
		return i.UnsafeConditionOrBehavior, true
	default:
		return "", false
	}
}

// Fields lists the JSON names accepted by [Incident.Field].
var Fields = []string{
	"id", "incident_date", "year", "month",
	"primary_category", "action_cause",
	"severity_level", "severity_label",
	"region", "location", "job", "gbu",
	"behavior_type", "unsafe_condition_or_behavior",
}

// CategoricalFields lists the string fields that fall back to [Unknown].
var CategoricalFields = []string{
	"id", "primary_category", "action_cause",
	"region", "location", "job", "gbu",
	"behavior_type", "unsafe_condition_or_behavior",
}

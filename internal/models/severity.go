package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Severity is the numeric alarm severity carried by the alarm stream (1..7).
type Severity int

const (
	SeverityIndeterminate Severity = 1
	SeverityCleared       Severity = 2
	SeverityNormal        Severity = 3
	SeverityWarning       Severity = 4
	SeverityMinor         Severity = 5
	SeverityMajor         Severity = 6
	SeverityCritical      Severity = 7
)

var severityNames = map[Severity]string{
	SeverityIndeterminate: "INDETERMINATE",
	SeverityCleared:       "CLEARED",
	SeverityNormal:        "NORMAL",
	SeverityWarning:       "WARNING",
	SeverityMinor:         "MINOR",
	SeverityMajor:         "MAJOR",
	SeverityCritical:      "CRITICAL",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// ParseSeverity accepts a severity name ("major") or its numeric id ("6").
func ParseSeverity(raw string) (Severity, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if id, err := strconv.Atoi(value); err == nil {
		sev := Severity(id)
		if _, ok := severityNames[sev]; !ok {
			return 0, fmt.Errorf("severity id %d out of range 1..7", id)
		}
		return sev, nil
	}
	for sev, name := range severityNames {
		if name == value {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", raw)
}

// ToStatus maps an alarm severity onto the status scale. Cleared alarms count as
// Normal; ids outside 1..7 are treated as Indeterminate.
func (s Severity) ToStatus() Status {
	switch s {
	case SeverityCleared, SeverityNormal:
		return StatusNormal
	case SeverityWarning:
		return StatusWarning
	case SeverityMinor:
		return StatusMinor
	case SeverityMajor:
		return StatusMajor
	case SeverityCritical:
		return StatusCritical
	default:
		return StatusIndeterminate
	}
}

// SeverityFor is the inverse of Severity.ToStatus for real statuses.
// Normal maps back to NORMAL, never CLEARED.
func SeverityFor(status Status) (Severity, bool) {
	switch status {
	case StatusIndeterminate:
		return SeverityIndeterminate, true
	case StatusNormal:
		return SeverityNormal, true
	case StatusWarning:
		return SeverityWarning, true
	case StatusMinor:
		return SeverityMinor, true
	case StatusMajor:
		return SeverityMajor, true
	case StatusCritical:
		return SeverityCritical, true
	default:
		return 0, false
	}
}

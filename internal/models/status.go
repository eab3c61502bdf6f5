package models

import (
	"fmt"
	"strings"
)

// Status is the operational status of a vertex. The zero value is StatusUnknown,
// meaning no status has been computed yet; it sorts below every real severity.
type Status int

const (
	StatusUnknown Status = iota
	StatusIndeterminate
	StatusNormal
	StatusWarning
	StatusMinor
	StatusMajor
	StatusCritical
)

// LowestStatus and HighestStatus bound the real severities.
const (
	LowestStatus  = StatusIndeterminate
	HighestStatus = StatusCritical
)

var statusNames = map[Status]string{
	StatusUnknown:       "UNKNOWN",
	StatusIndeterminate: "INDETERMINATE",
	StatusNormal:        "NORMAL",
	StatusWarning:       "WARNING",
	StatusMinor:         "MINOR",
	StatusMajor:         "MAJOR",
	StatusCritical:      "CRITICAL",
}

// Statuses lists the real severities in ascending order.
func Statuses() []Status {
	return []Status{
		StatusIndeterminate,
		StatusNormal,
		StatusWarning,
		StatusMinor,
		StatusMajor,
		StatusCritical,
	}
}

// Known reports whether s is a real severity.
func (s Status) Known() bool {
	return s >= LowestStatus && s <= HighestStatus
}

// IsGreaterThan compares by severity ordinal.
func (s Status) IsGreaterThan(other Status) bool {
	return s > other
}

// IsLessThan compares by severity ordinal.
func (s Status) IsLessThan(other Status) bool {
	return s < other
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus parses a case-insensitive status name.
func ParseStatus(raw string) (Status, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	for status, candidate := range statusNames {
		if candidate == name {
			return status, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown status %q", raw)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MostSevere returns the more severe of a and b. Unknown loses against any real severity.
func MostSevere(a, b Status) Status {
	if a > b {
		return a
	}
	return b
}

// MaxStatus returns the most severe status, or StatusUnknown when none is known.
func MaxStatus(statuses ...Status) Status {
	result := StatusUnknown
	for _, s := range statuses {
		if !s.Known() {
			continue
		}
		result = MostSevere(result, s)
	}
	return result
}

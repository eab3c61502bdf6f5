package models

import "time"

// AlarmEvent is a new or updated alarm as delivered by the event source.
type AlarmEvent struct {
	ID           string
	ReductionKey string
	Severity     Severity
	ReceivedAt   time.Time
}

// Status maps the alarm severity onto the status scale.
func (a AlarmEvent) Status() Status {
	return a.Severity.ToStatus()
}

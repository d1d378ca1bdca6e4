// Package schedule derives dose statuses, daily schedules and adherence
// statistics from medicines and dose records.
//
// Every function in this package is pure: the current moment is always an
// explicit argument, inputs are never mutated, and malformed input degrades
// to a safe default instead of an error.
package schedule

import "time"

// DoseStatus is the derived state of one dose.
type DoseStatus string

const (
	StatusUpcoming DoseStatus = "upcoming"
	StatusPending  DoseStatus = "pending"
	StatusOverdue  DoseStatus = "overdue"
	StatusTaken    DoseStatus = "taken"
	StatusSkipped  DoseStatus = "skipped"
	StatusAsNeeded DoseStatus = "as-needed"
)

// Completed reports whether the dose has been acted on.
func (s DoseStatus) Completed() bool {
	return s == StatusTaken || s == StatusSkipped
}

const (
	// EarlyWindow is how many minutes ahead of its time a dose becomes due.
	EarlyWindow = 30

	// LateWindow is how many minutes past its time a dose stays due before it
	// is overdue.
	LateWindow = 15
)

// CalculateDoseStatus derives the status of a dose scheduled at
// scheduledTime24 on now's day.  Only clock minutes are compared; callers must
// only use it for doses scheduled on the day of now.
func CalculateDoseStatus(scheduledTime24 string, now time.Time, takenAt *time.Time) DoseStatus {
	if takenAt != nil {
		return StatusTaken
	}

	scheduled := ParseTimeToMinutes(ParseTimeTo24Hour(scheduledTime24))
	diff := now.Hour()*60 + now.Minute() - scheduled

	switch {
	case diff < -EarlyWindow:
		return StatusUpcoming
	case diff <= LateWindow:
		return StatusPending
	default:
		return StatusOverdue
	}
}

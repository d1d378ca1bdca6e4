package schedule

import "time"

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	a = a.In(loc)
	b = b.In(loc)
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// DayKey formats t's calendar day in loc as "2006-01-02".
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// LoadLocation resolves an IANA zone name, using fallback when the name is
// empty or unknown.
func LoadLocation(name string, fallback *time.Location) *time.Location {
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}

// dayRelation places day relative to now's day: -1 past, 0 today, 1 future.
// Both are compared as calendar days in now's location, never as instants.
func dayRelation(day, now time.Time) int {
	loc := now.Location()
	d := DayKey(day, loc)
	n := DayKey(now, loc)
	switch {
	case d < n:
		return -1
	case d > n:
		return 1
	default:
		return 0
	}
}

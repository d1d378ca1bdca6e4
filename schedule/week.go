package schedule

import (
	"time"

	"medreminder/dbtypes"
)

// WeekdayOf maps a time's weekday onto the Monday-first ordinal.
func WeekdayOf(t time.Time) dbtypes.Weekday {
	return dbtypes.Weekday((int(t.Weekday()) + 6) % 7)
}

// WeekdayLabel is the short localized name of d.
func WeekdayLabel(d dbtypes.Weekday, lang Language) string {
	if d < dbtypes.Monday || d > dbtypes.Sunday {
		return ""
	}
	return labels[lang.normalize()].weekdays[d]
}

// WeekStart returns local midnight of the Monday of t's week in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	return day.AddDate(0, 0, -int(WeekdayOf(day)))
}

// DayCounts tallies a day's schedule by status.
type DayCounts struct {
	Total    int
	Taken    int
	Missed   int
	Pending  int
	Upcoming int
}

// DaySchedule is one day of a weekly calendar.
type DaySchedule struct {
	Date      time.Time
	Weekday   dbtypes.Weekday
	IsToday   bool
	Items     []ScheduleItem
	Counts    DayCounts
	HasMissed bool
}

// CountSchedule tallies items by status.
func CountSchedule(items []ScheduleItem) DayCounts {
	counts := DayCounts{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case ScheduleTaken:
			counts.Taken++
		case ScheduleMissed:
			counts.Missed++
		case SchedulePending:
			counts.Pending++
		case ScheduleUpcoming:
			counts.Upcoming++
		}
	}
	return counts
}

// GenerateWeek builds the Monday-to-Sunday calendar of the week containing
// day, evaluated in now's location.
func GenerateWeek(meds []dbtypes.Medicine, day time.Time, records []dbtypes.DoseRecord, now time.Time) []DaySchedule {
	loc := now.Location()
	start := WeekStart(day, loc)

	week := make([]DaySchedule, 0, 7)
	for i := 0; i < 7; i++ {
		date := start.AddDate(0, 0, i)
		items := GenerateScheduleForDate(meds, date, records, now)
		counts := CountSchedule(items)
		week = append(week, DaySchedule{
			Date:      date,
			Weekday:   dbtypes.Weekday(i),
			IsToday:   SameDay(date, now, loc),
			Items:     items,
			Counts:    counts,
			HasMissed: counts.Missed > 0,
		})
	}
	return week
}

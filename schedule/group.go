package schedule

import (
	"sort"
	"time"

	"medreminder/dbtypes"
)

// OverdueGroupKey is the key of the synthetic group collecting overdue doses.
const OverdueGroupKey = "overdue"

// DoseGroup is a run of doses shown under one heading.
type DoseGroup struct {
	// Key is the shared 24-hour DoseTime, or OverdueGroupKey.
	Key   string
	Label string
	Doses []ExpandedDose
}

// SortDoses returns the doses in daily-list order: doses still to act on come
// first, then taken and skipped ones, each part ordered by time of day with
// as-needed doses ahead.
func SortDoses(doses []ExpandedDose) []ExpandedDose {
	out := make([]ExpandedDose, len(doses))
	copy(out, doses)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].DoseStatus.Completed(), out[j].DoseStatus.Completed()
		if ci != cj {
			return !ci
		}
		return ParseTimeToMinutes(out[i].DoseTimeFormatted) < ParseTimeToMinutes(out[j].DoseTimeFormatted)
	})
	return out
}

// GroupDosesByTime groups overdue doses into one leading group, then the
// remaining doses by identical DoseTime in time-of-day order.
func GroupDosesByTime(doses []ExpandedDose, lang Language) []DoseGroup {
	var overdue, rest []ExpandedDose
	for _, d := range doses {
		if d.DoseStatus == StatusOverdue {
			overdue = append(overdue, d)
		} else {
			rest = append(rest, d)
		}
	}

	var groups []DoseGroup
	if len(overdue) > 0 {
		groups = append(groups, DoseGroup{
			Key:   OverdueGroupKey,
			Label: OverdueLabel(lang),
			Doses: overdue,
		})
	}

	sort.SliceStable(rest, func(i, j int) bool {
		return ParseTimeToMinutes(rest[i].DoseTime) < ParseTimeToMinutes(rest[j].DoseTime)
	})

	for _, d := range rest {
		if n := len(groups); n > 0 && groups[n-1].Key == d.DoseTime {
			groups[n-1].Doses = append(groups[n-1].Doses, d)
			continue
		}
		label := FormatTimeTo12Hour(d.DoseTime, lang)
		if d.DoseStatus == StatusAsNeeded {
			label = AsNeededLabel(lang)
		}
		groups = append(groups, DoseGroup{
			Key:   d.DoseTime,
			Label: label,
			Doses: []ExpandedDose{d},
		})
	}

	return groups
}

// FlattenGroups concatenates the doses of groups in order.
func FlattenGroups(groups []DoseGroup) []ExpandedDose {
	var out []ExpandedDose
	for _, g := range groups {
		out = append(out, g.Doses...)
	}
	return out
}

// TodayStatus counts the day's doses by status.  The four buckets need not
// add up to Total: as-needed and skipped doses only count towards Total.
type TodayStatus struct {
	Total    int
	Taken    int
	Overdue  int
	Pending  int
	Upcoming int
}

// CalculateTodayStatus tallies doses for now's day.  A dose counts as taken
// when a taken record exists for it today or it already carries the taken
// status; otherwise its own status picks the bucket.
func CalculateTodayStatus(doses []ExpandedDose, records []dbtypes.DoseRecord, now time.Time) TodayStatus {
	status := TodayStatus{Total: len(doses)}
	for _, d := range doses {
		taken, _ := IsDoseTakenToday(d.Medicine.ID, d.DoseTime, records, now)
		if taken || d.DoseStatus == StatusTaken {
			status.Taken++
			continue
		}
		switch d.DoseStatus {
		case StatusOverdue:
			status.Overdue++
		case StatusPending:
			status.Pending++
		case StatusUpcoming:
			status.Upcoming++
		}
	}
	return status
}

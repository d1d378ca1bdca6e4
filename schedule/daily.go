package schedule

import (
	"sort"
	"time"

	"medreminder/dbtypes"
)

// Period is a coarse part of the day.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
	PeriodNight     Period = "night"
)

// PeriodForHour buckets an hour: [0,12) morning, [12,17) afternoon, [17,21)
// evening, [21,24) night.
func PeriodForHour(hour int) Period {
	switch {
	case hour < 12:
		return PeriodMorning
	case hour < 17:
		return PeriodAfternoon
	case hour < 21:
		return PeriodEvening
	default:
		return PeriodNight
	}
}

type ScheduleStatus string

const (
	ScheduleTaken    ScheduleStatus = "taken"
	ScheduleMissed   ScheduleStatus = "missed"
	SchedulePending  ScheduleStatus = "pending"
	ScheduleUpcoming ScheduleStatus = "upcoming"
)

// ScheduleItem is one dose on a specific calendar day.
type ScheduleItem struct {
	Medicine      dbtypes.Medicine
	DoseIndex     int
	ScheduledTime string
	Period        Period
	Status        ScheduleStatus
	TakenAt       *time.Time

	// Record is the matching dose record, if one exists.
	Record *dbtypes.DoseRecord
}

// DoseID identifies the item's dose the same way ExpandedDose does.
func (s ScheduleItem) DoseID() string {
	return DoseID(s.Medicine.ID, s.DoseIndex)
}

// GenerateScheduleForDate lists every timed dose of meds on targetDate.
//
// Recorded outcomes win.  Without one, a past day's dose is missed, a future
// day's is upcoming, and today's follows CalculateDoseStatus with overdue
// folded into missed.  As-needed medicines never appear.  Items are ordered by
// time of day, ties keeping medicine order.
func GenerateScheduleForDate(meds []dbtypes.Medicine, targetDate time.Time, records []dbtypes.DoseRecord, now time.Time) []ScheduleItem {
	loc := now.Location()
	relation := dayRelation(targetDate, now)

	type recordKey struct {
		medicineID string
		time24     string
	}
	onDay := map[recordKey]*dbtypes.DoseRecord{}
	for i := range records {
		r := &records[i]
		if !SameDay(r.ScheduledDate, targetDate, loc) {
			continue
		}
		k := recordKey{r.MedicineID, ParseTimeTo24Hour(r.ScheduledTime)}
		if _, dup := onDay[k]; !dup {
			onDay[k] = r
		}
	}

	var items []ScheduleItem
	for _, m := range meds {
		for i, t := range m.Times {
			time24 := ParseTimeTo24Hour(t)
			minutes := ParseTimeToMinutes(time24)

			item := ScheduleItem{
				Medicine:      m,
				DoseIndex:     i,
				ScheduledTime: time24,
				Period:        PeriodForHour(minutes / 60),
			}

			rec := onDay[recordKey{m.ID, time24}]
			item.Record = rec

			switch {
			case rec != nil && rec.Status == dbtypes.RecordTaken:
				item.Status = ScheduleTaken
				item.TakenAt = rec.TakenAt
			case rec != nil && (rec.Status == dbtypes.RecordMissed || rec.Status == dbtypes.RecordSkipped):
				item.Status = ScheduleMissed
			case relation < 0:
				item.Status = ScheduleMissed
			case relation > 0:
				item.Status = ScheduleUpcoming
			default:
				switch CalculateDoseStatus(time24, now, nil) {
				case StatusOverdue:
					item.Status = ScheduleMissed
				case StatusUpcoming:
					item.Status = ScheduleUpcoming
				default:
					item.Status = SchedulePending
				}
			}

			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return ParseTimeToMinutes(items[i].ScheduledTime) < ParseTimeToMinutes(items[j].ScheduledTime)
	})

	return items
}

// HasMissedMedicationsOnDate reports whether any dose on targetDate is
// missed.
func HasMissedMedicationsOnDate(meds []dbtypes.Medicine, targetDate time.Time, records []dbtypes.DoseRecord, now time.Time) bool {
	for _, item := range GenerateScheduleForDate(meds, targetDate, records, now) {
		if item.Status == ScheduleMissed {
			return true
		}
	}
	return false
}

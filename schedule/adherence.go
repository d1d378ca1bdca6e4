package schedule

import (
	"math"
	"sort"
	"time"

	"medreminder/dbtypes"
)

// AdherenceStats summarizes the recorded outcomes of a set of doses.
type AdherenceStats struct {
	// TotalDoses counts records with an outcome: taken, skipped or missed.
	TotalDoses   int
	TakenDoses   int
	SkippedDoses int
	MissedDoses  int

	// Adherence is the rounded percentage of TotalDoses that were taken.  It
	// is 100 when there is nothing to judge yet.
	Adherence int

	// Streak counts the most recent consecutive taken records.
	Streak int
}

// CalculateAdherenceStats computes adherence and streak over records.
func CalculateAdherenceStats(records []dbtypes.DoseRecord) AdherenceStats {
	var stats AdherenceStats
	for _, r := range records {
		switch r.Status {
		case dbtypes.RecordTaken:
			stats.TakenDoses++
		case dbtypes.RecordSkipped:
			stats.SkippedDoses++
		case dbtypes.RecordMissed:
			stats.MissedDoses++
		default:
			continue
		}
		stats.TotalDoses++
	}

	stats.Adherence = 100
	if stats.TotalDoses > 0 {
		stats.Adherence = int(math.Round(float64(stats.TakenDoses) / float64(stats.TotalDoses) * 100))
	}

	sorted := newestFirst(records)
	for _, r := range sorted {
		if r.Status == dbtypes.RecordMissed || r.Status == dbtypes.RecordSkipped {
			break
		}
		if r.Status == dbtypes.RecordTaken {
			stats.Streak++
		}
	}

	return stats
}

// CalculateMedicineStats computes adherence over one medicine's records.
func CalculateMedicineStats(medicineID string, records []dbtypes.DoseRecord) AdherenceStats {
	var mine []dbtypes.DoseRecord
	for _, r := range records {
		if r.MedicineID == medicineID {
			mine = append(mine, r)
		}
	}
	return CalculateAdherenceStats(mine)
}

// CalculateUserStreak counts the most recent consecutive calendar days, in
// loc, on which every record was taken.  Days without any record are not
// considered.
func CalculateUserStreak(records []dbtypes.DoseRecord, loc *time.Location) int {
	allTaken := map[string]bool{}
	for _, r := range records {
		key := DayKey(r.ScheduledDate, loc)
		prev, seen := allTaken[key]
		if !seen {
			prev = true
		}
		allTaken[key] = prev && r.Status == dbtypes.RecordTaken
	}

	days := make([]string, 0, len(allTaken))
	for d := range allTaken {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	streak := 0
	for _, d := range days {
		if !allTaken[d] {
			break
		}
		streak++
	}
	return streak
}

func newestFirst(records []dbtypes.DoseRecord) []dbtypes.DoseRecord {
	out := make([]dbtypes.DoseRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.After(out[j].ScheduledDate)
		}
		return ParseTimeToMinutes(out[i].ScheduledTime) > ParseTimeToMinutes(out[j].ScheduledTime)
	})
	return out
}

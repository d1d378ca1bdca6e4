package schedule

import (
	"sync"
	"time"

	"medreminder/dbtypes"
)

// IsDoseTakenToday looks for a taken record of the given dose among the
// records scheduled on now's calendar day.
func IsDoseTakenToday(medicineID, scheduledTime24 string, records []dbtypes.DoseRecord, now time.Time) (bool, *dbtypes.DoseRecord) {
	loc := now.Location()
	start := StartOfDay(now, loc)
	end := start.AddDate(0, 0, 1)

	for i := range records {
		r := &records[i]
		if r.MedicineID != medicineID {
			continue
		}
		if r.ScheduledDate.Before(start) || !r.ScheduledDate.Before(end) {
			continue
		}
		if r.ScheduledTime == scheduledTime24 && r.Status == dbtypes.RecordTaken {
			return true, r
		}
	}
	return false, nil
}

// DoseOverride forces the status of the dose identified by (MedicineID,
// ScheduledTime) on the current day.
//
// Overrides come either from persisted records or from actions the user took
// in the current session that have not round-tripped yet; both are applied the
// same way.
type DoseOverride struct {
	MedicineID    string
	ScheduledTime string
	Status        DoseStatus
	TakenAt       *time.Time
}

// OverridesFromRecords derives overrides from today's taken and skipped
// records.
func OverridesFromRecords(records []dbtypes.DoseRecord, now time.Time) []DoseOverride {
	loc := now.Location()
	var out []DoseOverride
	for _, r := range records {
		if !SameDay(r.ScheduledDate, now, loc) {
			continue
		}
		switch r.Status {
		case dbtypes.RecordTaken:
			out = append(out, DoseOverride{
				MedicineID:    r.MedicineID,
				ScheduledTime: r.ScheduledTime,
				Status:        StatusTaken,
				TakenAt:       r.TakenAt,
			})
		case dbtypes.RecordSkipped:
			out = append(out, DoseOverride{
				MedicineID:    r.MedicineID,
				ScheduledTime: r.ScheduledTime,
				Status:        StatusSkipped,
			})
		}
	}
	return out
}

type overrideKey struct {
	medicineID    string
	scheduledTime string
}

// ApplyOverrides returns a copy of doses with overrides applied.  Later
// override lists take precedence over earlier ones, so pass record-derived
// overrides first and local ones last.
func ApplyOverrides(doses []ExpandedDose, overrides ...[]DoseOverride) []ExpandedDose {
	merged := map[overrideKey]DoseOverride{}
	for _, list := range overrides {
		for _, o := range list {
			merged[overrideKey{o.MedicineID, o.ScheduledTime}] = o
		}
	}

	out := make([]ExpandedDose, len(doses))
	copy(out, doses)
	for i := range out {
		o, ok := merged[overrideKey{out[i].Medicine.ID, out[i].DoseTime}]
		if !ok {
			continue
		}
		out[i].DoseStatus = o.Status
		out[i].TakenAt = nil
		if o.Status == StatusTaken {
			out[i].TakenAt = o.TakenAt
		}
	}
	return out
}

// LocalOverrides tracks optimistic take and skip actions made in the current
// session, before the corresponding record has been re-fetched.  Actions are
// remembered against the day they were made on and expire with it.
//
// It is safe for concurrent use.
type LocalOverrides struct {
	mu      sync.Mutex
	entries map[overrideKey]localEntry
}

type localEntry struct {
	day      string
	override DoseOverride
}

func NewLocalOverrides() *LocalOverrides {
	return &LocalOverrides{entries: map[overrideKey]localEntry{}}
}

// Take records that the dose was just taken at takenAt.
func (l *LocalOverrides) Take(medicineID, scheduledTime string, takenAt time.Time) {
	l.set(takenAt, DoseOverride{
		MedicineID:    medicineID,
		ScheduledTime: scheduledTime,
		Status:        StatusTaken,
		TakenAt:       &takenAt,
	})
}

// Skip records that the dose was just skipped.
func (l *LocalOverrides) Skip(medicineID, scheduledTime string, now time.Time) {
	l.set(now, DoseOverride{
		MedicineID:    medicineID,
		ScheduledTime: scheduledTime,
		Status:        StatusSkipped,
	})
}

// Clear drops any local action for the dose, e.g. after an undo or once the
// persisted record has been fetched.
func (l *LocalOverrides) Clear(medicineID, scheduledTime string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, overrideKey{medicineID, scheduledTime})
}

// Overrides snapshots the local actions made on now's day, dropping any left
// over from earlier days.
func (l *LocalOverrides) Overrides(now time.Time) []DoseOverride {
	today := DayKey(now, now.Location())

	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]DoseOverride, 0, len(l.entries))
	for k, e := range l.entries {
		if e.day != today {
			delete(l.entries, k)
			continue
		}
		out = append(out, e.override)
	}
	return out
}

func (l *LocalOverrides) set(at time.Time, o DoseOverride) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[overrideKey{o.MedicineID, o.ScheduledTime}] = localEntry{
		day:      DayKey(at, at.Location()),
		override: o,
	}
}

package dblayer

import (
	"errors"
	"testing"
	"time"

	"medreminder/dbtypes"

	"github.com/google/go-cmp/cmp"
)

var kst = time.FixedZone("KST", 9*60*60)

func TestDoseRecordIDIsNaturalKey(t *testing.T) {
	day := time.Date(2024, 3, 13, 0, 0, 0, 0, kst)

	got := DoseRecordID("med-a", day, "8:00 PM")
	if want := "med-a_20240313_2000"; got != want {
		t.Errorf("DoseRecordID = %q, want %q", got, want)
	}

	if DoseRecordID("med-a", day, "20:00") != got {
		t.Errorf("12-hour and 24-hour forms of the same time gave different IDs")
	}
	if DoseRecordID("med-a", day.AddDate(0, 0, 1), "20:00") == got {
		t.Errorf("Different days gave the same ID")
	}
}

func TestNewDoseRecord(t *testing.T) {
	now := time.Date(2024, 3, 13, 23, 50, 0, 0, kst)

	got := NewDoseRecord("user-1", "med-a", "9:30 PM", now, now)
	want := &dbtypes.DoseRecord{
		ID:            "med-a_20240313_2130",
		UserID:        "user-1",
		MedicineID:    "med-a",
		ScheduledDate: time.Date(2024, 3, 13, 0, 0, 0, 0, kst),
		ScheduledTime: "21:30",
		Status:        dbtypes.RecordPending,
		UpdatedAt:     now,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad new record; diff (-got +want)\n%s", diff)
	}
}

func TestNewDoseRecordForPastDay(t *testing.T) {
	now := time.Date(2024, 3, 13, 0, 10, 0, 0, kst)

	// 23:00 UTC on the 12th is already the 13th in KST.
	got := NewDoseRecord("user-1", "med-a", "08:00", time.Date(2024, 3, 12, 23, 0, 0, 0, time.UTC), now)
	if got.ID != "med-a_20240313_0800" {
		t.Errorf("ID = %q, want the KST calendar day", got.ID)
	}

	got = NewDoseRecord("user-1", "med-a", "08:00", now.AddDate(0, 0, -1), now)
	if got.ID != "med-a_20240312_0800" || !got.ScheduledDate.Equal(time.Date(2024, 3, 12, 0, 0, 0, 0, kst)) {
		t.Errorf("Record for yesterday = %+v", got)
	}
}

func TestApplyRecordStatus(t *testing.T) {
	now := time.Date(2024, 3, 13, 8, 5, 0, 0, kst)
	record := NewDoseRecord("user-1", "med-a", "08:00", now, now.Add(-time.Hour))

	if err := ApplyRecordStatus(record, dbtypes.RecordTaken, now); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if record.Status != dbtypes.RecordTaken || record.TakenAt == nil || !record.TakenAt.Equal(now) {
		t.Errorf("After take: status %q takenAt %v", record.Status, record.TakenAt)
	}

	if err := ApplyRecordStatus(record, dbtypes.RecordPending, now); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if record.Status != dbtypes.RecordPending || record.TakenAt != nil {
		t.Errorf("After undo: status %q takenAt %v", record.Status, record.TakenAt)
	}
	if !record.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", record.UpdatedAt, now)
	}

	if err := ApplyRecordStatus(record, "eaten", now); !errors.Is(err, ErrInvalidRecordStatus) {
		t.Errorf("Unknown status gave error %v, want ErrInvalidRecordStatus", err)
	}
}

func TestNormalizeMedicine(t *testing.T) {
	med := &dbtypes.Medicine{Name: "Metformin", Times: []string{"8:00 AM", "오후 8:00", "13:15"}}
	if err := NormalizeMedicine(med); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if diff := cmp.Diff(med.Times, []string{"08:00", "20:00", "13:15"}); diff != "" {
		t.Errorf("Bad normalized times; diff (-got +want)\n%s", diff)
	}
	if med.Status != dbtypes.MedicineActive {
		t.Errorf("Status = %q, want active", med.Status)
	}
	if med.Type != dbtypes.MedicineOther {
		t.Errorf("Type = %q, want other", med.Type)
	}

	weekly := &dbtypes.Medicine{Name: "Methotrexate", Times: []string{"09:00"}, DaysOfWeek: []dbtypes.Weekday{dbtypes.Sunday, dbtypes.Monday, dbtypes.Sunday}}
	if err := NormalizeMedicine(weekly); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(weekly.DaysOfWeek, []dbtypes.Weekday{dbtypes.Monday, dbtypes.Sunday}); diff != "" {
		t.Errorf("Bad normalized days; diff (-got +want)\n%s", diff)
	}

	asNeeded := &dbtypes.Medicine{Name: "Ibuprofen"}
	if err := NormalizeMedicine(asNeeded); err != nil {
		t.Errorf("As-needed medicine rejected: %v", err)
	}
}

func TestNormalizeMedicineRejects(t *testing.T) {
	if err := NormalizeMedicine(&dbtypes.Medicine{Times: []string{"08:00"}}); !errors.Is(err, ErrMedicineNameMustNotBeEmpty) {
		t.Errorf("Nameless medicine gave %v, want ErrMedicineNameMustNotBeEmpty", err)
	}

	if err := NormalizeMedicine(&dbtypes.Medicine{Name: "x", Times: []string{"25:00"}}); !errors.Is(err, ErrInvalidDoseTime) {
		t.Errorf("Bad time gave %v, want ErrInvalidDoseTime", err)
	}

	if err := NormalizeMedicine(&dbtypes.Medicine{Name: "x", DaysOfWeek: []dbtypes.Weekday{7}}); !errors.Is(err, ErrInvalidWeekday) {
		t.Errorf("Bad weekday gave %v, want ErrInvalidWeekday", err)
	}
}

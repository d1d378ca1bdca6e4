package schedule

import (
	"testing"
	"time"

	"medreminder/dbtypes"

	"github.com/google/go-cmp/cmp"
)

func TestWeekdayOf(t *testing.T) {
	testCases := []struct {
		day  int
		want dbtypes.Weekday
	}{
		{11, dbtypes.Monday},
		{13, dbtypes.Wednesday},
		{16, dbtypes.Saturday},
		{17, dbtypes.Sunday},
	}
	for _, tc := range testCases {
		d := time.Date(2024, 3, tc.day, 12, 0, 0, 0, kst)
		if got := WeekdayOf(d); got != tc.want {
			t.Errorf("WeekdayOf(2024-03-%02d) = %d, want %d", tc.day, got, tc.want)
		}
	}
}

func TestWeekdayLabel(t *testing.T) {
	if got := WeekdayLabel(dbtypes.Monday, LanguageEnglish); got != "Mon" {
		t.Errorf("English Monday = %q, want Mon", got)
	}
	if got := WeekdayLabel(dbtypes.Sunday, LanguageKorean); got != "일" {
		t.Errorf("Korean Sunday = %q, want 일", got)
	}
	if got := WeekdayLabel(dbtypes.Weekday(9), LanguageEnglish); got != "" {
		t.Errorf("Out of range weekday = %q, want empty", got)
	}
}

func TestWeekStart(t *testing.T) {
	want := time.Date(2024, 3, 11, 0, 0, 0, 0, kst)
	for day := 11; day <= 17; day++ {
		d := time.Date(2024, 3, day, 23, 30, 0, 0, kst)
		if got := WeekStart(d, kst); !got.Equal(want) {
			t.Errorf("WeekStart(2024-03-%02d) = %v, want %v", day, got, want)
		}
	}
}

func TestGenerateWeek(t *testing.T) {
	now := at(13, 0)
	meds := []dbtypes.Medicine{{ID: "a", Times: []string{"08:00", "20:00"}}}
	records := []dbtypes.DoseRecord{
		record("a", time.Date(2024, 3, 12, 0, 0, 0, 0, kst), "08:00", dbtypes.RecordTaken),
		record("a", time.Date(2024, 3, 12, 0, 0, 0, 0, kst), "20:00", dbtypes.RecordTaken),
		record("a", now, "08:00", dbtypes.RecordTaken),
	}

	week := GenerateWeek(meds, now, records, now)
	if len(week) != 7 {
		t.Fatalf("Got %d days, want 7", len(week))
	}

	type daySummary struct {
		Day       int
		Weekday   dbtypes.Weekday
		IsToday   bool
		Counts    DayCounts
		HasMissed bool
	}
	var got []daySummary
	for _, d := range week {
		got = append(got, daySummary{d.Date.Day(), d.Weekday, d.IsToday, d.Counts, d.HasMissed})
	}

	want := []daySummary{
		{11, dbtypes.Monday, false, DayCounts{Total: 2, Missed: 2}, true},
		{12, dbtypes.Tuesday, false, DayCounts{Total: 2, Taken: 2}, false},
		{13, dbtypes.Wednesday, true, DayCounts{Total: 2, Taken: 1, Upcoming: 1}, false},
		{14, dbtypes.Thursday, false, DayCounts{Total: 2, Upcoming: 2}, false},
		{15, dbtypes.Friday, false, DayCounts{Total: 2, Upcoming: 2}, false},
		{16, dbtypes.Saturday, false, DayCounts{Total: 2, Upcoming: 2}, false},
		{17, dbtypes.Sunday, false, DayCounts{Total: 2, Upcoming: 2}, false},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad week; diff (-got +want)\n%s", diff)
	}
}

func TestGenerateWeekFromSunday(t *testing.T) {
	now := at(13, 0)
	sunday := time.Date(2024, 3, 17, 9, 0, 0, 0, kst)

	week := GenerateWeek(nil, sunday, nil, now)
	if got := week[0].Date; !got.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, kst)) {
		t.Errorf("Week containing Sunday starts %v, want Monday 2024-03-11", got)
	}
	if !week[2].IsToday {
		t.Errorf("Wednesday should be flagged as today")
	}
}

func TestLoadLocation(t *testing.T) {
	if got := LoadLocation("", kst); got != kst {
		t.Errorf("Empty zone name gave %v, want fallback", got)
	}
	if got := LoadLocation("Not/AZone", kst); got != kst {
		t.Errorf("Unknown zone name gave %v, want fallback", got)
	}
	if got := LoadLocation("UTC", kst); got.String() != "UTC" {
		t.Errorf("LoadLocation(UTC) = %v", got)
	}
}

package schedule

import (
	"testing"

	"medreminder/dbtypes"

	"github.com/google/go-cmp/cmp"
)

func doseIDs(doses []ExpandedDose) []string {
	var out []string
	for _, d := range doses {
		out = append(out, d.DoseID)
	}
	return out
}

func groupSummary(groups []DoseGroup) map[string][]string {
	out := map[string][]string{}
	for _, g := range groups {
		out[g.Key] = doseIDs(g.Doses)
	}
	return out
}

func groupKeys(groups []DoseGroup) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g.Key)
	}
	return out
}

func sampleMedicines() []dbtypes.Medicine {
	return []dbtypes.Medicine{
		{ID: "a", Times: []string{"20:00", "08:00"}},
		{ID: "b", Times: []string{"08:00", "13:00"}},
		{ID: "prn"},
		{ID: "c", Times: []string{"7:00 AM"}},
	}
}

func TestSortDoses(t *testing.T) {
	now := at(12, 50)
	doses := ExpandMedicineDoses(sampleMedicines(), now, LanguageEnglish)
	doses = ApplyOverrides(doses, []DoseOverride{
		{MedicineID: "a", ScheduledTime: "08:00", Status: StatusTaken},
		{MedicineID: "c", ScheduledTime: "07:00", Status: StatusSkipped},
	})

	got := doseIDs(SortDoses(doses))
	want := []string{
		"prn-dose-0", // as-needed, sorts first
		"b-dose-0",   // 08:00 overdue
		"b-dose-1",   // 13:00 pending
		"a-dose-0",   // 20:00 upcoming
		"c-dose-0",   // 07:00 skipped
		"a-dose-1",   // 08:00 taken
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad sort order; diff (-got +want)\n%s", diff)
	}
}

func TestSortDosesDemotesCompletedAsNeeded(t *testing.T) {
	now := at(12, 50)
	doses := ExpandMedicineDoses(sampleMedicines(), now, LanguageKorean)
	doses = ApplyOverrides(doses, []DoseOverride{
		{MedicineID: "prn", ScheduledTime: "00:00", Status: StatusTaken},
	})

	got := doseIDs(SortDoses(doses))
	if got[len(got)-1] != "prn-dose-0" {
		t.Errorf("Taken as-needed dose should sort last, got order %v", got)
	}
}

func TestGroupDosesByTime(t *testing.T) {
	now := at(12, 50)
	doses := ExpandMedicineDoses(sampleMedicines(), now, LanguageEnglish)
	groups := GroupDosesByTime(doses, LanguageEnglish)

	wantKeys := []string{OverdueGroupKey, "00:00", "13:00", "20:00"}
	if diff := cmp.Diff(groupKeys(groups), wantKeys); diff != "" {
		t.Fatalf("Bad group keys; diff (-got +want)\n%s", diff)
	}

	wantGroups := map[string][]string{
		OverdueGroupKey: {"a-dose-1", "b-dose-0", "c-dose-0"},
		"00:00":         {"prn-dose-0"},
		"13:00":         {"b-dose-1"},
		"20:00":         {"a-dose-0"},
	}
	if diff := cmp.Diff(groupSummary(groups), wantGroups); diff != "" {
		t.Errorf("Bad group contents; diff (-got +want)\n%s", diff)
	}

	if groups[0].Label != "Overdue" {
		t.Errorf("Overdue group label = %q, want %q", groups[0].Label, "Overdue")
	}
	if groups[1].Label != "As needed" {
		t.Errorf("As-needed group label = %q, want %q", groups[1].Label, "As needed")
	}
	if groups[2].Label != "1:00 PM" {
		t.Errorf("13:00 group label = %q, want %q", groups[2].Label, "1:00 PM")
	}
}

func TestGroupDosesCoalescesSameTime(t *testing.T) {
	now := at(6, 0)
	doses := ExpandMedicineDoses(sampleMedicines(), now, LanguageKorean)
	groups := GroupDosesByTime(doses, LanguageKorean)

	want := map[string][]string{
		"00:00": {"prn-dose-0"},
		"07:00": {"c-dose-0"},
		"08:00": {"a-dose-1", "b-dose-0"},
		"13:00": {"b-dose-1"},
		"20:00": {"a-dose-0"},
	}
	if diff := cmp.Diff(groupSummary(groups), want); diff != "" {
		t.Errorf("Bad grouping; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(groupKeys(groups), []string{"00:00", "07:00", "08:00", "13:00", "20:00"}); diff != "" {
		t.Errorf("Bad group order; diff (-got +want)\n%s", diff)
	}
}

func TestGroupDosesIsStable(t *testing.T) {
	for _, now := range []struct{ h, m int }{{6, 0}, {8, 5}, {12, 50}, {23, 0}} {
		doses := ExpandMedicineDoses(sampleMedicines(), at(now.h, now.m), LanguageEnglish)
		once := GroupDosesByTime(doses, LanguageEnglish)
		twice := GroupDosesByTime(FlattenGroups(once), LanguageEnglish)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("Regrouping at %02d:%02d changed groups; diff (-once +twice)\n%s", now.h, now.m, diff)
		}
	}
}

func TestCalculateTodayStatus(t *testing.T) {
	now := at(12, 50)
	doses := ExpandMedicineDoses(sampleMedicines(), now, LanguageEnglish)

	records := []dbtypes.DoseRecord{
		record("b", now, "08:00", dbtypes.RecordTaken),
		record("a", now.AddDate(0, 0, -1), "08:00", dbtypes.RecordTaken),
		record("c", now, "07:00", dbtypes.RecordSkipped),
	}
	doses = ApplyOverrides(doses, OverridesFromRecords(records, now))

	got := CalculateTodayStatus(doses, records, now)
	want := TodayStatus{
		Total:    6,
		Taken:    1, // b 08:00
		Overdue:  1, // a 08:00
		Pending:  1, // b 13:00
		Upcoming: 1, // a 20:00
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad today status; diff (-got +want)\n%s", diff)
	}
}

func TestCalculateTodayStatusBounds(t *testing.T) {
	for h := 0; h < 24; h++ {
		now := at(h, 17)
		doses := ExpandMedicineDoses(sampleMedicines(), now, LanguageKorean)
		records := []dbtypes.DoseRecord{record("a", now, "08:00", dbtypes.RecordTaken)}

		got := CalculateTodayStatus(doses, records, now)
		if got.Total != len(doses) {
			t.Errorf("At %02d:17 total = %d, want %d", h, got.Total, len(doses))
		}
		if sum := got.Taken + got.Overdue + got.Pending + got.Upcoming; sum > got.Total {
			t.Errorf("At %02d:17 buckets add up to %d, more than total %d", h, sum, got.Total)
		}
	}
}

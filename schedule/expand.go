package schedule

import (
	"fmt"
	"time"

	"medreminder/dbtypes"
)

// ExpandedDose is one concrete dose of a medicine on the current day.
type ExpandedDose struct {
	Medicine dbtypes.Medicine

	// DoseID is "{medicineID}-dose-{index}".
	DoseID string

	// DoseTime is the normalized 24-hour time.  As-needed doses use "00:00".
	DoseTime string

	// DoseTimeFormatted is DoseTime rendered for display, or the as-needed
	// label.
	DoseTimeFormatted string

	DoseIndex  int
	TotalDoses int
	DoseStatus DoseStatus
	TakenAt    *time.Time
}

// MedicineID is a shorthand for d.Medicine.ID.
func (d ExpandedDose) MedicineID() string {
	return d.Medicine.ID
}

// DoseID builds the identifier of the index'th dose of a medicine.
func DoseID(medicineID string, index int) string {
	return fmt.Sprintf("%s-dose-%d", medicineID, index)
}

// ActiveMedicines filters out paused, completed and discontinued medicines.
// A medicine with no status is treated as active.
func ActiveMedicines(meds []dbtypes.Medicine) []dbtypes.Medicine {
	var out []dbtypes.Medicine
	for _, m := range meds {
		if m.Status == "" || m.Status == dbtypes.MedicineActive {
			out = append(out, m)
		}
	}
	return out
}

// ExpandMedicineDoses turns each medicine into one dose per scheduled time,
// or a single as-needed dose when it has no times.
//
// Doses keep the medicine's own time order, and medicines keep input order.
func ExpandMedicineDoses(meds []dbtypes.Medicine, now time.Time, lang Language) []ExpandedDose {
	var doses []ExpandedDose
	for _, m := range meds {
		if len(m.Times) == 0 {
			doses = append(doses, ExpandedDose{
				Medicine:          m,
				DoseID:            DoseID(m.ID, 0),
				DoseTime:          "00:00",
				DoseTimeFormatted: AsNeededLabel(lang),
				DoseIndex:         0,
				TotalDoses:        1,
				DoseStatus:        StatusAsNeeded,
			})
			continue
		}

		for i, t := range m.Times {
			time24 := ParseTimeTo24Hour(t)
			doses = append(doses, ExpandedDose{
				Medicine:          m,
				DoseID:            DoseID(m.ID, i),
				DoseTime:          time24,
				DoseTimeFormatted: FormatTimeTo12Hour(time24, lang),
				DoseIndex:         i,
				TotalDoses:        len(m.Times),
				DoseStatus:        CalculateDoseStatus(time24, now, nil),
			})
		}
	}
	return doses
}

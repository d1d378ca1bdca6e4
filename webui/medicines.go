package webui

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"medreminder/dblayer"
	"medreminder/dbtypes"
	"medreminder/schedule"
	"medreminder/webui/uitemplates"

	"github.com/golang/glog"
)

var medicineTypes = []dbtypes.MedicineType{
	dbtypes.MedicineTablet,
	dbtypes.MedicineCapsule,
	dbtypes.MedicineLiquid,
	dbtypes.MedicineInjection,
	dbtypes.MedicineCream,
	dbtypes.MedicineInhaler,
	dbtypes.MedicineOther,
}

// medicinesHandler lists every medicine of the care recipient with its
// adherence over the stats window.
func (u *WebUI) medicinesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/medicines" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	p, ok := u.beginPage(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	meds, err := u.db.ListMedicines(ctx, p.patient.ID)
	if err != nil {
		glog.Errorf("Error while listing medicines of %s: %v", p.patient.ID, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	today := schedule.StartOfDay(p.now, p.loc)
	records, err := u.db.ListDoseRecords(ctx, p.patient.ID, today.AddDate(0, 0, -statsWindowDays), today.AddDate(0, 0, 1))
	if err != nil {
		glog.Errorf("Error while listing dose records of %s: %v", p.patient.ID, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	overall := schedule.CalculateAdherenceStats(records)
	params := &uitemplates.MedicinesParams{
		Nav:         p.nav(),
		UserError:   r.Form.Get("user-error"),
		PatientID:   p.patientParam,
		PatientName: displayName(p.patient),
		CreateLink:  CreateMedicineLink(p.patientParam, ""),
		Adherence:   overall.Adherence,
		Taken:       overall.TakenDoses,
		Total:       overall.TotalDoses,
		Streak:      schedule.CalculateUserStreak(records, p.loc),
	}

	for _, m := range meds {
		stats := schedule.CalculateMedicineStats(m.ID, records)
		row := uitemplates.MedicineRow{
			ID:        m.ID,
			Name:      m.Name,
			Dosage:    m.Dosage,
			Type:      string(m.Type),
			Status:    string(m.Status),
			Adherence: stats.Adherence,
			Taken:     stats.TakenDoses,
			Skipped:   stats.SkippedDoses,
			Missed:    stats.MissedDoses,
			Total:     stats.TotalDoses,
		}

		if len(m.Times) == 0 {
			row.Times = schedule.AsNeededLabel(p.lang)
		} else {
			var times []string
			for _, t := range m.Times {
				times = append(times, schedule.FormatTimeTo12Hour(schedule.ParseTimeTo24Hour(t), p.lang))
			}
			row.Times = strings.Join(times, ", ")
		}

		var days []string
		for _, d := range m.DaysOfWeek {
			days = append(days, schedule.WeekdayLabel(d, p.lang))
		}
		row.Days = strings.Join(days, ", ")

		switch m.Status {
		case dbtypes.MedicineActive, "":
			row.ToggleStatus = string(dbtypes.MedicinePaused)
			row.ToggleLabel = "Pause"
		case dbtypes.MedicinePaused:
			row.ToggleStatus = string(dbtypes.MedicineActive)
			row.ToggleLabel = "Resume"
		}

		params.Medicines = append(params.Medicines, row)
	}

	content, err := uitemplates.MedicinesPage(params)
	writePage(w, content, err)
}

func (u *WebUI) createMedicineHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/create-medicine" {
		glog.Errorf("Returning Not Found because createMedicineHandler doesn't support path %q", r.URL.Path)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		u.createMedicineGetHandler(w, r)
	case http.MethodPost:
		u.createMedicinePostHandler(w, r)
	default:
		glog.Errorf("Returning Bad Request because createMedicineHandler doesn't support method %q", r.Method)
		http.Error(w, "Bad Request", http.StatusBadRequest)
	}
}

func (u *WebUI) createMedicineGetHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := u.beginPage(w, r)
	if !ok {
		return
	}

	params := &uitemplates.CreateMedicineParams{
		Nav:         p.nav(),
		UserError:   r.Form.Get("user-error"),
		PatientID:   p.patientParam,
		PatientName: displayName(p.patient),
		SelfLink:    CreateMedicineLink(p.patientParam, ""),
	}
	for _, t := range medicineTypes {
		params.Types = append(params.Types, string(t))
	}
	for d := dbtypes.Monday; d <= dbtypes.Sunday; d++ {
		params.Days = append(params.Days, uitemplates.DayOption{
			Value: int(d),
			Label: schedule.WeekdayLabel(d, p.lang),
		})
	}

	content, err := uitemplates.CreateMedicinePage(params)
	writePage(w, content, err)
}

// splitTimes parses the comma-separated times field.
func splitTimes(field string) []string {
	var times []string
	for _, t := range strings.Split(field, ",") {
		if t = strings.TrimSpace(t); t != "" {
			times = append(times, t)
		}
	}
	return times
}

// parseDays reads the ordinals of the checked day-of-week boxes.  Range
// checks are left to the store.
func parseDays(fields []string) ([]dbtypes.Weekday, error) {
	var days []dbtypes.Weekday
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", dblayer.ErrInvalidWeekday, f)
		}
		days = append(days, dbtypes.Weekday(n))
	}
	return days, nil
}

func (u *WebUI) createMedicinePostHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := u.beginPage(w, r)
	if !ok {
		return
	}

	days, err := parseDays(r.PostForm["days"])
	if err != nil {
		http.Redirect(w, r, CreateMedicineLink(p.patientParam, err.Error()), http.StatusFound)
		return
	}

	med := &dbtypes.Medicine{
		UserID:     p.patient.ID,
		Name:       strings.TrimSpace(r.PostForm.Get("name")),
		Dosage:     strings.TrimSpace(r.PostForm.Get("dosage")),
		Type:       dbtypes.MedicineType(r.PostForm.Get("type")),
		Times:      splitTimes(r.PostForm.Get("times")),
		Color:      r.PostForm.Get("color"),
		Status:     dbtypes.MedicineActive,
		DaysOfWeek: days,
	}

	err = u.db.CreateMedicine(r.Context(), med)
	if errors.Is(err, dblayer.ErrMedicineNameMustNotBeEmpty) || errors.Is(err, dblayer.ErrInvalidDoseTime) || errors.Is(err, dblayer.ErrInvalidWeekday) {
		http.Redirect(w, r, CreateMedicineLink(p.patientParam, err.Error()), http.StatusFound)
		return
	}
	if err != nil {
		glog.Errorf("Error while creating medicine for %s: %v", p.patient.ID, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	glog.Infof("User %s added medicine %s for %s", p.user.ID, med.ID, p.patient.ID)
	http.Redirect(w, r, MedicinesLink(p.patientParam, ""), http.StatusFound)
}

// medicineStatusHandler pauses, resumes, completes or discontinues a medicine.
func (u *WebUI) medicineStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/medicine-status" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if r.Method != http.MethodPost {
		glog.Errorf("Returning Bad Request because medicineStatusHandler doesn't support method %q", r.Method)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	p, ok := u.beginPage(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	med, err := u.ownedMedicine(ctx, p, r.PostForm.Get("id"))
	if errors.Is(err, dblayer.ErrMedicineNotFound) {
		http.Redirect(w, r, MedicinesLink(p.patientParam, "No such medicine"), http.StatusFound)
		return
	}
	if err != nil {
		glog.Errorf("Error while retrieving medicine: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	err = u.db.UpdateMedicineStatus(ctx, med.ID, dbtypes.MedicineStatus(r.PostForm.Get("status")))
	if errors.Is(err, dblayer.ErrInvalidMedicineStatus) || errors.Is(err, dblayer.ErrMedicineNotFound) {
		http.Redirect(w, r, MedicinesLink(p.patientParam, err.Error()), http.StatusFound)
		return
	}
	if err != nil {
		glog.Errorf("Error while updating medicine %s: %v", med.ID, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, MedicinesLink(p.patientParam, ""), http.StatusFound)
}

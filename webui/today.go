package webui

import (
	"errors"
	"fmt"
	"net/http"

	"medreminder/dblayer"
	"medreminder/dbtypes"
	"medreminder/schedule"
	"medreminder/webui/uitemplates"

	"github.com/golang/glog"
)

// confirmedBy reports whether a persisted record already says what a local
// action said.
func confirmedBy(o schedule.DoseOverride, records []dbtypes.DoseRecord, p *pageRequest) bool {
	for _, r := range records {
		if r.MedicineID != o.MedicineID || r.ScheduledTime != o.ScheduledTime {
			continue
		}
		if !schedule.SameDay(r.ScheduledDate, p.now, p.loc) {
			continue
		}
		switch o.Status {
		case schedule.StatusTaken:
			return r.Status == dbtypes.RecordTaken
		case schedule.StatusSkipped:
			return r.Status == dbtypes.RecordSkipped
		}
	}
	return false
}

// todayHandler renders the home page: today's doses of the care recipient.
func (u *WebUI) todayHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	p, ok := u.beginPage(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	allMeds, err := u.db.ListMedicines(ctx, p.patient.ID)
	if err != nil {
		glog.Errorf("Error while listing medicines of %s: %v", p.patient.ID, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}
	meds := schedule.ActiveMedicines(allMeds)

	today := schedule.StartOfDay(p.now, p.loc)
	records, err := u.db.ListDoseRecords(ctx, p.patient.ID, today.AddDate(0, 0, -statsWindowDays), today.AddDate(0, 0, 1))
	if err != nil {
		glog.Errorf("Error while listing dose records of %s: %v", p.patient.ID, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	local := u.localOverrides(p.cookie)
	for _, o := range local.Overrides(p.now) {
		if confirmedBy(o, records, p) {
			local.Clear(o.MedicineID, o.ScheduledTime)
		}
	}

	doses := schedule.ExpandMedicineDoses(meds, p.now, p.lang)
	doses = schedule.ApplyOverrides(doses, schedule.OverridesFromRecords(records, p.now), local.Overrides(p.now))

	status := schedule.CalculateTodayStatus(doses, records, p.now)

	params := &uitemplates.TodayParams{
		Nav:         p.nav(),
		UserError:   r.Form.Get("user-error"),
		PatientID:   p.patientParam,
		PatientName: displayName(p.patient),
		DateLabel:   fmt.Sprintf("%s (%s)", schedule.DayKey(p.now, p.loc), schedule.WeekdayLabel(schedule.WeekdayOf(p.now), p.lang)),
		Total:       status.Total,
		Taken:       status.Taken,
		Overdue:     status.Overdue,
		Pending:     status.Pending,
		Upcoming:    status.Upcoming,
		Streak:      schedule.CalculateUserStreak(records, p.loc),
	}

	for _, g := range schedule.GroupDosesByTime(doses, p.lang) {
		group := uitemplates.TodayGroup{Label: g.Label}
		for _, d := range g.Doses {
			dose := uitemplates.TodayDose{
				MedicineID:    d.Medicine.ID,
				ScheduledTime: d.DoseTime,
				Name:          d.Medicine.Name,
				Dosage:        d.Medicine.Dosage,
				Color:         d.Medicine.Color,
				TimeLabel:     d.DoseTimeFormatted,
				Status:        string(d.DoseStatus),
				StatusLabel:   schedule.StatusLabel(d.DoseStatus, p.lang),
				CanAct:        !d.DoseStatus.Completed(),
				CanUndo:       d.DoseStatus.Completed(),
			}
			if d.TotalDoses > 1 {
				dose.Position = fmt.Sprintf("%d/%d", d.DoseIndex+1, d.TotalDoses)
			}
			if d.TakenAt != nil {
				dose.TakenAtLabel = schedule.FormatTimeTo12Hour(d.TakenAt.In(p.loc).Format("15:04"), p.lang)
			}
			group.Doses = append(group.Doses, dose)
		}
		params.Groups = append(params.Groups, group)
	}

	content, err := uitemplates.TodayPage(params)
	writePage(w, content, err)
}

// doseActionHandler takes, skips or un-does one of today's doses.
//
// The action is applied to the session's local overrides before it is
// persisted, and withdrawn again if persisting fails.
func (u *WebUI) doseActionHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/dose-action" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if r.Method != http.MethodPost {
		glog.Errorf("Returning Bad Request because doseActionHandler doesn't support method %q", r.Method)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	p, ok := u.beginPage(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	scheduledTime := r.PostForm.Get("time")
	if !schedule.IsValidTime(scheduledTime) {
		http.Redirect(w, r, TodayLink(p.patientParam, fmt.Sprintf("Unknown dose time %q", scheduledTime)), http.StatusFound)
		return
	}
	scheduledTime = schedule.ParseTimeTo24Hour(scheduledTime)

	med, err := u.ownedMedicine(ctx, p, r.PostForm.Get("medicine"))
	if errors.Is(err, dblayer.ErrMedicineNotFound) {
		http.Redirect(w, r, TodayLink(p.patientParam, "No such medicine"), http.StatusFound)
		return
	}
	if err != nil {
		glog.Errorf("Error while retrieving medicine: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	local := u.localOverrides(p.cookie)

	action := r.PostForm.Get("action")
	switch action {
	case "take":
		local.Take(med.ID, scheduledTime, p.now)
		_, err = u.db.MarkDoseTaken(ctx, p.patient.ID, med.ID, scheduledTime, p.now)
	case "skip":
		local.Skip(med.ID, scheduledTime, p.now)
		_, err = u.db.MarkDoseSkipped(ctx, p.patient.ID, med.ID, scheduledTime, p.now)
	case "undo":
		local.Clear(med.ID, scheduledTime)
		var record *dbtypes.DoseRecord
		record, err = u.db.GetOrCreateTodayRecord(ctx, p.patient.ID, med.ID, scheduledTime, p.now)
		if err == nil && record.Status != dbtypes.RecordPending {
			_, err = u.db.UpdateDoseRecordStatus(ctx, record.ID, dbtypes.RecordPending, p.now)
		}
	default:
		http.Redirect(w, r, TodayLink(p.patientParam, fmt.Sprintf("Unknown action %q", action)), http.StatusFound)
		return
	}

	if err != nil {
		local.Clear(med.ID, scheduledTime)
		glog.Errorf("Error while applying %s to %s at %s for user %s: %v", action, med.ID, scheduledTime, p.patient.ID, err)
		http.Redirect(w, r, TodayLink(p.patientParam, "Could not save the change; please try again."), http.StatusFound)
		return
	}

	http.Redirect(w, r, TodayLink(p.patientParam, ""), http.StatusFound)
}

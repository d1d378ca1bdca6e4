package webui

import (
	"net/http"
	"time"

	"medreminder/schedule"
	"medreminder/webui/uitemplates"

	"github.com/golang/glog"
)

const dateLayout = "2006-01-02"

// weekHandler renders the Monday-to-Sunday calendar around the "date"
// parameter, defaulting to the current week.
func (u *WebUI) weekHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/week" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	p, ok := u.beginPage(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	day := p.now
	if date := r.Form.Get("date"); date != "" {
		parsed, err := time.ParseInLocation(dateLayout, date, p.loc)
		if err != nil {
			glog.Infof("Ignoring unparseable week date %q: %v", date, err)
		} else {
			day = parsed
		}
	}
	start := schedule.WeekStart(day, p.loc)

	allMeds, err := u.db.ListMedicines(ctx, p.patient.ID)
	if err != nil {
		glog.Errorf("Error while listing medicines of %s: %v", p.patient.ID, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	records, err := u.db.ListDoseRecords(ctx, p.patient.ID, start, start.AddDate(0, 0, 7))
	if err != nil {
		glog.Errorf("Error while listing dose records of %s: %v", p.patient.ID, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	params := &uitemplates.WeekParams{
		Nav:         p.nav(),
		PatientID:   p.patientParam,
		PatientName: displayName(p.patient),
		PrevLink:    WeekLink(p.patientParam, start.AddDate(0, 0, -7).Format(dateLayout)),
		NextLink:    WeekLink(p.patientParam, start.AddDate(0, 0, 7).Format(dateLayout)),
	}

	for _, d := range schedule.GenerateWeek(schedule.ActiveMedicines(allMeds), start, records, p.now) {
		wd := uitemplates.WeekDay{
			WeekdayLabel: schedule.WeekdayLabel(d.Weekday, p.lang),
			DateLabel:    d.Date.Format("01-02"),
			IsToday:      d.IsToday,
			HasMissed:    d.HasMissed,
			Total:        d.Counts.Total,
			Taken:        d.Counts.Taken,
			Missed:       d.Counts.Missed,
			Pending:      d.Counts.Pending,
			Upcoming:     d.Counts.Upcoming,
		}
		for _, item := range d.Items {
			wd.Items = append(wd.Items, uitemplates.WeekItem{
				TimeLabel: schedule.FormatTimeTo12Hour(item.ScheduledTime, p.lang),
				Name:      item.Medicine.Name,
				Status:    string(item.Status),
			})
		}
		params.Days = append(params.Days, wd)
	}

	content, err := uitemplates.WeekPage(params)
	writePage(w, content, err)
}

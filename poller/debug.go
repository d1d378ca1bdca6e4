package poller

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"medreminder/reportstore"
	"medreminder/schedule"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
)

func (p *Poller) RegisterDebugHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/medreminder/user-state", p.debugHandlerUserState)
}

const userStateHTML = `
<!DOCTYPE html>
<head>
	<title>Reminder State</title>
</head>

<h1>User {{.UserID}}</h1>
<p>Today ({{.Today}}): {{.LogEntries}} notify log entries.</p>
<p>Yesterday ({{.Yesterday}}): {{if .ArchivedAt.IsZero}}not closed out{{else}}closed out at {{.ArchivedAt}}{{end}}.</p>

<h2>Archived Days</h2>
<ul>
{{range .Days}}
<li>{{.}}</li>
{{end}}
</ul>

{{with .Latest}}
<h2>Latest Summary ({{.Day}})</h2>
<p>{{.Taken}}/{{.Total}} taken, {{.Missed}} missed, {{.Adherence}}% adherence.</p>
<ul>
{{range .Items}}
<li>{{.ScheduledTime}} {{.MedicineName}}: {{.Status}}</li>
{{end}}
</ul>
{{end}}
`

var userStateTemplate = template.Must(template.New("user-state").Parse(userStateHTML))

type UserStateData struct {
	UserID     string
	Today      string
	Yesterday  string
	LogEntries int
	ArchivedAt time.Time
	Days       []string
	Latest     *reportstore.DailySummary
}

func (p *Poller) debugHandlerUserState(w http.ResponseWriter, req *http.Request) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(req.Context(), "Poller.debugHandlerUserState")
	defer span.End()

	userID := req.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}

	tmplData, err := p.debugHandlerUserStateData(ctx, userID)
	if err != nil {
		glog.Errorf("Error while retrieving reminder state of user %s: %v", userID, err)
		http.Error(w, "error retrieving reminder state", http.StatusInternalServerError)
		return
	}

	if err := userStateTemplate.Execute(w, tmplData); err != nil {
		glog.Errorf("Error while executing template: %v", err)
		return
	}
}

func (p *Poller) debugHandlerUserStateData(ctx context.Context, userID string) (*UserStateData, error) {
	// Days are keyed in the default location here; the debug page does not
	// load the user record.
	now := p.now().In(p.defaultLoc)
	today := schedule.StartOfDay(now, p.defaultLoc)

	tmplData := &UserStateData{
		UserID:    userID,
		Today:     schedule.DayKey(today, p.defaultLoc),
		Yesterday: schedule.DayKey(today.AddDate(0, 0, -1), p.defaultLoc),
	}

	count, err := p.sent.CountForDay(ctx, userID, tmplData.Today)
	if err != nil {
		return nil, err
	}
	tmplData.LogEntries = count

	archivedAt, ok, err := p.sent.SentAt(ctx, archivedKey(userID, tmplData.Yesterday))
	if err != nil {
		return nil, err
	}
	if ok {
		tmplData.ArchivedAt = archivedAt
	}

	if p.reports == nil {
		return tmplData, nil
	}

	days, err := p.reports.ListDays(ctx, userID)
	if err != nil {
		return nil, err
	}
	tmplData.Days = days

	if len(days) > 0 {
		latest := days[len(days)-1]
		summary, ok, err := p.reports.Get(ctx, userID, latest)
		if err != nil {
			return nil, fmt.Errorf("while reading summary for %s: %w", latest, err)
		}
		if ok {
			tmplData.Latest = summary
		}
	}

	return tmplData, nil
}

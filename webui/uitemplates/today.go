package uitemplates

// TodayParams drives the today view of one care recipient.
type TodayParams struct {
	Nav NavParams

	UserError string

	// PatientID is empty when users are looking at their own doses.
	PatientID   string
	PatientName string
	DateLabel   string

	Total    int
	Taken    int
	Overdue  int
	Pending  int
	Upcoming int
	Streak   int

	Groups []TodayGroup
}

type TodayGroup struct {
	Label string
	Doses []TodayDose
}

type TodayDose struct {
	MedicineID    string
	ScheduledTime string

	Name   string
	Dosage string
	Color  string

	TimeLabel string

	// Status is the machine-readable status, used for styling.
	Status      string
	StatusLabel string

	// Position is "2/3" for multi-dose medicines and empty otherwise.
	Position string

	TakenAtLabel string

	CanAct  bool
	CanUndo bool
}

var todayText = `
{{define "title"}}Today{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item active" aria-current="page"><a href="{{.Nav.TodayLink}}">Today</a></li>
{{- end}}

{{define "content"}}
<h1>{{if .PatientID}}{{.PatientName}}: {{end}}{{.DateLabel}}</h1>

{{if .UserError}}<div class="alert alert-danger" role="alert">{{.UserError}}</div>{{end}}

<div class="row mb-4">
  <div class="col"><strong>{{.Taken}}</strong> / {{.Total}} taken</div>
  <div class="col text-danger"><strong>{{.Overdue}}</strong> overdue</div>
  <div class="col"><strong>{{.Pending}}</strong> due now</div>
  <div class="col text-secondary"><strong>{{.Upcoming}}</strong> upcoming</div>
  <div class="col"><strong>{{.Streak}}</strong> day streak</div>
</div>

{{if not .Groups}}<p>No medicines scheduled.</p>{{end}}

{{$patient := .PatientID}}
{{range .Groups}}
<h2 class="h5 mt-3">{{.Label}}</h2>
<ul class="list-group">
  {{range .Doses}}
  <li class="list-group-item d-flex justify-content-between align-items-center dose-{{.Status}}">
    <div>
      {{if .Color}}<span class="badge" style="background-color: {{.Color}}">&nbsp;</span>{{end}}
      <strong>{{.Name}}</strong>{{if .Dosage}} {{.Dosage}}{{end}}{{if .Position}} <small>({{.Position}})</small>{{end}}
      <div class="text-muted">{{.TimeLabel}} &middot; {{.StatusLabel}}{{if .TakenAtLabel}} {{.TakenAtLabel}}{{end}}</div>
    </div>
    <form method="POST" action="/dose-action" class="d-flex gap-2">
      <input type="hidden" name="user" value="{{$patient}}">
      <input type="hidden" name="medicine" value="{{.MedicineID}}">
      <input type="hidden" name="time" value="{{.ScheduledTime}}">
      {{if .CanAct}}
      <button type="submit" name="action" value="take" class="btn btn-success btn-sm">Take</button>
      <button type="submit" name="action" value="skip" class="btn btn-outline-secondary btn-sm">Skip</button>
      {{end}}
      {{if .CanUndo}}
      <button type="submit" name="action" value="undo" class="btn btn-outline-warning btn-sm">Undo</button>
      {{end}}
    </form>
  </li>
  {{end}}
</ul>
{{end}}
{{end}}
`

var todayTemplate = newPage(todayText)

func TodayPage(params *TodayParams) ([]byte, error) {
	return execute(todayTemplate, params)
}

package uitemplates

type MedicinesParams struct {
	Nav NavParams

	UserError string

	PatientID   string
	PatientName string

	CreateLink string

	// Overall figures across every medicine, over the stats window.
	Adherence int
	Taken     int
	Total     int
	Streak    int

	Medicines []MedicineRow
}

type MedicineRow struct {
	ID     string
	Name   string
	Dosage string
	Type   string
	Times  string
	Days   string
	Status string

	Adherence int
	Taken     int
	Skipped   int
	Missed    int
	Total     int

	// ToggleStatus is the status the pause/resume button switches to.
	ToggleStatus string
	ToggleLabel  string
}

var medicinesText = `
{{define "title"}}Medicines{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="{{.Nav.TodayLink}}">Today</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="{{.Nav.MedicinesLink}}">Medicines</a></li>
{{- end}}

{{define "content"}}
<h1>{{if .PatientID}}{{.PatientName}}: {{end}}Medicines</h1>

{{if .UserError}}<div class="alert alert-danger" role="alert">{{.UserError}}</div>{{end}}

<p>Adherence over the last 30 days: <strong>{{.Adherence}}%</strong> ({{.Taken}}/{{.Total}}), streak {{.Streak}} day(s).</p>

<a class="btn btn-primary mb-3" href="{{.CreateLink}}">Add Medicine</a>

{{$patient := .PatientID}}
<table class="table">
  <thead>
    <tr><th>Name</th><th>Dosage</th><th>Times</th><th>Status</th><th>Adherence</th><th></th></tr>
  </thead>
  <tbody>
  {{range .Medicines}}
    <tr>
      <td>{{.Name}} <small class="text-muted">{{.Type}}</small></td>
      <td>{{.Dosage}}</td>
      <td>{{.Times}}{{if .Days}}<br><small class="text-muted">{{.Days}}</small>{{end}}</td>
      <td>{{.Status}}</td>
      <td>{{.Adherence}}% <small>({{.Taken}} taken, {{.Skipped}} skipped, {{.Missed}} missed)</small></td>
      <td>
        {{if .ToggleStatus}}
        <form method="POST" action="/medicine-status">
          <input type="hidden" name="user" value="{{$patient}}">
          <input type="hidden" name="id" value="{{.ID}}">
          <input type="hidden" name="status" value="{{.ToggleStatus}}">
          <button type="submit" class="btn btn-outline-secondary btn-sm">{{.ToggleLabel}}</button>
        </form>
        {{end}}
      </td>
    </tr>
  {{end}}
  </tbody>
</table>
{{end}}
`

var medicinesTemplate = newPage(medicinesText)

func MedicinesPage(params *MedicinesParams) ([]byte, error) {
	return execute(medicinesTemplate, params)
}

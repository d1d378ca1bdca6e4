package uitemplates

type CreateMedicineParams struct {
	Nav NavParams

	UserError string

	PatientID   string
	PatientName string

	SelfLink string

	Types []string
	Days  []DayOption
}

// DayOption is one day-of-week checkbox.  Value is the Monday-first ordinal.
type DayOption struct {
	Value int
	Label string
}

var createMedicineText = `
{{define "title"}}Add Medicine{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="{{.Nav.MedicinesLink}}">Medicines</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="{{.SelfLink}}">Add Medicine</a></li>
{{- end}}

{{define "content"}}
<h1>{{if .PatientID}}{{.PatientName}}: {{end}}Add Medicine</h1>

{{if .UserError}}<div class="alert alert-danger" role="alert">{{.UserError}}</div>{{end}}

<form method="POST" action="/create-medicine">
  <input type="hidden" name="user" value="{{.PatientID}}">
  <div class="mb-3">
    <label for="name" class="form-label">Name</label>
    <input type="text" class="form-control" name="name" id="name" required>
  </div>
  <div class="mb-3">
    <label for="dosage" class="form-label">Dosage</label>
    <input type="text" class="form-control" name="dosage" id="dosage">
  </div>
  <div class="mb-3">
    <label for="type" class="form-label">Type</label>
    <select class="form-select" name="type" id="type">
      {{range .Types}}<option value="{{.}}">{{.}}</option>{{end}}
    </select>
  </div>
  <div class="mb-3">
    <label for="times" class="form-label">Times</label>
    <input type="text" class="form-control" name="times" id="times" placeholder="08:00, 8:00 PM">
    <div class="form-text">Comma-separated.  Leave empty for an as-needed medicine.</div>
  </div>
  <div class="mb-3">
    <div class="form-label">Days</div>
    {{range .Days}}
    <div class="form-check form-check-inline">
      <input class="form-check-input" type="checkbox" name="days" id="day-{{.Value}}" value="{{.Value}}">
      <label class="form-check-label" for="day-{{.Value}}">{{.Label}}</label>
    </div>
    {{end}}
    <div class="form-text">Leave all unchecked for every day.</div>
  </div>
  <div class="mb-3">
    <label for="color" class="form-label">Color</label>
    <input type="color" class="form-control form-control-color" name="color" id="color" value="#0d6efd">
  </div>
  <button type="submit" class="btn btn-primary">Add</button>
</form>
{{end}}
`

var createMedicineTemplate = newPage(createMedicineText)

func CreateMedicinePage(params *CreateMedicineParams) ([]byte, error) {
	return execute(createMedicineTemplate, params)
}

package uitemplates

type RecipientsParams struct {
	Nav NavParams

	Recipients []RecipientRow
}

type RecipientRow struct {
	DisplayName string
	Email       string

	TodayLink     string
	WeekLink      string
	MedicinesLink string
}

var recipientsText = `
{{define "title"}}Care Recipients{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="/">Today</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="/care-recipients">Care Recipients</a></li>
{{- end}}

{{define "content"}}
<h1>Care Recipients</h1>

{{if not .Recipients}}<p>You are not looking after anyone yet.</p>{{end}}

<ul class="list-group">
  {{range .Recipients}}
  <li class="list-group-item">
    <strong>{{.DisplayName}}</strong> <small class="text-muted">{{.Email}}</small>
    <div>
      <a href="{{.TodayLink}}">Today</a> &middot;
      <a href="{{.WeekLink}}">Week</a> &middot;
      <a href="{{.MedicinesLink}}">Medicines</a>
    </div>
  </li>
  {{end}}
</ul>
{{end}}
`

var recipientsTemplate = newPage(recipientsText)

func RecipientsPage(params *RecipientsParams) ([]byte, error) {
	return execute(recipientsTemplate, params)
}

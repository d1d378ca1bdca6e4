package uitemplates

type WeekParams struct {
	Nav NavParams

	PatientID   string
	PatientName string

	PrevLink string
	NextLink string

	Days []WeekDay
}

type WeekDay struct {
	WeekdayLabel string
	DateLabel    string
	IsToday      bool
	HasMissed    bool

	Total    int
	Taken    int
	Missed   int
	Pending  int
	Upcoming int

	Items []WeekItem
}

type WeekItem struct {
	TimeLabel string
	Name      string
	Status    string
}

var weekText = `
{{define "title"}}Week{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="{{.Nav.TodayLink}}">Today</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="{{.Nav.WeekLink}}">Week</a></li>
{{- end}}

{{define "content"}}
<h1>{{if .PatientID}}{{.PatientName}}: {{end}}Week</h1>

<nav class="mb-3">
  <a class="btn btn-outline-primary btn-sm" href="{{.PrevLink}}">&larr; Previous</a>
  <a class="btn btn-outline-primary btn-sm" href="{{.NextLink}}">Next &rarr;</a>
</nav>

<div class="row row-cols-1 row-cols-md-7 g-2">
  {{range .Days}}
  <div class="col">
    <div class="card{{if .IsToday}} border-primary{{end}}{{if .HasMissed}} border-danger{{end}}">
      <div class="card-header">
        {{.WeekdayLabel}} <small>{{.DateLabel}}</small>
        {{if .HasMissed}}<span class="badge text-bg-danger">{{.Missed}}</span>{{end}}
      </div>
      <div class="card-body">
        <p class="card-text"><small>{{.Taken}}/{{.Total}}</small></p>
        <ul class="list-unstyled">
          {{range .Items}}
          <li class="schedule-{{.Status}}"><small>{{.TimeLabel}} {{.Name}}</small></li>
          {{end}}
        </ul>
      </div>
    </div>
  </div>
  {{end}}
</div>
{{end}}
`

var weekTemplate = newPage(weekText)

func WeekPage(params *WeekParams) ([]byte, error) {
	return execute(weekTemplate, params)
}

package uitemplates

type LogInParams struct {
	UserError string

	// GoogleClientID enables the "Sign in with Google" button when set.
	GoogleClientID string
}

var logInText = `{{define "title"}}Log In{{end}}
{{define "breadcrumbs" -}}
<li class="breadcrumb-item active" aria-current="page"><a href="/log-in">Log In</a></li>
{{- end}}

{{define "head"}}
{{if .GoogleClientID}}<script src="https://accounts.google.com/gsi/client" async defer></script>{{end}}
{{end}}

{{define "content"}}
<h1>Log In</h1>

{{if .UserError}}<div class="alert alert-danger" role="alert">{{.UserError}}</div>{{end}}

<form method="POST" action="/log-in">
  <div class="mb-3">
    <label for="email" class="form-label">Email</label>
    <input type="email" class="form-control" name="email" id="email" required>
  </div>
  <div class="mb-3">
    <label for="password" class="form-label">Password</label>
    <input type="password" class="form-control" name="password" id="password" required>
  </div>
  <button type="submit" class="btn btn-primary">Log In</button>
</form>

{{if .GoogleClientID}}
<div class="mt-4">
  <div id="g_id_onload"
     data-client_id="{{.GoogleClientID}}"
     data-login_uri="/log-in/google"
     data-auto_prompt="false">
  </div>
  <div class="g_id_signin" data-type="standard"></div>
</div>
{{end}}
{{end}}
`

var logInTemplate = newPublicPage(logInText)

func LogInPage(params *LogInParams) ([]byte, error) {
	return execute(logInTemplate, params)
}

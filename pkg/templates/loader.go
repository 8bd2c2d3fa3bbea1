package templates

import (
	"html/template"
	"io"
	"os"
)

type Loader struct {
	tmpl *template.Template
}

const defaultTemplate = `<!DOCTYPE html>
<html><head><title>{{.Branding.ServiceName}}</title></head>
<body style="--primary: {{.Branding.PrimaryColor}}">
{{if .Branding.LogoURL}}<img src="{{.Branding.LogoURL}}" alt="{{.Branding.ServiceName}}">{{end}}
<h1>{{.Branding.Title}}</h1><p>{{.Branding.Subtitle}}</p>
{{if .Message}}<p class="error">{{.Message}}</p>{{end}}
<form method="post">
<input type="hidden" name="session_id" value="{{.SessionID}}">
<input name="email" type="email" placeholder="Email"><input name="code" placeholder="Code">
<button type="submit">Sign In</button></form></body></html>`

// customPaths are checked in order; the first readable file replaces the
// built-in login page.
var customPaths = []string{"/config/login.html", "templates/login.html"}

func New() (*Loader, error) {
	for _, path := range customPaths {
		if _, err := os.Stat(path); err == nil {
			tmpl, err := template.ParseFiles(path)
			if err != nil {
				return nil, err
			}
			return &Loader{tmpl: tmpl}, nil
		}
	}

	tmpl, err := template.New("login").Parse(defaultTemplate)
	if err != nil {
		return nil, err
	}
	return &Loader{tmpl: tmpl}, nil
}

func (l *Loader) Execute(w io.Writer, data interface{}) error {
	return l.tmpl.Execute(w, data)
}

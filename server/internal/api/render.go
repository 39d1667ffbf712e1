package api

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/munnerz/goautoneg"
)

var offers = []string{"application/json", "text/html"}

// prefersHTML reports whether the caller asked for a presentational page.
// JSON wins on an empty Accept header, */* and ties; ?format= overrides.
func prefersHTML(r *http.Request) bool {
	switch r.URL.Query().Get("format") {
	case "html":
		return true
	case "json":
		return false
	}
	return goautoneg.Negotiate(r.Header.Get("Accept"), offers) == "text/html"
}

// render writes v as JSON, or as an HTML page when human is set.
func render(w http.ResponseWriter, code int, v pager, human bool) {
	w.Header().Set("Vary", "Accept")
	if !human {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(v) //nolint:errcheck
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := pageTmpl.Execute(w, v.page()); err != nil {
		slog.Warn("api: render html failed", "err", err)
	}
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;margin:2rem;background:#111;color:#eee}
.status{display:inline-block;padding:.2rem .6rem;border-radius:.3rem;background:#333}
.status.online,.status.success,.status.ok{background:#1b5e20}
.status.error{background:#b71c1c}
dt{font-weight:bold;margin-top:.5rem}
ol{font-family:ui-monospace,monospace}
</style>
</head>
<body>
<h1>{{.Title}} <span class="status {{.Status}}">{{.Status}}</span></h1>
{{if .Fields}}<dl>
{{range .Fields}}<dt>{{.Name}}</dt><dd>{{.Value}}</dd>
{{end}}</dl>{{end}}
{{if .Events}}<h2>Events</h2>
<ol>
{{range .Events}}<li>{{.}}</li>
{{end}}</ol>{{end}}
</body>
</html>
`))

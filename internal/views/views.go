// Package views holds the HTML templates rendered by the page handlers.
package views

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var files embed.FS

// Templates parses every page template. Pages are addressed by file name,
// e.g. "login.html".
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"datetime": formatTime,
	}).ParseFS(files, "templates/*.html")
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// Package assets embeds the browser client and the page templates.
package assets

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed client/*
var clientFS embed.FS

//go:embed templates/*.html
var templateFS embed.FS

// ClientFS returns the embedded client files
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetClientJS returns the browser script
func GetClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/website.js")
}

// GetClientCSS returns the site stylesheet
func GetClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/website.css")
}

// Templates parses the page templates. The result defines "layout", "menu"
// and "main"; "main" is also rendered on its own for client-side navigation.
func Templates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("website").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

package server

import (
	"embed"
	"html/template"
)

// authCallbackTemplate is the page returned after a successful provider callback.
const authCallbackTemplate = "auth_callback.html"

//go:embed templates/*
var templateFiles embed.FS

// ParseTemplate parses one page from the embedded templates directory.
func ParseTemplate(name string) (*template.Template, error) {
	return template.ParseFS(templateFiles, "templates/"+name)
}

// Package web holds the dashboard page templates and the assets it links.
package web

import "embed"

// TemplatesFS holds index.html and the dashboard partial.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the small form script.
//
//go:embed static/*
var StaticFS embed.FS

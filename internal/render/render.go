// Package render draws the dashboard and lookup panel as plain text.
package render

import (
	"embed"
	"fmt"
	"io"
	"strconv"
	"text/template"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-dashboard/internal/lookup"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	clockLayout = "15:04:05"
	stampLayout = "2006-01-02 15:04:05"
)

// Renderer writes views to a terminal.
type Renderer struct {
	tmpl *template.Template
	// Color enables ANSI temperature banding.
	Color bool
	// Location is used for displayed times. Defaults to time.Local.
	Location *time.Location
}

// New parses the embedded templates.
func New(color bool) *Renderer {
	r := &Renderer{Color: color, Location: time.Local}
	r.tmpl = template.Must(template.New("render").Funcs(template.FuncMap{
		"icon":    func(desc string) string { return IconFor(desc).Glyph() },
		"shortID": ShortID,
		"num":     formatNumber,
		"temp":    r.temperature,
		"clock":   func(t time.Time) string { return r.in(t).Format(clockLayout) },
		"stamp":   func(t time.Time) string { return r.in(t).Format(stampLayout) },
	}).ParseFS(templateFS, "templates/*.tmpl"))
	return r
}

// Dashboard renders a dashboard snapshot.
func (r *Renderer) Dashboard(w io.Writer, snap dashboard.Snapshot) error {
	if err := r.tmpl.ExecuteTemplate(w, "dashboard.tmpl", snap); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

// Lookup renders the lookup panel result slot.
func (r *Renderer) Lookup(w io.Writer, state lookup.State) error {
	if err := r.tmpl.ExecuteTemplate(w, "lookup.tmpl", state); err != nil {
		return fmt.Errorf("render lookup: %w", err)
	}
	return nil
}

func (r *Renderer) in(t time.Time) time.Time {
	if r.Location == nil {
		return t
	}
	return t.In(r.Location)
}

func (r *Renderer) temperature(celsius float64) string {
	s := formatNumber(celsius) + "°C"
	if !r.Color {
		return s
	}
	return ansi[BandFor(celsius)] + s + ansiReset
}

// formatNumber prints a value the way the backend sent it: no padding, no
// trailing zeros.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

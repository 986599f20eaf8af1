// Package views embeds the HTML templates and browser assets served by the api.
package views

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/ErronZrz/rank-poll/internal/core"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates parses every page and partial. Pages are looked up by file name,
// e.g. "ballot.html".
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"delimiter": func() string { return core.Delimiter },
	}).ParseFS(templateFS, "templates/*.html")
}

// Static serves ballot.js and the stylesheet.
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Level   string
	Message string
}

const (
	FlashSuccess = "success"
	FlashError   = "error"
)

type IndexPage struct {
	BestItem *core.Item
	Flashes  []Flash
}

type BallotPage struct {
	UUID          string
	BestItem      *core.Item
	Flashes       []Flash
	RankedItems   []core.Item
	UnrankedItems []core.Item
}

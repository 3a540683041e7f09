package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/dukerupert/laundrydash/internal/model"
	"github.com/dukerupert/laundrydash/internal/view"
)

// page is the data every template receives.
type page struct {
	Title   string
	User    *model.User
	Heading string
	Action  string
	Pending bool
	Message string
	Error   bool
	Upload  *uploadInfo
	Data    any
}

type uploadInfo struct {
	Name string
	Size int64
}

// Renderer executes page templates inside the shared layout.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses templates/layout.html, templates/partials/*.html and one
// template set per file in templates/pages.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	base, err := template.New("").Funcs(view.Funcs()).ParseFS(fsys, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, f := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout: %w", err)
		}
		if _, err := t.ParseFS(fsys, f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		pages[strings.TrimSuffix(path.Base(f), ".html")] = t
	}
	return &Renderer{pages: pages, logger: logger}, nil
}

// Render writes the named page with the given status. The page is executed
// into a buffer first so a template error never leaves half a page behind.
func (rd *Renderer) Render(w http.ResponseWriter, status int, name string, data page) {
	t, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("unknown page", "page", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		rd.logger.Error("template error", "page", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

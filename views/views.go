// Package views holds the server-rendered pages and the single-page client
// assets, embedded into the binary.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin/render"
	"github.com/pkg/errors"
)

const layoutFile = "templates/layout.html"

//go:embed all:templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Renderer is a gin HTML renderer that executes each page inside the shared
// layout. Page names are paths under templates/ without the extension, e.g.
// "bikes/index". Files starting with "_" are partials available to every page.
type Renderer struct {
	templates map[string]*template.Template
}

func Load() (*Renderer, error) {
	var partials, pages []string
	err := fs.WalkDir(templateFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || p == layoutFile {
			return err
		}
		if strings.HasPrefix(path.Base(p), "_") {
			partials = append(partials, p)
		} else {
			pages = append(pages, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk templates")
	}

	r := &Renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		files := append([]string{layoutFile}, partials...)
		files = append(files, page)

		t, err := template.New("layout").ParseFS(templateFS, files...)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", page)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(page, "templates/"), ".html")
		r.templates[name] = t
	}
	return r, nil
}

func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Instance implements render.HTMLRender.
func (r *Renderer) Instance(name string, data interface{}) render.Render {
	t, ok := r.templates[name]
	if !ok {
		return missingTemplate(name)
	}
	return render.HTML{Template: t, Name: "layout", Data: data}
}

// Static serves the files under static/.
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

type missingTemplate string

func (m missingTemplate) Render(w http.ResponseWriter) error {
	return fmt.Errorf("html template %q is not defined", string(m))
}

func (m missingTemplate) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if val := header["Content-Type"]; len(val) == 0 {
		header["Content-Type"] = []string{"text/html; charset=utf-8"}
	}
}

package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"finitefield.org/mercadito/internal/i18n"
	mw "finitefield.org/mercadito/internal/middleware"
	"finitefield.org/mercadito/internal/platform/requestctx"
)

// templateSet parses every .tmpl under dir. In dev mode templates are reparsed
// on each render so edits show up without a restart.
type templateSet struct {
	dir     string
	devMode bool
	bundle  *i18n.Bundle

	mu    sync.RWMutex
	cache *template.Template
}

func newTemplateSet(dir string, devMode bool, bundle *i18n.Bundle) (*templateSet, error) {
	ts := &templateSet{dir: dir, devMode: devMode, bundle: bundle}
	tc, err := ts.parse()
	if err != nil {
		return nil, err
	}
	ts.cache = tc
	return ts, nil
}

func (ts *templateSet) funcMap() template.FuncMap {
	return template.FuncMap{
		"t": func(lang, key string) string {
			if ts.bundle == nil {
				return key
			}
			return ts.bundle.T(lang, key)
		},
		"langs": func() []string {
			if ts.bundle == nil {
				return nil
			}
			return ts.bundle.Supported()
		},
	}
}

func (ts *templateSet) parse() (*template.Template, error) {
	// ParseGlob doesn't support **, so walk the tree.
	var files []string
	if err := filepath.WalkDir(ts.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".tmpl") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no templates found under %s", ts.dir)
	}
	return template.New("_root").Funcs(ts.funcMap()).ParseFiles(files...)
}

func (ts *templateSet) lookup() (*template.Template, error) {
	if ts.devMode {
		return ts.parse()
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if ts.cache == nil {
		return nil, fmt.Errorf("templates not initialized")
	}
	return ts.cache, nil
}

// render executes name into a buffer first so a failing template never
// produces a half-written 200.
func (ts *templateSet) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, err := ts.lookup()
	if err != nil {
		requestctx.Logger(r.Context()).Error("template parse failed", zap.Error(err))
		mw.WriteError(w, r, http.StatusInternalServerError, "template error")
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		requestctx.Logger(r.Context()).Error("template exec failed", zap.String("template", name), zap.Error(err))
		mw.WriteError(w, r, http.StatusInternalServerError, "template error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

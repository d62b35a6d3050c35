// Package template renders admin pages and widget fragments with pongo2
package template

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

//go:embed all:templates
var embedded embed.FS

// Templates returns the built-in template tree
func Templates() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Context is the data passed to a template
type Context = map[string]interface{}

// Engine renders named templates; user folders shadow the built-in tree
type Engine struct {
	mu        sync.RWMutex
	folders   []fs.FS
	builtin   fs.FS
	set       *pongo2.TemplateSet
	globals   pongo2.Context
	templates map[string]*pongo2.Template
}

// New creates an engine over the built-in templates
func New() *Engine {
	e := &Engine{
		builtin: Templates(),
		globals: make(pongo2.Context),
	}
	e.rebuild()
	return e
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Default returns a process-wide engine for callers without one in their context
func Default() *Engine {
	defaultOnce.Do(func() {
		defaultEngine = New()
	})
	return defaultEngine
}

// rebuild must be called with e.mu held or before e is shared
func (e *Engine) rebuild() {
	loaders := make([]pongo2.TemplateLoader, 0, len(e.folders)+1)
	for _, folder := range e.folders {
		loaders = append(loaders, &rootLoader{files: folder})
	}
	loaders = append(loaders, &rootLoader{files: e.builtin})

	e.set = pongo2.NewSet("conduit-admin", loaders...)
	e.set.Globals.Update(e.globals)
	e.templates = make(map[string]*pongo2.Template)
}

// AddTemplateFolder registers directories searched before the built-in templates;
// folders added later win over earlier ones
func (e *Engine) AddTemplateFolder(dirs ...string) error {
	folders := make([]fs.FS, 0, len(dirs))
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("template folder %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("template folder %s: not a directory", dir)
		}
		folders = append(folders, os.DirFS(dir))
	}
	return e.AddTemplateFS(folders...)
}

// AddTemplateFS is AddTemplateFolder for arbitrary file trees
func (e *Engine) AddTemplateFS(folders ...fs.FS) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := len(folders) - 1; i >= 0; i-- {
		e.folders = append([]fs.FS{folders[i]}, e.folders...)
	}
	e.rebuild()
	return nil
}

// SetGlobal exposes value to every template under name
func (e *Engine) SetGlobal(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.globals[name] = value
	e.set.Globals[name] = value
}

// Global returns a value set with SetGlobal
func (e *Engine) Global(name string) (interface{}, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := e.globals[name]
	return v, ok
}

// Exists reports whether name resolves in any template folder
func (e *Engine) Exists(name string) bool {
	_, err := e.lookup(name)
	return err == nil
}

func (e *Engine) lookup(name string) (*pongo2.Template, error) {
	e.mu.RLock()
	tpl, ok := e.templates[name]
	set := e.set
	e.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("load template %q: %w", name, err)
	}

	e.mu.Lock()
	if e.set == set {
		e.templates[name] = tpl
	}
	e.mu.Unlock()
	return tpl, nil
}

// Render executes the named template; one trailing newline is dropped
func (e *Engine) Render(name string, data map[string]interface{}) (string, error) {
	tpl, err := e.lookup(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteWriter(pongo2.Context(data), &buf); err != nil {
		return "", fmt.Errorf("execute template %q: %w", name, err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// RenderString executes template source directly
func (e *Engine) RenderString(source string, data map[string]interface{}) (string, error) {
	e.mu.RLock()
	set := e.set
	e.mu.RUnlock()

	tpl, err := set.FromString(source)
	if err != nil {
		return "", fmt.Errorf("parse template string: %w", err)
	}
	out, err := tpl.Execute(pongo2.Context(data))
	if err != nil {
		return "", fmt.Errorf("execute template string: %w", err)
	}
	return strings.TrimSuffix(out, "\n"), nil
}

// Write renders name into w as an HTML response
func (e *Engine) Write(w http.ResponseWriter, status int, name string, data map[string]interface{}) error {
	body, err := e.Render(name, data)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = io.WriteString(w, body)
	return err
}

// rootLoader resolves every template name from the root of its tree,
// so "layout.html" means the same file from any including template
type rootLoader struct {
	files fs.FS
}

func (l *rootLoader) Abs(base, name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

func (l *rootLoader) Get(name string) (io.Reader, error) {
	data, err := fs.ReadFile(l.files, name)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

type engineKey struct{}

// WithEngine attaches e to ctx for widgets rendering within a request
func WithEngine(ctx context.Context, e *Engine) context.Context {
	return context.WithValue(ctx, engineKey{}, e)
}

// FromRequest returns the engine attached to r, or Default
func FromRequest(r *http.Request) *Engine {
	if r != nil {
		if e, ok := r.Context().Value(engineKey{}).(*Engine); ok && e != nil {
			return e
		}
	}
	return Default()
}

// CurrentPageWithParams returns the request path with params merged into its query
func CurrentPageWithParams(r *http.Request, params map[string]string) string {
	query := url.Values{}
	for k, v := range r.URL.Query() {
		query[k] = append([]string(nil), v...)
	}
	for k, v := range params {
		query.Set(k, v)
	}

	p := r.URL.Path
	if r.URL.RawPath != "" {
		p = r.URL.RawPath
	}
	if len(query) == 0 {
		return p
	}
	return p + "?" + query.Encode()
}

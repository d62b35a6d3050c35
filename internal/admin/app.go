// Package admin assembles the dashboard: it turns model resources, a login
// provider and the shared services into one http.Handler mounted under the
// admin path.
package admin

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/conduit-admin/internal/admin/depends"
	"github.com/conduit-lang/conduit-admin/internal/admin/i18n"
	"github.com/conduit-lang/conduit-admin/internal/admin/resources"
	"github.com/conduit-lang/conduit-admin/internal/admin/routes"
	"github.com/conduit-lang/conduit-admin/internal/admin/template"
	"github.com/conduit-lang/conduit-admin/internal/admin/upload"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/orm/crud"
	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
	"github.com/conduit-lang/conduit-admin/internal/web/cache"
	"github.com/conduit-lang/conduit-admin/internal/web/middleware"
	"github.com/conduit-lang/conduit-admin/internal/web/response"
	"github.com/conduit-lang/conduit-admin/internal/web/router"
	"github.com/conduit-lang/conduit-admin/internal/web/static"
)

// DefaultPath is where the dashboard is mounted when Config.Path is empty
const DefaultPath = "/admin"

//go:embed static
var assets embed.FS

// ErrNotConfigured is returned by Handler before Configure succeeded
var ErrNotConfigured = errors.New("admin app not configured")

// Provider plugs authentication pages and their middleware into the admin
type Provider interface {
	Name() string
	Register(r *router.Router)
	Middleware() middleware.Middleware
}

// SaveHooker is implemented by providers that own the admin model and must
// see its form data before it is written, e.g. to hash passwords
type SaveHooker interface {
	Provider
	Model() string
	PreSave(r *http.Request, data map[string]interface{}, creating bool) error
}

// Config holds the dashboard chrome and mount point
type Config struct {
	Path            string
	Title           string
	LogoURL         string
	FaviconURL      string
	DefaultLanguage string

	// TemplateFolders override the built-in templates, first folder wins
	TemplateFolders []string

	Logger           *zap.Logger
	EnableStackTrace bool
}

// Options are the services the dashboard runs on
type Options struct {
	DB      *sql.DB
	Dialect query.Dialect

	// Registry holds every model relations may point at; models of
	// Resources missing from it are registered by Configure
	Registry  *schema.Registry
	Resources []resources.Resource

	// Cache stores login tokens, in memory when nil
	Cache      cache.Cache
	Translator *i18n.Translator
	Upload     *upload.FileUpload
	Providers  []Provider
}

// App is the configured dashboard
type App struct {
	config    Config
	app       *depends.Application
	providers []Provider
	handler   http.Handler
}

// New creates an unconfigured app
func New(config Config) *App {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.Path != "/" {
		config.Path = "/" + strings.Trim(config.Path, "/")
	}
	if config.Title == "" {
		config.Title = "Admin Dashboard"
	}
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = i18n.DefaultLanguage
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &App{config: config}
}

// Configure wires models, providers and services together. Registries are
// read-only once it returns.
func (a *App) Configure(opts Options) error {
	if opts.DB == nil {
		return fmt.Errorf("configure admin: database is required")
	}
	if opts.Registry == nil {
		opts.Registry = schema.NewRegistry()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache()
	}
	if opts.Translator == nil {
		t, err := i18n.New()
		if err != nil {
			return fmt.Errorf("configure admin: %w", err)
		}
		opts.Translator = t
	}

	engine := template.New()
	if len(a.config.TemplateFolders) > 0 {
		if err := engine.AddTemplateFolder(a.config.TemplateFolders...); err != nil {
			return fmt.Errorf("configure admin: %w", err)
		}
	}

	app := &depends.Application{
		Path:       a.config.Path,
		Title:      a.config.Title,
		LogoURL:    a.config.LogoURL,
		FaviconURL: a.config.FaviconURL,
		Language:   opts.Translator.Match(a.config.DefaultLanguage),
		Registry:   opts.Registry,
		Resources:  opts.Resources,
		Models:     make(map[string]*resources.Model),
		Operations: make(map[string]*crud.Operations),
		Cache:      opts.Cache,
		Translator: opts.Translator,
		Upload:     opts.Upload,
		Engine:     engine,
		Logger:     a.config.Logger,
	}

	initOpts := resources.InitOptions{
		Related: RelatedOptions(opts.Registry, opts.DB, opts.Dialect),
		Upload:  opts.Upload,
	}
	for _, m := range resources.Models(opts.Resources) {
		if m.Schema == nil {
			return fmt.Errorf("%w: model resource %q has no model", resources.ErrInvalidResource, m.Label)
		}
		name := m.Name()
		if _, dup := app.Models[name]; dup {
			return fmt.Errorf("%w: model %s registered twice", resources.ErrInvalidResource, name)
		}
		if _, ok := opts.Registry.Get(name); !ok {
			if err := opts.Registry.Register(m.Schema); err != nil {
				return fmt.Errorf("configure admin: %w", err)
			}
		}
		if err := m.Init(initOpts); err != nil {
			return fmt.Errorf("configure admin: %w", err)
		}
		app.Models[name] = m
		app.Operations[name] = crud.NewOperations(m.Schema, opts.DB, opts.Dialect)
	}

	for _, p := range opts.Providers {
		h, ok := p.(SaveHooker)
		if !ok {
			continue
		}
		if m, ok := app.Models[h.Model()]; ok && m.PreSave == nil {
			m.PreSave = h.PreSave
		}
	}

	if _, err := resources.Navigation(app.Path, app.Resources); err != nil {
		return fmt.Errorf("configure admin: %w", err)
	}

	a.app = app
	a.providers = opts.Providers
	handler, err := a.buildRouter()
	if err != nil {
		return err
	}
	a.handler = handler

	a.config.Logger.Info("admin configured",
		zap.String("path", app.Path),
		zap.Int("models", len(app.Models)),
		zap.Int("providers", len(a.providers)),
	)
	return nil
}

// RelatedOptions loads (label, pk) pairs of a related model at render time.
// Models are resolved on each call, so registry may still be filling up.
func RelatedOptions(registry *schema.Registry, db *sql.DB, dialect query.Dialect) func(string) widgets.OptionsFunc {
	return func(model string) widgets.OptionsFunc {
		return func(ctx context.Context) ([]widgets.Option, error) {
			s, ok := registry.Get(model)
			if !ok {
				return nil, fmt.Errorf("%w: related model %s", resources.ErrInvalidResource, model)
			}
			pairs, err := crud.NewOperations(s, db, dialect).Options(ctx)
			if err != nil {
				return nil, fmt.Errorf("load %s options: %w", model, err)
			}
			out := make([]widgets.Option, 0, len(pairs))
			for _, p := range pairs {
				out = append(out, widgets.Option{Label: p[0], Value: p[1]})
			}
			return out, nil
		}
	}
}

func (a *App) buildRouter() (http.Handler, error) {
	app := a.app
	root := router.NewRouter()
	root.Use(middleware.RequestID())

	if a.app.Upload != nil {
		if local, ok := a.app.Upload.Storage.(*upload.LocalStorage); ok {
			files, err := static.Dir(local.Dir, a.app.Upload.Prefix)
			if err != nil {
				return nil, fmt.Errorf("configure admin: %w", err)
			}
			root.Handle(strings.TrimSuffix(a.app.Upload.Prefix, "/")+"/*", files)
		}
	}

	assetFS, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("configure admin: %w", err)
	}
	assetPrefix := app.URL("/static")

	stack := middleware.NewChain(
		depends.Attach(app),
		middleware.Logging(middleware.LoggingConfig{
			Logger:    a.config.Logger,
			SkipPaths: []string{assetPrefix + "/admin.js"},
		}),
		middleware.Recovery(middleware.RecoveryConfig{
			Logger:           a.config.Logger,
			EnableStackTrace: a.config.EnableStackTrace,
			ResponseHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				depends.Fail(w, r, response.Wrap(http.StatusInternalServerError, err))
			},
		}),
		middleware.Language(middleware.LanguageConfig{CookiePath: cookiePath(app.Path)}),
	)
	for _, p := range a.providers {
		stack = stack.Append(p.Middleware())
	}

	mount := func(r *router.Router) {
		r.Use(stack...)

		r.Handle("/static/*", static.FileServer(static.DefaultFileServerConfig(assetFS, assetPrefix)))
		for _, p := range a.providers {
			p.Register(r)
		}
		routes.Register(r)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			depends.Fail(w, r, response.ErrNotFound)
		})
	}

	if app.Path == "/" {
		root.Group(mount)
	} else {
		root.Route(app.Path, mount)
	}
	return root, nil
}

func cookiePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// Application returns the shared state, nil before Configure
func (a *App) Application() *depends.Application {
	return a.app
}

// Path is the mount point of the dashboard
func (a *App) Path() string {
	return a.config.Path
}

// Handler serves the dashboard and, for local storage, the uploaded files
func (a *App) Handler() (http.Handler, error) {
	if a.handler == nil {
		return nil, ErrNotConfigured
	}
	return a.handler, nil
}

// ServeHTTP serves the dashboard; it answers 503 until Configure succeeded
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.handler == nil {
		http.Error(w, ErrNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}
	a.handler.ServeHTTP(w, r)
}

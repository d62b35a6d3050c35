// Package depends resolves what admin handlers need from the request: the
// application, the signed-in admin, the model resource named in the path and
// the navigation tree.
package depends

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/conduit-lang/conduit-admin/internal/admin/i18n"
	"github.com/conduit-lang/conduit-admin/internal/admin/models"
	"github.com/conduit-lang/conduit-admin/internal/admin/resources"
	"github.com/conduit-lang/conduit-admin/internal/admin/template"
	"github.com/conduit-lang/conduit-admin/internal/admin/upload"
	"github.com/conduit-lang/conduit-admin/internal/orm/crud"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
	"github.com/conduit-lang/conduit-admin/internal/web/cache"
	webcontext "github.com/conduit-lang/conduit-admin/internal/web/context"
	"github.com/conduit-lang/conduit-admin/internal/web/middleware"
	"github.com/conduit-lang/conduit-admin/internal/web/response"
	"github.com/conduit-lang/conduit-admin/internal/web/router"
)

// ResourceParam is the path parameter naming the model of a resource route
const ResourceParam = "resource"

// Application is the admin state shared by every request. It is assembled
// once at startup and read-only afterwards.
type Application struct {
	Path       string
	Title      string
	LogoURL    string
	FaviconURL string
	Language   string

	Registry   *schema.Registry
	Resources  []resources.Resource
	Models     map[string]*resources.Model
	Operations map[string]*crud.Operations

	Cache      cache.Cache
	Translator *i18n.Translator
	Upload     *upload.FileUpload
	Engine     *template.Engine
	Logger     *zap.Logger
}

// URL joins the admin mount point and p
func (a *Application) URL(p string) string {
	if a.Path == "/" {
		return p
	}
	return a.Path + p
}

// Attach puts app and its template engine into every request context
func Attach(app *Application) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := webcontext.SetApplication(r.Context(), app)
			if app.Engine != nil {
				ctx = template.WithEngine(ctx, app.Engine)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// App returns the application attached to r
func App(r *http.Request) (*Application, error) {
	app, ok := webcontext.GetApplication(r.Context()).(*Application)
	if !ok || app == nil {
		return nil, response.Wrap(http.StatusInternalServerError, fmt.Errorf("admin application not attached to request"))
	}
	return app, nil
}

// CurrentAdmin returns the signed-in admin or a 401 error
func CurrentAdmin(r *http.Request) (*models.Admin, error) {
	admin, ok := webcontext.GetCurrentAdmin(r.Context()).(*models.Admin)
	if !ok || admin == nil {
		return nil, response.ErrUnauthorized
	}
	return admin, nil
}

// LookupModel returns the registered model called name
func LookupModel(registry *schema.Registry, name string) (*schema.ModelSchema, bool) {
	if registry == nil {
		return nil, false
	}
	return registry.Get(name)
}

// Model returns the model named by the resource path parameter, or a 404 error
func Model(r *http.Request) (*schema.ModelSchema, error) {
	app, err := App(r)
	if err != nil {
		return nil, err
	}
	name := router.Param(r, ResourceParam)
	m, ok := LookupModel(app.Registry, name)
	if !ok {
		return nil, response.Wrap(http.StatusNotFound, fmt.Errorf("model %q not found", name))
	}
	return m, nil
}

// ModelResource is a model resource with the actions computed for one request
type ModelResource struct {
	*resources.Model
	Ops            *crud.Operations
	ToolbarActions []resources.ToolbarAction
	Actions        []resources.Action
	BulkActions    []resources.Action
}

// Resource returns the model resource managing the model in the path, or a 404 error
func Resource(r *http.Request) (*ModelResource, error) {
	app, err := App(r)
	if err != nil {
		return nil, err
	}
	name := router.Param(r, ResourceParam)
	res, ok := app.Models[name]
	if !ok {
		return nil, response.Wrap(http.StatusNotFound, fmt.Errorf("resource %q not found", name))
	}
	ops, ok := app.Operations[name]
	if !ok {
		return nil, response.Wrap(http.StatusNotFound, fmt.Errorf("model %q not found", name))
	}
	return &ModelResource{
		Model:          res,
		Ops:            ops,
		ToolbarActions: res.ToolbarActions(r),
		Actions:        res.Actions(r),
		BulkActions:    res.BulkActions(r),
	}, nil
}

// Resources returns the navigation tree
func Resources(r *http.Request) ([]resources.NavItem, error) {
	app, err := App(r)
	if err != nil {
		return nil, err
	}
	return resources.Navigation(app.Path, app.Resources)
}

// Cache returns the token store
func Cache(r *http.Request) (cache.Cache, error) {
	app, err := App(r)
	if err != nil {
		return nil, err
	}
	if app.Cache == nil {
		return nil, response.Wrap(http.StatusInternalServerError, fmt.Errorf("token cache not configured"))
	}
	return app.Cache, nil
}

// Language returns the catalog language serving r
func Language(r *http.Request) string {
	lang := webcontext.GetLanguage(r.Context())
	app, err := App(r)
	if err != nil || app.Translator == nil {
		if lang == "" {
			return i18n.DefaultLanguage
		}
		return lang
	}
	if lang == "" {
		lang = app.Language
	}
	return app.Translator.Match(lang)
}

// T translates key in the language of r
func T(r *http.Request, key string, args ...interface{}) string {
	app, err := App(r)
	if err != nil || app.Translator == nil {
		return key
	}
	return app.Translator.T(Language(r), key, args...)
}

// PageContext returns the values every admin page template expects
func PageContext(r *http.Request) template.Context {
	ctx := template.Context{
		"request":  r,
		"language": Language(r),
	}
	app, err := App(r)
	if err != nil {
		ctx["t"] = func(key string, args ...interface{}) string { return key }
		return ctx
	}

	ctx["admin_path"] = app.Path
	ctx["title"] = app.Title
	ctx["logo_url"] = app.LogoURL
	ctx["favicon_url"] = app.FaviconURL
	if app.Translator != nil {
		ctx["t"] = app.Translator.Func(Language(r))
		ctx["languages"] = app.Translator.Languages()
	} else {
		ctx["t"] = func(key string, args ...interface{}) string { return key }
	}
	if admin, err := CurrentAdmin(r); err == nil {
		ctx["admin"] = admin
	}
	if nav, err := Resources(r); err == nil {
		ctx["resources"] = nav
	}
	ctx["resource"] = router.Param(r, ResourceParam)
	return ctx
}

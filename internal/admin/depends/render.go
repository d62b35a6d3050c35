package depends

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/conduit-admin/internal/admin/template"
	"github.com/conduit-lang/conduit-admin/internal/web/response"
)

// Render writes the page template name with the page context and extra on top
func Render(w http.ResponseWriter, r *http.Request, status int, name string, extra template.Context) {
	ctx := PageContext(r)
	for k, v := range extra {
		ctx[k] = v
	}
	if err := template.FromRequest(r).Write(w, status, name, ctx); err != nil {
		Fail(w, r, err)
	}
}

// Fail answers r with the error page matching err; ajax requests get a JSON body
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	if WantsJSON(r) {
		if app, appErr := App(r); appErr == nil && app.Logger != nil && response.StatusOf(err) >= 500 {
			app.Logger.Error("request failed", zap.Error(err), zap.String("path", r.URL.Path))
		}
		response.RenderError(w, err)
		return
	}
	pages := ErrorPages()
	if app, appErr := App(r); appErr == nil {
		pages.Logger = app.Logger
	}
	pages.Render(w, r, err)
}

// ErrorPages renders error pages through the engine and page context of each request
func ErrorPages() *response.ErrorPages {
	return &response.ErrorPages{
		Renderer: requestRenderer{},
		Context:  PageContext,
	}
}

// requestRenderer picks the engine of the request found in the page context
type requestRenderer struct{}

func (requestRenderer) Render(name string, data map[string]interface{}) (string, error) {
	if r, ok := data["request"].(*http.Request); ok {
		return template.FromRequest(r).Render(name, data)
	}
	return template.Default().Render(name, data)
}

// WantsJSON reports whether r came from the admin's ajax helpers
func WantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// Redirect answers with 303 See Other
func Redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}

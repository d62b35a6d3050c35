// Package router wraps chi with named routes and route introspection
package router

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/conduit-lang/conduit-admin/internal/web/middleware"
)

// Router manages HTTP routing using chi framework
type Router struct {
	mux      chi.Router
	prefix   string
	registry *registry
}

// Route represents a single registered route
type Route struct {
	Pattern string // /{resource}/update/{pk}, prefix included
	Method  string
	Name    string

	registry *registry
}

// RouteInfo provides metadata about a route for introspection
type RouteInfo struct {
	Pattern    string
	Method     string
	Name       string
	Parameters []string
}

type registry struct {
	mu     sync.RWMutex
	routes []*Route
	named  map[string]*Route
}

// NewRouter creates a new Router instance
func NewRouter() *Router {
	return &Router{
		mux:      chi.NewRouter(),
		registry: &registry{named: make(map[string]*Route)},
	}
}

// ServeHTTP implements http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Use adds middleware to the router; it must be called before routes are added
func (r *Router) Use(middlewares ...middleware.Middleware) {
	for _, m := range middlewares {
		r.mux.Use(m)
	}
}

// Get registers a GET route
func (r *Router) Get(pattern string, handler http.HandlerFunc) *Route {
	return r.addRoute(http.MethodGet, pattern, handler)
}

// Post registers a POST route
func (r *Router) Post(pattern string, handler http.HandlerFunc) *Route {
	return r.addRoute(http.MethodPost, pattern, handler)
}

// Put registers a PUT route
func (r *Router) Put(pattern string, handler http.HandlerFunc) *Route {
	return r.addRoute(http.MethodPut, pattern, handler)
}

// Patch registers a PATCH route
func (r *Router) Patch(pattern string, handler http.HandlerFunc) *Route {
	return r.addRoute(http.MethodPatch, pattern, handler)
}

// Delete registers a DELETE route
func (r *Router) Delete(pattern string, handler http.HandlerFunc) *Route {
	return r.addRoute(http.MethodDelete, pattern, handler)
}

func (r *Router) addRoute(method, pattern string, handler http.HandlerFunc) *Route {
	r.mux.Method(method, pattern, handler)

	route := &Route{
		Pattern:  joinPattern(r.prefix, pattern),
		Method:   method,
		registry: r.registry,
	}

	r.registry.mu.Lock()
	r.registry.routes = append(r.registry.routes, route)
	r.registry.mu.Unlock()

	return route
}

// Route mounts a sub-router under prefix
func (r *Router) Route(prefix string, fn func(r *Router)) {
	r.mux.Route(prefix, func(sub chi.Router) {
		fn(&Router{mux: sub, prefix: joinPattern(r.prefix, prefix), registry: r.registry})
	})
}

// Group creates an inline group sharing the prefix, with its own middleware stack
func (r *Router) Group(fn func(r *Router)) {
	r.mux.Group(func(sub chi.Router) {
		fn(&Router{mux: sub, prefix: r.prefix, registry: r.registry})
	})
}

// Mount attaches handler under prefix
func (r *Router) Mount(prefix string, handler http.Handler) {
	r.mux.Mount(prefix, handler)
}

// Handle registers handler for every method on pattern
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, handler)
}

// Named sets a name for the route (for URL generation)
func (route *Route) Named(name string) *Route {
	route.Name = name
	route.registry.mu.Lock()
	route.registry.named[name] = route
	route.registry.mu.Unlock()
	return route
}

// GetRoutes returns all registered routes for introspection
func (r *Router) GetRoutes() []*RouteInfo {
	r.registry.mu.RLock()
	defer r.registry.mu.RUnlock()

	infos := make([]*RouteInfo, 0, len(r.registry.routes))
	for _, route := range r.registry.routes {
		infos = append(infos, &RouteInfo{
			Pattern:    route.Pattern,
			Method:     route.Method,
			Name:       route.Name,
			Parameters: extractParameters(route.Pattern),
		})
	}
	return infos
}

// GetRoute returns a route by name
func (r *Router) GetRoute(name string) (*Route, error) {
	r.registry.mu.RLock()
	defer r.registry.mu.RUnlock()

	route, ok := r.registry.named[name]
	if !ok {
		return nil, fmt.Errorf("route not found: %s", name)
	}
	return route, nil
}

// URL builds the path of a named route, filling parameters in order
func (r *Router) URL(name string, params ...string) (string, error) {
	route, err := r.GetRoute(name)
	if err != nil {
		return "", err
	}

	parts := strings.Split(route.Pattern, "/")
	i := 0
	for j, part := range parts {
		if !strings.HasPrefix(part, "{") || !strings.HasSuffix(part, "}") {
			continue
		}
		if i >= len(params) {
			return "", fmt.Errorf("route %s: missing parameter %s", name, strings.Trim(part, "{}"))
		}
		parts[j] = params[i]
		i++
	}
	if i != len(params) {
		return "", fmt.Errorf("route %s: expected %d parameters, got %d", name, i, len(params))
	}
	return strings.Join(parts, "/"), nil
}

// NotFound sets the handler for 404 Not Found
func (r *Router) NotFound(handler http.HandlerFunc) {
	r.mux.NotFound(handler)
}

// MethodNotAllowed sets the handler for 405 Method Not Allowed
func (r *Router) MethodNotAllowed(handler http.HandlerFunc) {
	r.mux.MethodNotAllowed(handler)
}

// Param returns a path parameter of the current request
func Param(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func joinPattern(prefix, pattern string) string {
	if prefix == "" {
		return pattern
	}
	if pattern == "/" || pattern == "" {
		return prefix
	}
	return strings.TrimSuffix(prefix, "/") + pattern
}

// extractParameters lists the {name} segments of a pattern
func extractParameters(pattern string) []string {
	params := make([]string, 0)
	for _, part := range strings.Split(pattern, "/") {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			params = append(params, strings.Trim(part, "{}"))
		}
	}
	return params
}

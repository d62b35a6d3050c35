// Package context holds the typed request-context keys shared by middleware and admin handlers
package context

import "context"

// contextKey is a custom type for context keys to avoid collisions
type contextKey int

const (
	requestIDKey contextKey = iota
	languageKey
	currentAdminKey
	applicationKey
)

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// SetRequestID adds the request ID to the context
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetLanguage extracts the resolved language (e.g. "fr_FR") from the context
func GetLanguage(ctx context.Context) string {
	if lang, ok := ctx.Value(languageKey).(string); ok {
		return lang
	}
	return ""
}

// SetLanguage adds the resolved language to the context
func SetLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, languageKey, lang)
}

// GetCurrentAdmin extracts the authenticated admin; callers assert the concrete type
func GetCurrentAdmin(ctx context.Context) interface{} {
	return ctx.Value(currentAdminKey)
}

// SetCurrentAdmin adds the authenticated admin to the context
func SetCurrentAdmin(ctx context.Context, admin interface{}) context.Context {
	return context.WithValue(ctx, currentAdminKey, admin)
}

// GetApplication extracts the admin application serving the request
func GetApplication(ctx context.Context) interface{} {
	return ctx.Value(applicationKey)
}

// SetApplication attaches the admin application to the context
func SetApplication(ctx context.Context, app interface{}) context.Context {
	return context.WithValue(ctx, applicationKey, app)
}

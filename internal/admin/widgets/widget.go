// Package widgets holds what display, input and filter widgets share: template
// rendering with a per-call context, selector options and value errors.
package widgets

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/spf13/cast"

	"github.com/conduit-lang/conduit-admin/internal/admin/template"
)

// ErrInvalidValue is wrapped by every parse failure of a widget
var ErrInvalidValue = errors.New("invalid value")

// ValueError reports malformed input for the widget bound to Field
type ValueError struct {
	Field string
	Raw   interface{}
	Err   error
}

func (e *ValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid value %v: %v", e.Field, e.Raw, e.Err)
	}
	return fmt.Sprintf("%s: invalid value %v", e.Field, e.Raw)
}

// Unwrap lets errors.Is match ErrInvalidValue
func (e *ValueError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidValue}
	}
	return []error{ErrInvalidValue, e.Err}
}

// Invalid builds a ValueError
func Invalid(field string, raw interface{}, err error) error {
	return &ValueError{Field: field, Raw: raw, Err: err}
}

// Widget renders a value into an HTML fragment
type Widget interface {
	Render(r *http.Request, value interface{}) (string, error)
}

// Option is a (label, value) pair offered by selectors
type Option struct {
	Label string
	Value interface{}
}

// OptionsFunc loads selector options at render time
type OptionsFunc func(ctx context.Context) ([]Option, error)

// StaticOptions returns an OptionsFunc over a fixed list
func StaticOptions(options ...Option) OptionsFunc {
	return func(context.Context) ([]Option, error) {
		out := make([]Option, len(options))
		copy(out, options)
		return out, nil
	}
}

// Choices converts options into template rows with label, value and a
// selected flag; values compare as strings
func Choices(options []Option, selected ...string) []map[string]interface{} {
	set := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		set[s] = struct{}{}
	}
	out := make([]map[string]interface{}, 0, len(options))
	for _, o := range options {
		value := Stringify(o.Value)
		_, ok := set[value]
		out = append(out, map[string]interface{}{
			"label":    o.Label,
			"value":    value,
			"selected": ok,
		})
	}
	return out
}

// Base carries a template name and the context fixed at construction.
// Rendering copies the context; widgets are never mutated after construction.
type Base struct {
	Template string
	Context  map[string]interface{}
}

// NewBase creates a Base with its own context map
func NewBase(tpl string, ctx map[string]interface{}) Base {
	b := Base{Template: tpl, Context: make(map[string]interface{}, len(ctx))}
	for k, v := range ctx {
		b.Context[k] = v
	}
	return b
}

// Get returns a context value set at construction
func (b *Base) Get(key string) interface{} {
	return b.Context[key]
}

// Set updates construction-time context; never call it after startup
func (b *Base) Set(key string, value interface{}) {
	if b.Context == nil {
		b.Context = make(map[string]interface{})
	}
	b.Context[key] = value
}

// RenderWith renders the template with value and extra on top of the widget context.
// Without a template, the value is rendered as escaped text.
func (b *Base) RenderWith(r *http.Request, value interface{}, extra map[string]interface{}) (string, error) {
	if b.Template == "" {
		if value == nil {
			return "", nil
		}
		return html.EscapeString(Stringify(value)), nil
	}

	ctx := make(map[string]interface{}, len(b.Context)+len(extra)+1)
	for k, v := range b.Context {
		ctx[k] = v
	}
	for k, v := range extra {
		ctx[k] = v
	}
	ctx["value"] = value
	if r != nil {
		ctx["request"] = r
	}
	return template.FromRequest(r).Render(b.Template, ctx)
}

// Render renders the template with value
func (b *Base) Render(r *http.Request, value interface{}) (string, error) {
	return b.RenderWith(r, value, nil)
}

// Stringify converts a scanned column value into display text
func Stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return v.String()
	}
	if s, err := cast.ToStringE(value); err == nil {
		return s
	}
	return fmt.Sprint(value)
}

// IsEmpty reports whether a raw form value carries nothing
func IsEmpty(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	}
	return false
}

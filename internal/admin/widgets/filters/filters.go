// Package filters renders list-view filter controls and turns submitted
// query parameters into query conditions
package filters

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/spf13/cast"

	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/enums"
	"github.com/conduit-lang/conduit-admin/internal/orm/query"
)

// ErrInvalidValue is wrapped by every ParseValue failure
var ErrInvalidValue = widgets.ErrInvalidValue

// ValueError reports a malformed filter parameter
type ValueError = widgets.ValueError

// Filter is a list-view control bound to one query parameter
type Filter interface {
	widgets.Widget
	// Name is the query parameter key, e.g. "name__icontains"
	Name() string
	// Field is the filtered column
	Field() string
	ParseValue(r *http.Request, raw string) (interface{}, error)
	Apply(q *query.QueryBuilder, value interface{}) *query.QueryBuilder
}

// Options are the context every filter template receives. Filters are
// optional unless Required is set.
type Options struct {
	Name        string
	Label       string
	Placeholder string
	Required    bool
}

// Base filters on equality of the raw parameter
type Base struct {
	widgets.Base
	field string
}

func newBase(tpl, key string, opts Options, extra map[string]interface{}) Base {
	ctx := map[string]interface{}{
		"name":        key,
		"label":       opts.Label,
		"placeholder": opts.Placeholder,
		"null":        !opts.Required,
	}
	for k, v := range extra {
		ctx[k] = v
	}
	return Base{Base: widgets.NewBase(tpl, ctx), field: opts.Name}
}

// Name is the query parameter key
func (b *Base) Name() string {
	return cast.ToString(b.Get("name"))
}

// Field is the filtered column
func (b *Base) Field() string {
	return b.field
}

func (b *Base) null() bool {
	return cast.ToBool(b.Get("null"))
}

// ParseValue returns raw unchanged
func (b *Base) ParseValue(r *http.Request, raw string) (interface{}, error) {
	return raw, nil
}

// Apply adds Name() = value as a lookup condition
func (b *Base) Apply(q *query.QueryBuilder, value interface{}) *query.QueryBuilder {
	return q.Filter(b.Name(), value)
}

func (b *Base) invalid(raw string, err error) error {
	return widgets.Invalid(b.Name(), raw, err)
}

// SearchModes are the lookups a Search filter accepts besides "equal"
var SearchModes = []string{
	"contains", "icontains",
	"startswith", "istartswith",
	"endswith", "iendswith",
	"iexact", "search",
}

// Search is a free text input
type Search struct {
	Base
}

// NewSearch builds a text filter; mode "equal" (or "") filters on the bare
// column name, any other mode on "<name>__<mode>"
func NewSearch(opts Options, mode string) (*Search, error) {
	if mode == "" || mode == "equal" {
		return &Search{Base: newBase("widgets/filters/search.html", opts.Name, opts, map[string]interface{}{
			"search_mode": "equal",
		})}, nil
	}
	known := false
	for _, m := range SearchModes {
		if m == mode {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("search filter %s: unknown search mode %q", opts.Name, mode)
	}
	return &Search{Base: newBase("widgets/filters/search.html", opts.Name+"__"+mode, opts, map[string]interface{}{
		"search_mode": mode,
	})}, nil
}

// SearchMode returns the lookup the filter applies
func (s *Search) SearchMode() string {
	return cast.ToString(s.Get("search_mode"))
}

const (
	DefaultDatetimeFormat = "%Y-%m-%d %H:%M:%S"
	DefaultDateFormat     = "%Y-%m-%d"
)

// Datetime filters a column on a "<start> - <end>" range
type Datetime struct {
	Base
	format string
}

// NewDatetime builds a range filter; format is the strftime pattern used to
// render the current range back into the control
func NewDatetime(opts Options, format string) *Datetime {
	if format == "" {
		format = DefaultDatetimeFormat
	}
	return &Datetime{
		Base: newBase("widgets/filters/datetime.html", opts.Name+"__range", opts, map[string]interface{}{
			"format": format,
			"date":   false,
		}),
		format: format,
	}
}

// NewDate is NewDatetime without a time of day
func NewDate(opts Options, format string) *Datetime {
	if format == "" {
		format = DefaultDateFormat
	}
	d := NewDatetime(opts, format)
	d.Set("date", true)
	return d
}

// ParseValue returns the range as [2]time.Time, read in UTC
func (d *Datetime) ParseValue(r *http.Request, raw string) (interface{}, error) {
	parts := strings.Split(raw, " - ")
	if len(parts) != 2 {
		return nil, d.invalid(raw, fmt.Errorf("expected \"<start> - <end>\""))
	}
	var out [2]time.Time
	for i, p := range parts {
		t, err := cast.ToTimeInDefaultLocationE(strings.TrimSpace(p), time.UTC)
		if err != nil {
			return nil, d.invalid(raw, err)
		}
		out[i] = t
	}
	return out, nil
}

func (d *Datetime) Render(r *http.Request, value interface{}) (string, error) {
	text := ""
	if rng, ok := value.([2]time.Time); ok {
		start, err := strftime.Format(d.format, rng[0])
		if err != nil {
			return "", err
		}
		end, err := strftime.Format(d.format, rng[1])
		if err != nil {
			return "", err
		}
		text = start + " - " + end
	}
	return d.RenderWith(r, text, nil)
}

func (d *Datetime) Apply(q *query.QueryBuilder, value interface{}) *query.QueryBuilder {
	rng, ok := value.([2]time.Time)
	if !ok {
		return q.Filter(d.Name(), value)
	}
	return q.Filter(d.Name(), []interface{}{rng[0], rng[1]})
}

// Select offers a fixed or loaded option list
type Select struct {
	Base
	options widgets.OptionsFunc
}

// NewSelect builds a dropdown filter over options
func NewSelect(opts Options, options widgets.OptionsFunc) *Select {
	return &Select{Base: newBase("widgets/filters/select.html", opts.Name, opts, nil), options: options}
}

// Options returns the selector options; optional filters start with an empty choice
func (s *Select) Options(ctx context.Context) ([]widgets.Option, error) {
	var options []widgets.Option
	if s.options != nil {
		loaded, err := s.options(ctx)
		if err != nil {
			return nil, err
		}
		options = loaded
	}
	if s.null() {
		options = append([]widgets.Option{{Label: "", Value: ""}}, options...)
	}
	return options, nil
}

func (s *Select) renderOptions(r *http.Request, options []widgets.Option, value interface{}) (string, error) {
	selected := ""
	if value != nil {
		selected = widgets.Stringify(value)
	}
	return s.RenderWith(r, selected, map[string]interface{}{
		"options": widgets.Choices(options, selected),
	})
}

func (s *Select) Render(r *http.Request, value interface{}) (string, error) {
	options, err := s.Options(r.Context())
	if err != nil {
		return "", fmt.Errorf("load options for %s: %w", s.Name(), err)
	}
	return s.renderOptions(r, options, value)
}

// Enum selects a member of an enum
type Enum struct {
	Select
	Enum *enums.Enum
}

// NewEnum builds a dropdown over the members of e
func NewEnum(opts Options, e *enums.Enum) *Enum {
	options := make([]widgets.Option, 0, len(e.Members))
	for _, c := range e.Choices() {
		options = append(options, widgets.Option{Label: c.Label, Value: c.Value})
	}
	return &Enum{Select: *NewSelect(opts, widgets.StaticOptions(options...)), Enum: e}
}

// ParseValue resolves raw to an enums.Member
func (e *Enum) ParseValue(r *http.Request, raw string) (interface{}, error) {
	m, err := e.Enum.Lookup(raw)
	if err != nil {
		return nil, e.invalid(raw, err)
	}
	return m, nil
}

func (e *Enum) Render(r *http.Request, value interface{}) (string, error) {
	if m, ok := value.(enums.Member); ok {
		value = m.Value
	}
	return e.Select.Render(r, value)
}

func (e *Enum) Apply(q *query.QueryBuilder, value interface{}) *query.QueryBuilder {
	if m, ok := value.(enums.Member); ok {
		value = m.Value
	}
	return q.Filter(e.Name(), value)
}

// Boolean is a three state true / false / any selector
type Boolean struct {
	Select
}

// NewBoolean builds the boolean filter
func NewBoolean(opts Options) *Boolean {
	return &Boolean{Select: *NewSelect(opts, nil)}
}

// Options are always ("", ""), ("TRUE", "true"), ("FALSE", "false")
func (b *Boolean) Options(ctx context.Context) ([]widgets.Option, error) {
	return []widgets.Option{
		{Label: "", Value: ""},
		{Label: "TRUE", Value: "true"},
		{Label: "FALSE", Value: "false"},
	}, nil
}

func (b *Boolean) Render(r *http.Request, value interface{}) (string, error) {
	options, _ := b.Options(r.Context())
	return b.renderOptions(r, options, value)
}

// ParseValue accepts "true" or "false"
func (b *Boolean) ParseValue(r *http.Request, raw string) (interface{}, error) {
	switch strings.ToLower(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return nil, b.invalid(raw, fmt.Errorf("expected true or false"))
}

// ForeignKey selects one row of the related model
type ForeignKey struct {
	Select
	Related string
}

// NewForeignKey lists rows of related through options
func NewForeignKey(opts Options, related string, options widgets.OptionsFunc) *ForeignKey {
	return &ForeignKey{Select: *NewSelect(opts, options), Related: related}
}

// QuerySource starts a fresh query on the filtered model
type QuerySource func() *query.QueryBuilder

// DistinctColumn offers every distinct value stored in the column
type DistinctColumn struct {
	Select
}

// NewDistinctColumn loads its options from SELECT DISTINCT on the column
func NewDistinctColumn(opts Options, source QuerySource) *DistinctColumn {
	column := opts.Name
	load := func(ctx context.Context) ([]widgets.Option, error) {
		values, err := source().Distinct().OrderBy(column, "ASC").Values(ctx, column)
		if err != nil {
			return nil, err
		}
		options := make([]widgets.Option, 0, len(values))
		for _, v := range values {
			s := widgets.Stringify(v)
			options = append(options, widgets.Option{Label: s, Value: s})
		}
		return options, nil
	}
	return &DistinctColumn{Select: *NewSelect(opts, load)}
}

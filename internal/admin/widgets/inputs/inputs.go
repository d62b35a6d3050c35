// Package inputs renders editable form controls and parses submitted values
package inputs

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/spf13/cast"

	"github.com/conduit-lang/conduit-admin/internal/admin/upload"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/enums"
)

// ErrInvalidValue is wrapped by every ParseValue failure
var ErrInvalidValue = widgets.ErrInvalidValue

// Input is an editable widget bound to a form field
type Input interface {
	widgets.Widget
	Name() string
	ParseValue(r *http.Request, raw interface{}) (interface{}, error)
}

// Binder is implemented by inputs that learn their field name late,
// when a resource field is configured
type Binder interface {
	Bind(name, label string)
}

// MultiValue inputs receive every submitted value of their field as []string
type MultiValue interface {
	MultiValue() bool
}

// FileInput inputs receive the uploaded *multipart.FileHeader
type FileInput interface {
	FileInput() bool
}

// ReadOnly inputs are rendered but never parsed
type ReadOnly interface {
	ReadOnly() bool
}

// Options are the context every input template receives
type Options struct {
	Name        string
	Label       string
	Placeholder string
	HelpText    string
	Default     interface{}
	Null        bool
	Disabled    bool
}

// Base is the plain <input> control
type Base struct {
	widgets.Base
}

func newBase(tpl string, opts Options, extra map[string]interface{}) Base {
	ctx := map[string]interface{}{
		"name":        opts.Name,
		"label":       opts.Label,
		"placeholder": opts.Placeholder,
		"help_text":   opts.HelpText,
		"default":     opts.Default,
		"null":        opts.Null,
		"disabled":    opts.Disabled,
	}
	for k, v := range extra {
		ctx[k] = v
	}
	return Base{Base: widgets.NewBase(tpl, ctx)}
}

// NewInput returns the generic text input
func NewInput(opts Options) *Base {
	b := newBase("widgets/inputs/input.html", opts, map[string]interface{}{"input_type": "text"})
	return &b
}

// Name is the form field name
func (b *Base) Name() string {
	return cast.ToString(b.Get("name"))
}

// Bind sets the name and label when they were left empty at construction
func (b *Base) Bind(name, label string) {
	if b.Name() == "" {
		b.Set("name", name)
	}
	if cast.ToString(b.Get("label")) == "" {
		b.Set("label", label)
	}
}

func (b *Base) null() bool {
	return cast.ToBool(b.Get("null"))
}

// Render falls back to the default value when value is nil
func (b *Base) Render(r *http.Request, value interface{}) (string, error) {
	return b.RenderWith(r, formValue(b.valueOrDefault(value)), nil)
}

func (b *Base) valueOrDefault(value interface{}) interface{} {
	if value == nil {
		return b.Get("default")
	}
	return value
}

// formValue is what a control shows for value; nothing renders as ""
func formValue(value interface{}) interface{} {
	if value == nil {
		return ""
	}
	return value
}

// ParseValue returns the submitted string; empty input of a nullable field is nil
func (b *Base) ParseValue(r *http.Request, raw interface{}) (interface{}, error) {
	if widgets.IsEmpty(raw) && b.null() {
		return nil, nil
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return nil, widgets.Invalid(b.Name(), raw, err)
	}
	return s, nil
}

func (b *Base) invalid(raw interface{}, err error) error {
	return widgets.Invalid(b.Name(), raw, err)
}

// DisplayOnly renders a disabled control and is skipped when saving
type DisplayOnly struct {
	Base
}

// NewDisplayOnly returns a read-only input
func NewDisplayOnly(opts Options) *DisplayOnly {
	opts.Disabled = true
	return &DisplayOnly{Base: newBase("widgets/inputs/input.html", opts, map[string]interface{}{"input_type": "text"})}
}

func (d *DisplayOnly) ReadOnly() bool { return true }

// Text is a single line text input
type Text struct {
	Base
}

// NewText returns a text input
func NewText(opts Options) *Text {
	return &Text{Base: newBase("widgets/inputs/input.html", opts, map[string]interface{}{"input_type": "text"})}
}

// Password renders type=password
type Password struct {
	Base
}

// NewPassword returns a password input
func NewPassword(opts Options) *Password {
	return &Password{Base: newBase("widgets/inputs/input.html", opts, map[string]interface{}{"input_type": "password"})}
}

// Render never echoes the stored value. With a stored value the control is
// optional, since a blank submission keeps it.
func (p *Password) Render(r *http.Request, value interface{}) (string, error) {
	if value == nil {
		return p.RenderWith(r, "", nil)
	}
	return p.RenderWith(r, "", map[string]interface{}{"null": true})
}

// Email validates the submitted address
type Email struct {
	Base
}

// NewEmail returns an email input
func NewEmail(opts Options) *Email {
	return &Email{Base: newBase("widgets/inputs/input.html", opts, map[string]interface{}{"input_type": "email"})}
}

func (e *Email) ParseValue(r *http.Request, raw interface{}) (interface{}, error) {
	v, err := e.Base.ParseValue(r, raw)
	if err != nil || v == nil {
		return v, err
	}
	addr, err := mail.ParseAddress(v.(string))
	if err != nil {
		return nil, e.invalid(raw, err)
	}
	return addr.Address, nil
}

// Number parses integers, then floats
type Number struct {
	Base
}

// NewNumber returns a number input
func NewNumber(opts Options) *Number {
	return &Number{Base: newBase("widgets/inputs/input.html", opts, map[string]interface{}{"input_type": "number"})}
}

func (n *Number) ParseValue(r *http.Request, raw interface{}) (interface{}, error) {
	v, err := n.Base.ParseValue(r, raw)
	if err != nil || v == nil {
		return v, err
	}
	s := strings.TrimSpace(v.(string))
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, n.invalid(raw, err)
	}
	return f, nil
}

// Color is a color picker
type Color struct {
	Base
}

// NewColor returns a color input
func NewColor(opts Options) *Color {
	return &Color{Base: newBase("widgets/inputs/color.html", opts, nil)}
}

// TextArea is a multi line text input
type TextArea struct {
	Base
}

// NewTextArea returns a textarea
func NewTextArea(opts Options) *TextArea {
	return &TextArea{Base: newBase("widgets/inputs/textarea.html", opts, nil)}
}

// Editor is a rich text editor; submitted HTML is sanitized
type Editor struct {
	Base
	policy *bluemonday.Policy
}

// NewEditor returns a rich text input sanitized with the UGC policy
func NewEditor(opts Options) *Editor {
	return &Editor{
		Base:   newBase("widgets/inputs/editor.html", opts, nil),
		policy: bluemonday.UGCPolicy(),
	}
}

func (e *Editor) ParseValue(r *http.Request, raw interface{}) (interface{}, error) {
	v, err := e.Base.ParseValue(r, raw)
	if err != nil || v == nil {
		return v, err
	}
	return e.policy.Sanitize(v.(string)), nil
}

// Json edits a JSON document
type Json struct {
	Base
}

// NewJson returns a JSON editor
func NewJson(opts Options) *Json {
	return &Json{Base: newBase("widgets/inputs/json.html", opts, nil)}
}

func (j *Json) Render(r *http.Request, value interface{}) (string, error) {
	value = j.valueOrDefault(value)
	switch v := value.(type) {
	case nil, string:
	case []byte:
		value = string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode json: %w", err)
		}
		value = string(b)
	}
	return j.RenderWith(r, formValue(value), nil)
}

func (j *Json) ParseValue(r *http.Request, raw interface{}) (interface{}, error) {
	v, err := j.Base.ParseValue(r, raw)
	if err != nil || v == nil {
		return v, err
	}
	s := v.(string)
	if strings.TrimSpace(s) == "" {
		s = "{}"
	}
	if !json.Valid([]byte(s)) {
		return nil, j.invalid(raw, fmt.Errorf("not a json document"))
	}
	return s, nil
}

// DateTime parses "2006-01-02 15:04:05" style values
type DateTime struct {
	Base
	layout string
}

// NewDateTime returns a datetime picker
func NewDateTime(opts Options) *DateTime {
	return &DateTime{
		Base:   newBase("widgets/inputs/datetime.html", opts, map[string]interface{}{"enable_time": true}),
		layout: "2006-01-02 15:04:05",
	}
}

// NewDate returns a date picker
func NewDate(opts Options) *DateTime {
	return &DateTime{
		Base:   newBase("widgets/inputs/datetime.html", opts, map[string]interface{}{"enable_time": false}),
		layout: "2006-01-02",
	}
}

func (d *DateTime) Render(r *http.Request, value interface{}) (string, error) {
	value = d.valueOrDefault(value)
	if t, err := cast.ToTimeE(value); err == nil && value != nil {
		value = t.Format(d.layout)
	}
	return d.RenderWith(r, formValue(value), nil)
}

func (d *DateTime) ParseValue(r *http.Request, raw interface{}) (interface{}, error) {
	v, err := d.Base.ParseValue(r, raw)
	if err != nil || v == nil {
		return v, err
	}
	t, err := cast.ToTimeInDefaultLocationE(v.(string), time.UTC)
	if err != nil {
		return nil, d.invalid(raw, err)
	}
	return t, nil
}

// Switch is a checkbox styled as a toggle
type Switch struct {
	Base
}

// NewSwitch returns a boolean toggle
func NewSwitch(opts Options) *Switch {
	return &Switch{Base: newBase("widgets/inputs/switch.html", opts, nil)}
}

func (s *Switch) Render(r *http.Request, value interface{}) (string, error) {
	value = s.valueOrDefault(value)
	return s.RenderWith(r, value, map[string]interface{}{"checked": isOn(value)})
}

func (s *Switch) ParseValue(r *http.Request, raw interface{}) (interface{}, error) {
	return isOn(raw), nil
}

func isOn(value interface{}) bool {
	if str, ok := value.(string); ok {
		switch strings.ToLower(str) {
		case "on", "true", "1", "yes":
			return true
		}
		return false
	}
	return cast.ToBool(value)
}

// Select renders a dropdown whose options load at render time
type Select struct {
	Base
	options widgets.OptionsFunc
}

// NewSelect returns a dropdown; a nullable select offers an empty choice first
func NewSelect(opts Options, options widgets.OptionsFunc) *Select {
	return &Select{Base: newBase("widgets/inputs/select.html", opts, nil), options: options}
}

// Options returns the selector options
func (s *Select) Options(ctx context.Context) ([]widgets.Option, error) {
	if s.options == nil {
		return nil, nil
	}
	options, err := s.options(ctx)
	if err != nil {
		return nil, err
	}
	if s.null() {
		options = append([]widgets.Option{{Label: "", Value: ""}}, options...)
	}
	return options, nil
}

func (s *Select) Render(r *http.Request, value interface{}) (string, error) {
	options, err := s.Options(r.Context())
	if err != nil {
		return "", fmt.Errorf("load options for %s: %w", s.Name(), err)
	}
	value = s.valueOrDefault(value)
	return s.RenderWith(r, formValue(value), map[string]interface{}{
		"options": widgets.Choices(options, widgets.Stringify(value)),
	})
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

// ManyToMany selects any number of related rows
type ManyToMany struct {
	Select
	Related string
}

// NewManyToMany lists rows of related through options
func NewManyToMany(opts Options, related string, options widgets.OptionsFunc) *ManyToMany {
	m := &ManyToMany{Select: *NewSelect(opts, options), Related: related}
	m.Template = "widgets/inputs/many_to_many.html"
	return m
}

func (m *ManyToMany) MultiValue() bool { return true }

func (m *ManyToMany) Render(r *http.Request, value interface{}) (string, error) {
	options, err := m.Options(r.Context())
	if err != nil {
		return "", fmt.Errorf("load options for %s: %w", m.Name(), err)
	}
	selected := make([]string, 0)
	for _, v := range cast.ToSlice(value) {
		selected = append(selected, widgets.Stringify(v))
	}
	return m.RenderWith(r, selected, map[string]interface{}{
		"options": widgets.Choices(options, selected...),
	})
}

func (m *ManyToMany) ParseValue(r *http.Request, raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
		return out, nil
	case string:
		return m.ParseValue(r, []string{v})
	}
	return nil, m.invalid(raw, fmt.Errorf("expected a list of ids"))
}

// Enum selects a member of an enum; the stored value is the member value
type Enum struct {
	Select
	Enum *enums.Enum
}

func enumOptions(e *enums.Enum) widgets.OptionsFunc {
	options := make([]widgets.Option, 0, len(e.Members))
	for _, c := range e.Choices() {
		options = append(options, widgets.Option{Label: c.Label, Value: c.Value})
	}
	return widgets.StaticOptions(options...)
}

// NewEnum returns a dropdown over the members of e
func NewEnum(opts Options, e *enums.Enum) *Enum {
	return &Enum{Select: *NewSelect(opts, enumOptions(e)), Enum: e}
}

func (e *Enum) Render(r *http.Request, value interface{}) (string, error) {
	return e.Select.Render(r, enumValue(e.Enum, e.valueOrDefault(value)))
}

func (e *Enum) ParseValue(r *http.Request, raw interface{}) (interface{}, error) {
	return parseEnum(&e.Base, e.Enum, r, raw)
}

// Radio renders one radio button per option
type Radio struct {
	Select
}

// NewRadio returns radio buttons over a fixed option list
func NewRadio(opts Options, options ...widgets.Option) *Radio {
	r := &Radio{Select: *NewSelect(opts, widgets.StaticOptions(options...))}
	r.Template = "widgets/inputs/radio.html"
	return r
}

// RadioEnum renders one radio button per enum member
type RadioEnum struct {
	Radio
	Enum *enums.Enum
}

// NewRadioEnum returns radio buttons over the members of e
func NewRadioEnum(opts Options, e *enums.Enum) *RadioEnum {
	r := &RadioEnum{Radio: Radio{Select: *NewSelect(opts, enumOptions(e))}, Enum: e}
	r.Template = "widgets/inputs/radio.html"
	return r
}

func (e *RadioEnum) Render(r *http.Request, value interface{}) (string, error) {
	return e.Radio.Render(r, enumValue(e.Enum, e.valueOrDefault(value)))
}

func (e *RadioEnum) ParseValue(r *http.Request, raw interface{}) (interface{}, error) {
	return parseEnum(&e.Base, e.Enum, r, raw)
}

func enumValue(e *enums.Enum, value interface{}) interface{} {
	switch v := value.(type) {
	case enums.Member:
		return v.Value
	case *enums.Member:
		return v.Value
	}
	return value
}

func parseEnum(b *Base, e *enums.Enum, r *http.Request, raw interface{}) (interface{}, error) {
	v, err := b.ParseValue(r, raw)
	if err != nil || v == nil {
		return v, err
	}
	m, err := e.Lookup(v)
	if err != nil {
		return nil, b.invalid(raw, err)
	}
	return m.Value, nil
}

// File uploads the submitted file and stores its URL
type File struct {
	Base
	upload *upload.FileUpload
}

// NewFile stores uploads through u
func NewFile(opts Options, u *upload.FileUpload) *File {
	return &File{Base: newBase("widgets/inputs/file.html", opts, nil), upload: u}
}

// NewImage is a File input previewing the current image
func NewImage(opts Options, u *upload.FileUpload) *File {
	return &File{Base: newBase("widgets/inputs/image.html", opts, nil), upload: u}
}

func (f *File) FileInput() bool { return true }

// ParseValue uploads raw, a *multipart.FileHeader. Without a file the
// current value is kept, signalled by a nil value and nil error.
func (f *File) ParseValue(r *http.Request, raw interface{}) (interface{}, error) {
	header, ok := raw.(*multipart.FileHeader)
	if !ok || header == nil {
		return nil, nil
	}
	if f.upload == nil {
		return nil, fmt.Errorf("%s: no upload configured", f.Name())
	}
	return f.upload.Upload(r.Context(), header)
}

package resources

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/conduit-lang/conduit-admin/internal/admin/upload"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/displays"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/filters"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/inputs"
	"github.com/conduit-lang/conduit-admin/internal/enums"
	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
)

// DefaultPageSize is the list page size of a model without one
const DefaultPageSize = 10

// maxFormMemory is the multipart size kept in memory before spilling to disk
const maxFormMemory = 32 << 20

// SaveHook runs on parsed form data before a create or update is written
type SaveHook func(r *http.Request, data map[string]interface{}, creating bool) error

// Model is the resource managing one model
type Model struct {
	Base
	Schema       *schema.ModelSchema
	PageSize     int
	PagePreTitle string
	PageTitle    string
	Fields       []*Field
	Filters      []filters.Filter

	// Optional hooks; nil selects the defaults
	ToolbarActionsFunc   func(r *http.Request) []ToolbarAction
	ActionsFunc          func(r *http.Request) []Action
	BulkActionsFunc      func(r *http.Request) []Action
	RowAttributesFunc    func(r *http.Request, row map[string]interface{}) map[string]string
	CellAttributesFunc   func(r *http.Request, row map[string]interface{}, f *Field) map[string]string
	ColumnAttributesFunc func(r *http.Request, f *Field) map[string]string
	PreSave              SaveHook
}

// NewModel returns a resource over every column of m
func NewModel(m *schema.ModelSchema, icon string) *Model {
	return &Model{Schema: m, Base: Base{Icon: icon}}
}

// Names turns column names into fields whose widgets Init picks from the column type
func Names(names ...string) []*Field {
	out := make([]*Field, len(names))
	for i, n := range names {
		out[i] = &Field{Name: n}
	}
	return out
}

// Name is the model name used in URLs
func (m *Model) Name() string {
	return m.Schema.Name
}

// DisplayLabel is the label shown in navigation and page titles
func (m *Model) DisplayLabel() string {
	switch {
	case m.Label != "":
		return m.Label
	case m.Schema != nil && m.Schema.Label != "":
		return m.Schema.Label
	case m.Schema != nil:
		return Titleize(m.Schema.Name)
	}
	return ""
}

// InitOptions supplies what relation and upload inputs load at render or parse time
type InitOptions struct {
	// Related returns (label, pk) options over the rows of a model
	Related func(model string) widgets.OptionsFunc
	Upload  *upload.FileUpload
}

// Init fills in defaults and picks widgets for fields that have none. It runs
// once at startup; the resource is read-only afterwards.
func (m *Model) Init(opts InitOptions) error {
	if m.Schema == nil {
		return fmt.Errorf("%w: model resource %q has no model", ErrInvalidResource, m.Label)
	}
	if m.PageSize <= 0 {
		m.PageSize = DefaultPageSize
	}
	if m.PageTitle == "" {
		m.PageTitle = m.DisplayLabel()
	}
	if len(m.Fields) == 0 {
		for _, c := range m.Schema.Columns {
			m.Fields = append(m.Fields, &Field{Name: c.Name})
		}
	}

	for _, f := range m.Fields {
		if f.Label == "" {
			f.Label = Titleize(f.Name)
		}
		if f.Computed() {
			if f.Display == nil {
				f.Display = displays.NewDisplay()
			}
			f.Input = nil
			continue
		}

		col, ok := m.Schema.Column(f.Name)
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrNoSuchField, m.Schema.Name, f.Name)
		}
		if f.Display == nil {
			f.Display = DisplayFor(col)
		}
		if f.Input == nil {
			in, err := InputFor(col, f.Label, opts)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", m.Schema.Name, f.Name, err)
			}
			f.Input = in
		}
		if b, ok := f.Input.(inputs.Binder); ok {
			b.Bind(f.Name, f.Label)
		}
	}

	for _, flt := range m.Filters {
		col, ok := m.Schema.Column(flt.Field())
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrNoSuchField, m.Schema.Name, flt.Field())
		}
		if col.IsVirtual() {
			return fmt.Errorf("%w: %s.%s cannot be filtered", ErrInvalidResource, m.Schema.Name, col.Name)
		}
	}
	return nil
}

// DisplayFor picks the display widget of a column
func DisplayFor(col *schema.Column) widgets.Widget {
	if col.PrimaryKey {
		return displays.NewDisplay()
	}
	switch col.Type {
	case schema.TypeBool:
		return displays.NewBoolean()
	case schema.TypeTimestamp:
		return displays.NewDatetimeDisplay("")
	case schema.TypeDate:
		return displays.NewDateDisplay("")
	case schema.TypeEnum:
		return displays.NewEnumDisplay(col.Enum)
	case schema.TypeJSON:
		return displays.NewJson()
	case schema.TypeImage:
		return displays.NewImage("", "48")
	case schema.TypeColor:
		return displays.NewColor()
	case schema.TypePassword, schema.TypeManyToMany:
		return displays.NewInputOnly()
	}
	return displays.NewDisplay()
}

// InputFor picks the input widget of a column
func InputFor(col *schema.Column, label string, opts InitOptions) (inputs.Input, error) {
	o := inputs.Options{
		Name:     col.Name,
		Label:    label,
		HelpText: col.Description,
		Default:  col.Default,
		Null:     col.Nullable,
	}
	if col.PrimaryKey || col.Auto {
		return inputs.NewDisplayOnly(o), nil
	}

	switch col.Type {
	case schema.TypeBool:
		return inputs.NewSwitch(o), nil
	case schema.TypeTimestamp:
		return inputs.NewDateTime(o), nil
	case schema.TypeDate:
		return inputs.NewDate(o), nil
	case schema.TypeEnum:
		return inputs.NewRadioEnum(o, col.Enum), nil
	case schema.TypeJSON:
		return inputs.NewJson(o), nil
	case schema.TypeText:
		return inputs.NewTextArea(o), nil
	case schema.TypeInt, schema.TypeBigInt, schema.TypeFloat, schema.TypeDecimal:
		return inputs.NewNumber(o), nil
	case schema.TypeEmail:
		return inputs.NewEmail(o), nil
	case schema.TypeColor:
		return inputs.NewColor(o), nil
	case schema.TypePassword:
		return inputs.NewPassword(o), nil
	case schema.TypeForeignKey, schema.TypeManyToMany:
		if opts.Related == nil {
			return nil, fmt.Errorf("relation to %s needs an options source", col.Related)
		}
		if col.Type == schema.TypeForeignKey {
			return inputs.NewForeignKey(o, col.Related, opts.Related(col.Related)), nil
		}
		return inputs.NewManyToMany(o, col.Related, opts.Related(col.Related)), nil
	case schema.TypeFile, schema.TypeImage:
		if opts.Upload == nil {
			return nil, fmt.Errorf("%s column needs an upload", col.Type)
		}
		if col.Type == schema.TypeImage {
			return inputs.NewImage(o, opts.Upload), nil
		}
		return inputs.NewFile(o, opts.Upload), nil
	}
	return inputs.NewText(o), nil
}

// DisplayFields are the fields shown in list and detail views
func (m *Model) DisplayFields() []*Field {
	out := make([]*Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		if _, hidden := f.Display.(*displays.InputOnly); hidden || f.Display == nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FormFields are the fields shown in create (creating) and update forms.
// Read-only inputs are left out of the create form.
func (m *Model) FormFields(creating bool) []*Field {
	out := make([]*Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		if f.Computed() || f.Input == nil {
			continue
		}
		if creating && isReadOnly(f.Input) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isReadOnly(in inputs.Input) bool {
	ro, ok := in.(inputs.ReadOnly)
	return ok && ro.ReadOnly()
}

// ToolbarActions are shown above the list
func (m *Model) ToolbarActions(r *http.Request) []ToolbarAction {
	if m.ToolbarActionsFunc != nil {
		return m.ToolbarActionsFunc(r)
	}
	return []ToolbarAction{{
		Action: Action{Name: "create", Label: "create", Icon: "fas fa-plus", Method: enums.GET, Ajax: false},
		Class:  "btn-dark",
	}}
}

// Actions are shown on every row
func (m *Model) Actions(r *http.Request) []Action {
	if m.ActionsFunc != nil {
		return m.ActionsFunc(r)
	}
	return []Action{
		{Name: "update", Label: "update", Icon: "ti ti-edit", Method: enums.GET, Ajax: false},
		{Name: "delete", Label: "delete", Icon: "ti ti-trash", Method: enums.DELETE, Ajax: true},
	}
}

// BulkActions apply to the selected rows
func (m *Model) BulkActions(r *http.Request) []Action {
	if m.BulkActionsFunc != nil {
		return m.BulkActionsFunc(r)
	}
	return []Action{
		{Name: "delete", Label: "delete_selected", Icon: "ti ti-trash", Method: enums.DELETE, Ajax: true},
	}
}

// ResolveQueryParams parses every filter present in values and applies it to q.
// The parsed values are keyed by filter name.
func (m *Model) ResolveQueryParams(r *http.Request, values url.Values, q *query.QueryBuilder) (map[string]interface{}, *query.QueryBuilder, error) {
	parsed := make(map[string]interface{}, len(m.Filters))
	for _, f := range m.Filters {
		raw := values.Get(f.Name())
		if raw == "" {
			continue
		}
		v, err := f.ParseValue(r, raw)
		if err != nil {
			return nil, q, err
		}
		parsed[f.Name()] = v
		q = f.Apply(q, v)
	}
	return parsed, q, nil
}

// RenderFilters renders every filter with its parsed value
func (m *Model) RenderFilters(r *http.Request, parsed map[string]interface{}) ([]string, error) {
	out := make([]string, 0, len(m.Filters))
	for _, f := range m.Filters {
		html, err := f.Render(r, parsed[f.Name()])
		if err != nil {
			return nil, fmt.Errorf("render filter %s: %w", f.Name(), err)
		}
		out = append(out, html)
	}
	return out, nil
}

// ResolveData parses the submitted form of r into column values. File inputs
// without a new file and empty passwords on update keep the stored value.
func (m *Model) ResolveData(r *http.Request, creating bool) (map[string]interface{}, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, fmt.Errorf("parse form: %w", err)
	}

	data := make(map[string]interface{})
	for _, f := range m.FormFields(creating) {
		if isReadOnly(f.Input) {
			continue
		}
		name := f.Input.Name()

		if fi, ok := f.Input.(inputs.FileInput); ok && fi.FileInput() {
			var header *multipart.FileHeader
			if r.MultipartForm != nil && len(r.MultipartForm.File[name]) > 0 {
				header = r.MultipartForm.File[name][0]
			}
			v, err := f.Input.ParseValue(r, header)
			if err != nil {
				return nil, err
			}
			if v != nil {
				data[f.Name] = v
			}
			continue
		}

		var raw interface{}
		if mv, ok := f.Input.(inputs.MultiValue); ok && mv.MultiValue() {
			raw = r.PostForm[name]
		} else {
			s := r.PostForm.Get(name)
			if _, ok := f.Input.(*inputs.Password); ok && s == "" && !creating {
				continue
			}
			raw = s
		}

		v, err := f.Input.ParseValue(r, raw)
		if err != nil {
			return nil, err
		}
		data[f.Name] = v
	}

	if m.PreSave != nil {
		if err := m.PreSave(r, data, creating); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Column is a list header
type Column struct {
	Name       string
	Label      string
	Attributes map[string]string
}

// Columns returns the list headers
func (m *Model) Columns(r *http.Request) []Column {
	fields := m.DisplayFields()
	out := make([]Column, 0, len(fields))
	for _, f := range fields {
		col := Column{Name: f.Name, Label: f.Label}
		if m.ColumnAttributesFunc != nil {
			col.Attributes = m.ColumnAttributesFunc(r, f)
		}
		out = append(out, col)
	}
	return out
}

// Cell is one rendered value
type Cell struct {
	Field      string
	Label      string
	HTML       string
	Attributes map[string]string
}

// Row is one rendered record
type Row struct {
	PK         interface{}
	Cells      []Cell
	Attributes map[string]string
}

// RenderValues renders rows with the display widgets of the display fields,
// or with the input widgets of the update form when display is false
func (m *Model) RenderValues(r *http.Request, rows []map[string]interface{}, display bool) ([]Row, error) {
	fields := m.FormFields(false)
	if display {
		fields = m.DisplayFields()
	}
	pk := ""
	if m.Schema != nil {
		pk = m.Schema.PrimaryKey().Name
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		rendered := Row{PK: row[pk], Cells: make([]Cell, 0, len(fields))}
		if m.RowAttributesFunc != nil {
			rendered.Attributes = m.RowAttributesFunc(r, row)
		}
		for _, f := range fields {
			v, err := f.Value(r.Context(), r, row)
			if err != nil {
				return nil, fmt.Errorf("compute %s: %w", f.Name, err)
			}
			var html string
			if display {
				html, err = f.Display.Render(r, v)
			} else {
				html, err = f.Input.Render(r, v)
			}
			if err != nil {
				return nil, fmt.Errorf("render %s: %w", f.Name, err)
			}
			cell := Cell{Field: f.Name, Label: f.Label, HTML: html}
			if m.CellAttributesFunc != nil {
				cell.Attributes = m.CellAttributesFunc(r, row, f)
			}
			rendered.Cells = append(rendered.Cells, cell)
		}
		out = append(out, rendered)
	}
	return out, nil
}

package manifest

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/conduit-lang/conduit-admin/internal/admin/resources"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/displays"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/filters"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/inputs"
	"github.com/conduit-lang/conduit-admin/internal/enums"
	"github.com/conduit-lang/conduit-admin/internal/orm/crud"
	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
)

// BuildOptions supplies what filters load their options from
type BuildOptions struct {
	// Registry receives the models, a new one is created when nil
	Registry *schema.Registry

	// DB and Dialect back distinct filters
	DB      *sql.DB
	Dialect query.Dialect

	// Related backs fk filters
	Related func(model string) widgets.OptionsFunc
}

// Result holds what a manifest describes
type Result struct {
	Registry  *schema.Registry
	Resources []resources.Resource
	Enums     map[string]*enums.Enum
}

// Build validates the manifest and turns it into models and resources
func (m *Manifest) Build(opts BuildOptions) (*Result, error) {
	if opts.Registry == nil {
		opts.Registry = schema.NewRegistry()
	}
	res := &Result{Registry: opts.Registry, Enums: make(map[string]*enums.Enum, len(m.Enums))}

	names := make([]string, 0, len(m.Enums))
	for name := range m.Enums {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		members := m.Enums[name]
		if len(members) == 0 {
			return nil, fmt.Errorf("%w: enum %s has no members", ErrInvalidManifest, name)
		}
		e := &enums.Enum{Name: name}
		for _, member := range members {
			e.Members = append(e.Members, enums.Member{Name: member.Name, Value: member.Value})
		}
		res.Enums[name] = e
	}

	for _, spec := range m.Models {
		model, err := buildModel(spec, res.Enums)
		if err != nil {
			return nil, err
		}
		if err := opts.Registry.Register(model); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
	}
	if err := opts.Registry.ValidateRelations(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	b := builder{opts: opts, enums: res.Enums}
	for i, spec := range m.Resources {
		r, err := b.resource(spec)
		if err != nil {
			return nil, fmt.Errorf("resource %d: %w", i, err)
		}
		res.Resources = append(res.Resources, r)
	}
	return res, nil
}

func buildModel(spec ModelSpec, known map[string]*enums.Enum) (*schema.ModelSchema, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: model without name", ErrInvalidManifest)
	}
	model := schema.NewModelSchema(spec.Name, spec.Table)
	model.Label = spec.Label
	model.DisplayColumn = spec.DisplayColumn

	for _, c := range spec.Columns {
		typ, err := schema.ParseFieldType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: model %s column %s: %v", ErrInvalidManifest, spec.Name, c.Name, err)
		}
		col := &schema.Column{
			Name:              c.Name,
			Type:              typ,
			Nullable:          c.Nullable,
			PrimaryKey:        c.PrimaryKey,
			Auto:              c.Auto,
			Default:           c.Default,
			MaxLength:         c.MaxLength,
			Description:       c.Description,
			Related:           c.Related,
			Through:           c.Through,
			ThroughKey:        c.ThroughKey,
			ThroughRelatedKey: c.ThroughRelatedKey,
		}
		if c.Enum != "" {
			e, ok := known[c.Enum]
			if !ok {
				return nil, fmt.Errorf("%w: model %s column %s: unknown enum %s", ErrInvalidManifest, spec.Name, c.Name, c.Enum)
			}
			col.Enum = e
		}
		model.AddColumn(col)
	}
	if spec.DisplayColumn != "" {
		if _, ok := model.Column(spec.DisplayColumn); !ok {
			return nil, fmt.Errorf("%w: model %s: display column %s does not exist", ErrInvalidManifest, spec.Name, spec.DisplayColumn)
		}
	}
	return model, nil
}

type builder struct {
	opts  BuildOptions
	enums map[string]*enums.Enum
}

func (b builder) resource(spec ResourceSpec) (resources.Resource, error) {
	switch spec.Type {
	case TypeLink:
		if spec.URL == "" {
			return nil, fmt.Errorf("%w: link %q has no url", ErrInvalidManifest, spec.Label)
		}
		link := resources.NewLink(spec.Label, spec.Icon, spec.URL)
		if spec.Target != "" {
			link.Target = spec.Target
		}
		return link, nil
	case TypeModel:
		return b.model(spec)
	case TypeDropdown:
		children := make([]resources.Resource, 0, len(spec.Resources))
		for _, child := range spec.Resources {
			r, err := b.resource(child)
			if err != nil {
				return nil, err
			}
			children = append(children, r)
		}
		return resources.NewDropdown(spec.Label, spec.Icon, children...), nil
	}
	return nil, fmt.Errorf("%w: unknown resource type %q", ErrInvalidManifest, spec.Type)
}

func (b builder) model(spec ResourceSpec) (*resources.Model, error) {
	s, ok := b.opts.Registry.Get(spec.Model)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", ErrInvalidManifest, spec.Model)
	}
	m := resources.NewModel(s, spec.Icon)
	m.Label = spec.Label
	m.PageSize = spec.PageSize
	m.PagePreTitle = spec.PagePreTitle
	m.PageTitle = spec.PageTitle

	for _, f := range spec.Fields {
		field, err := b.field(s, f)
		if err != nil {
			return nil, err
		}
		m.Fields = append(m.Fields, field)
	}
	for _, f := range spec.Filters {
		filter, err := b.filter(s, f)
		if err != nil {
			return nil, err
		}
		m.Filters = append(m.Filters, filter)
	}
	return m, nil
}

func (b builder) field(s *schema.ModelSchema, spec FieldSpec) (*resources.Field, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: model %s: field without name", ErrInvalidManifest, s.Name)
	}
	f := &resources.Field{Name: spec.Name, Label: spec.Label}
	if f.Label == "" {
		f.Label = resources.Titleize(spec.Name)
	}
	if spec.Display == "" && spec.Input == "" {
		return f, nil
	}

	col, ok := s.Column(spec.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", resources.ErrNoSuchField, s.Name, spec.Name)
	}
	if spec.Display != "" {
		d, err := display(col, spec)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.Name, spec.Name, err)
		}
		f.Display = d
	}
	if spec.Input != "" {
		in, err := input(col, f.Label, spec.Input)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.Name, spec.Name, err)
		}
		f.Input = in
	}
	return f, nil
}

func display(col *schema.Column, spec FieldSpec) (widgets.Widget, error) {
	switch spec.Display {
	case "text":
		return displays.NewDisplay(), nil
	case "datetime":
		return displays.NewDatetimeDisplay(spec.Format), nil
	case "date":
		return displays.NewDateDisplay(spec.Format), nil
	case "boolean":
		return displays.NewBoolean(), nil
	case "image":
		return displays.NewImage(spec.Width, spec.Height), nil
	case "json":
		return displays.NewJson(), nil
	case "color":
		return displays.NewColor(), nil
	case "input_only":
		return displays.NewInputOnly(), nil
	case "enum":
		if col.Enum == nil {
			return nil, fmt.Errorf("%w: enum display on a column without enum", ErrInvalidManifest)
		}
		return displays.NewEnumDisplay(col.Enum), nil
	}
	return nil, fmt.Errorf("%w: unknown display %q", ErrInvalidManifest, spec.Display)
}

func input(col *schema.Column, label, kind string) (inputs.Input, error) {
	o := inputs.Options{
		Name:     col.Name,
		Label:    label,
		HelpText: col.Description,
		Default:  col.Default,
		Null:     col.Nullable,
	}
	switch kind {
	case "text":
		return inputs.NewText(o), nil
	case "textarea":
		return inputs.NewTextArea(o), nil
	case "editor":
		return inputs.NewEditor(o), nil
	case "password":
		return inputs.NewPassword(o), nil
	case "email":
		return inputs.NewEmail(o), nil
	case "color":
		return inputs.NewColor(o), nil
	case "number":
		return inputs.NewNumber(o), nil
	case "json":
		return inputs.NewJson(o), nil
	case "switch":
		return inputs.NewSwitch(o), nil
	case "datetime":
		return inputs.NewDateTime(o), nil
	case "date":
		return inputs.NewDate(o), nil
	case "display_only":
		return inputs.NewDisplayOnly(o), nil
	case "enum", "radio_enum":
		if col.Enum == nil {
			return nil, fmt.Errorf("%w: %s input on a column without enum", ErrInvalidManifest, kind)
		}
		if kind == "enum" {
			return inputs.NewEnum(o, col.Enum), nil
		}
		return inputs.NewRadioEnum(o, col.Enum), nil
	}
	return nil, fmt.Errorf("%w: unknown input %q", ErrInvalidManifest, kind)
}

func (b builder) filter(s *schema.ModelSchema, spec FilterSpec) (filters.Filter, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: model %s: filter without name", ErrInvalidManifest, s.Name)
	}
	col, ok := s.Column(spec.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", resources.ErrNoSuchField, s.Name, spec.Name)
	}
	if col.IsVirtual() {
		return nil, fmt.Errorf("%w: model %s: filter on virtual column %s", ErrInvalidManifest, s.Name, spec.Name)
	}
	label := spec.Label
	if label == "" {
		label = resources.Titleize(spec.Name)
	}
	o := filters.Options{Name: spec.Name, Label: label, Placeholder: spec.Placeholder, Required: spec.Required}

	switch spec.Type {
	case "search":
		search, err := filters.NewSearch(o, spec.Mode)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
		return search, nil
	case "boolean":
		return filters.NewBoolean(o), nil
	case "datetime":
		return filters.NewDatetime(o, spec.Format), nil
	case "date":
		return filters.NewDate(o, spec.Format), nil
	case "enum":
		e := col.Enum
		if spec.Enum != "" {
			e = b.enums[spec.Enum]
		}
		if e == nil {
			return nil, fmt.Errorf("%w: enum filter %s.%s has no enum", ErrInvalidManifest, s.Name, spec.Name)
		}
		return filters.NewEnum(o, e), nil
	case "select":
		if len(spec.Options) == 0 {
			return nil, fmt.Errorf("%w: select filter %s.%s has no options", ErrInvalidManifest, s.Name, spec.Name)
		}
		options := make([]widgets.Option, 0, len(spec.Options))
		for _, opt := range spec.Options {
			options = append(options, widgets.Option{Label: opt.Name, Value: opt.Value})
		}
		return filters.NewSelect(o, widgets.StaticOptions(options...)), nil
	case "distinct":
		if b.opts.DB == nil {
			return nil, fmt.Errorf("%w: distinct filter %s.%s needs a database", ErrInvalidManifest, s.Name, spec.Name)
		}
		db, dialect := b.opts.DB, b.opts.Dialect
		return filters.NewDistinctColumn(o, func() *query.QueryBuilder {
			return crud.NewOperations(s, db, dialect).Query()
		}), nil
	case "fk":
		related := spec.Related
		if related == "" {
			related = col.Related
		}
		if related == "" {
			return nil, fmt.Errorf("%w: fk filter %s.%s has no related model", ErrInvalidManifest, s.Name, spec.Name)
		}
		if b.opts.Related == nil {
			return nil, fmt.Errorf("%w: fk filter %s.%s needs an options source", ErrInvalidManifest, s.Name, spec.Name)
		}
		return filters.NewForeignKey(o, related, b.opts.Related(related)), nil
	}
	return nil, fmt.Errorf("%w: unknown filter type %q", ErrInvalidManifest, spec.Type)
}

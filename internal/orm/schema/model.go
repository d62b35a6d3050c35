package schema

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/conduit-admin/internal/enums"
)

// Column describes a single model attribute
type Column struct {
	Name       string
	Type       FieldType
	Nullable   bool
	PrimaryKey bool
	// Auto columns are filled by the database (serial ids, created_at defaults)
	Auto        bool
	Default     any
	MaxLength   int
	Description string

	// Enum is set for TypeEnum columns
	Enum *enums.Enum

	// Related names the target model for fk and m2m columns
	Related string
	// Through, ThroughKey and ThroughRelatedKey describe the join table of an
	// m2m column: Through(ThroughKey -> this pk, ThroughRelatedKey -> related pk)
	Through           string
	ThroughKey        string
	ThroughRelatedKey string
}

// IsVirtual reports whether the column has no backing column on the model table
func (c *Column) IsVirtual() bool {
	return c.Type == TypeManyToMany
}

// ModelSchema is the runtime description of a table the admin manages
type ModelSchema struct {
	// Name is the registry key and the URL segment of the model
	Name  string
	Table string
	Label string
	// DisplayColumn is used as the option label when the model is the target of a relation
	DisplayColumn string

	Columns []*Column
	index   map[string]*Column
}

// NewModelSchema creates an empty model bound to table
func NewModelSchema(name, table string) *ModelSchema {
	if table == "" {
		table = pluralize(toSnakeCase(name))
	}
	return &ModelSchema{
		Name:  strings.ToLower(name),
		Table: table,
		index: make(map[string]*Column),
	}
}

// AddColumn appends a column, replacing any previous definition with the same name
func (m *ModelSchema) AddColumn(c *Column) *ModelSchema {
	if m.index == nil {
		m.index = make(map[string]*Column)
	}
	if _, exists := m.index[c.Name]; exists {
		for i, existing := range m.Columns {
			if existing.Name == c.Name {
				m.Columns[i] = c
			}
		}
	} else {
		m.Columns = append(m.Columns, c)
	}
	m.index[c.Name] = c
	return m
}

// Column returns the named column
func (m *ModelSchema) Column(name string) (*Column, bool) {
	c, ok := m.index[name]
	return c, ok
}

// PrimaryKey returns the primary key column, defaulting to "id"
func (m *ModelSchema) PrimaryKey() *Column {
	for _, c := range m.Columns {
		if c.PrimaryKey {
			return c
		}
	}
	if c, ok := m.index["id"]; ok {
		return c
	}
	return &Column{Name: "id", Type: TypeInt, PrimaryKey: true, Auto: true}
}

// TableColumns returns the non-virtual columns in declaration order
func (m *ModelSchema) TableColumns() []*Column {
	out := make([]*Column, 0, len(m.Columns))
	for _, c := range m.Columns {
		if !c.IsVirtual() {
			out = append(out, c)
		}
	}
	return out
}

// LabelColumn returns the column used to represent a row as text
func (m *ModelSchema) LabelColumn() string {
	if m.DisplayColumn != "" {
		return m.DisplayColumn
	}
	for _, c := range m.Columns {
		if !c.PrimaryKey && (c.Type == TypeString || c.Type == TypeEmail) {
			return c.Name
		}
	}
	return m.PrimaryKey().Name
}

// Validate checks the structural consistency of the model
func (m *ModelSchema) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if !isValidIdentifier(m.Table) {
		return fmt.Errorf("model %s: invalid table name %q", m.Name, m.Table)
	}
	for _, c := range m.Columns {
		if !isValidIdentifier(c.Name) {
			return fmt.Errorf("model %s: invalid column name %q", m.Name, c.Name)
		}
		switch c.Type {
		case TypeEnum:
			if c.Enum == nil || len(c.Enum.Members) == 0 {
				return fmt.Errorf("model %s: enum column %s has no members", m.Name, c.Name)
			}
		case TypeForeignKey:
			if c.Related == "" {
				return fmt.Errorf("model %s: fk column %s has no related model", m.Name, c.Name)
			}
		case TypeManyToMany:
			if c.Related == "" || c.Through == "" || c.ThroughKey == "" || c.ThroughRelatedKey == "" {
				return fmt.Errorf("model %s: m2m column %s needs related, through, through_key and through_related_key", m.Name, c.Name)
			}
		}
	}
	return nil
}

func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, char := range s {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_') {
			return false
		}
	}
	return true
}

// toSnakeCase converts a string to snake_case
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

func pluralize(s string) string {
	if strings.HasSuffix(s, "s") || strings.HasSuffix(s, "x") || strings.HasSuffix(s, "z") {
		return s + "es"
	}
	if strings.HasSuffix(s, "y") {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}

// Package manifest reads the YAML file describing the models the admin
// manages and how they appear in the navigation.
//
//	enums:
//	  status:
//	    - {name: ACTIVE, value: "1"}
//	models:
//	  - name: user
//	    columns:
//	      - {name: id, type: int, primary_key: true, auto: true}
//	      - {name: status, type: enum, enum: status}
//	resources:
//	  - type: model
//	    model: user
//	    fields: [id, {name: status, display: enum}]
//	    filters:
//	      - {type: enum, name: status}
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest is wrapped by every validation failure
var ErrInvalidManifest = errors.New("invalid manifest")

// Resource types
const (
	TypeLink     = "link"
	TypeModel    = "model"
	TypeDropdown = "dropdown"
)

// Manifest is the decoded file
type Manifest struct {
	Enums     map[string][]EnumMember `yaml:"enums"`
	Models    []ModelSpec             `yaml:"models"`
	Resources []ResourceSpec          `yaml:"resources"`
}

// EnumMember is one (name, value) pair of an enum
type EnumMember struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// ModelSpec describes a table
type ModelSpec struct {
	Name          string       `yaml:"name"`
	Table         string       `yaml:"table"`
	Label         string       `yaml:"label"`
	DisplayColumn string       `yaml:"display_column"`
	Columns       []ColumnSpec `yaml:"columns"`
}

// ColumnSpec describes a column; Type takes the names schema.ParseFieldType knows
type ColumnSpec struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"`
	PrimaryKey  bool        `yaml:"primary_key"`
	Auto        bool        `yaml:"auto"`
	Nullable    bool        `yaml:"nullable"`
	Default     interface{} `yaml:"default"`
	MaxLength   int         `yaml:"max_length"`
	Description string      `yaml:"description"`

	Enum string `yaml:"enum"`

	Related           string `yaml:"related"`
	Through           string `yaml:"through"`
	ThroughKey        string `yaml:"through_key"`
	ThroughRelatedKey string `yaml:"through_related_key"`
}

// ResourceSpec is a navigation entry: a link, a model or a dropdown
type ResourceSpec struct {
	Type   string `yaml:"type"`
	Label  string `yaml:"label"`
	Icon   string `yaml:"icon"`
	URL    string `yaml:"url"`
	Target string `yaml:"target"`

	Model        string       `yaml:"model"`
	PageSize     int          `yaml:"page_size"`
	PagePreTitle string       `yaml:"page_pre_title"`
	PageTitle    string       `yaml:"page_title"`
	Fields       []FieldSpec  `yaml:"fields"`
	Filters      []FilterSpec `yaml:"filters"`

	Resources []ResourceSpec `yaml:"resources"`
}

// FieldSpec picks a column and optionally its widgets. A bare string is
// shorthand for a field with only a name.
type FieldSpec struct {
	Name    string `yaml:"name"`
	Label   string `yaml:"label"`
	Display string `yaml:"display"`
	Input   string `yaml:"input"`

	// Format is the strftime pattern of datetime and date displays
	Format string `yaml:"format"`
	// Width and Height size image displays
	Width  string `yaml:"width"`
	Height string `yaml:"height"`
}

// UnmarshalYAML accepts "name" as well as a mapping
func (f *FieldSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.Name = node.Value
		return nil
	}
	type plain FieldSpec
	return node.Decode((*plain)(f))
}

// FilterSpec describes a list filter
type FilterSpec struct {
	Type        string `yaml:"type"`
	Name        string `yaml:"name"`
	Label       string `yaml:"label"`
	Placeholder string `yaml:"placeholder"`
	Required    bool   `yaml:"required"`

	// Mode is the lookup of search filters, e.g. icontains
	Mode string `yaml:"mode"`
	// Format is the strftime pattern of datetime and date filters
	Format string `yaml:"format"`
	// Enum overrides the enum of the filtered column
	Enum string `yaml:"enum"`
	// Related overrides the related model of fk filters
	Related string `yaml:"related"`
	// Options are the choices of select filters
	Options []EnumMember `yaml:"options"`
}

// Load reads and decodes the manifest at path
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest held in memory
func Parse(data []byte) (*Manifest, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one manifest document; unknown keys are rejected
func Decode(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return &m, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return &m, nil
}

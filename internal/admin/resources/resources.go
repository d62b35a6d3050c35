// Package resources describes the admin navigation: links, dropdowns and the
// model resources that carry fields, filters and actions for one model.
package resources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/displays"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/inputs"
	"github.com/conduit-lang/conduit-admin/internal/enums"
)

var (
	// ErrInvalidResource is returned for navigation entries that are not a Link, Model or Dropdown
	ErrInvalidResource = errors.New("invalid resource")

	// ErrNoSuchField is returned when a field names no column of its model
	ErrNoSuchField = errors.New("no such field")
)

// Base holds what every navigation entry shows
type Base struct {
	Label string
	Icon  string
}

// Resource returns the label and icon of the entry
func (b Base) Resource() Base {
	return b
}

// Resource is a navigation entry
type Resource interface {
	Resource() Base
}

// Link points at any URL
type Link struct {
	Base
	URL    string
	Target string
}

// NewLink returns a link opened in the same window
func NewLink(label, icon, url string) *Link {
	return &Link{Base: Base{Label: label, Icon: icon}, URL: url, Target: "_self"}
}

// Dropdown groups resources under one menu entry
type Dropdown struct {
	Base
	Resources []Resource
}

// NewDropdown returns a dropdown over children
func NewDropdown(label, icon string, children ...Resource) *Dropdown {
	return &Dropdown{Base: Base{Label: label, Icon: icon}, Resources: children}
}

var titler = cases.Title(language.English)

// Titleize turns a column name into a label: "created_at" becomes "Created At"
func Titleize(name string) string {
	return titler.String(strings.Join(strings.Fields(strings.ReplaceAll(name, "_", " ")), " "))
}

// ComputeFunc derives a value from the whole row
type ComputeFunc func(ctx context.Context, r *http.Request, row map[string]interface{}) (interface{}, error)

// Field binds a column (or a computed value) to its display and input widgets.
// A nil Display or Input is chosen from the column type by Model.Init.
type Field struct {
	Name    string
	Label   string
	Display widgets.Widget
	Input   inputs.Input
	// Compute makes the field read-only and derived from the row
	Compute ComputeFunc
}

// NewField returns a text field labelled after name
func NewField(name string) *Field {
	label := Titleize(name)
	return &Field{
		Name:    name,
		Label:   label,
		Display: displays.NewDisplay(),
		Input:   inputs.NewInput(inputs.Options{Name: name, Label: label}),
	}
}

// NewComputeField returns a display-only field; a nil compute reads row[name]
func NewComputeField(name string, compute ComputeFunc) *Field {
	if compute == nil {
		compute = func(_ context.Context, _ *http.Request, row map[string]interface{}) (interface{}, error) {
			return row[name], nil
		}
	}
	return &Field{
		Name:    name,
		Label:   Titleize(name),
		Display: displays.NewDisplay(),
		Compute: compute,
	}
}

// Computed reports whether the field has no backing column
func (f *Field) Computed() bool {
	return f.Compute != nil
}

// Value returns the field value for row
func (f *Field) Value(ctx context.Context, r *http.Request, row map[string]interface{}) (interface{}, error) {
	if f.Compute != nil {
		return f.Compute(ctx, r, row)
	}
	return row[f.Name], nil
}

// Action is an operation offered on each row or on selected rows
type Action struct {
	Name   string
	Label  string
	Icon   string
	Method enums.Method
	Ajax   bool
}

// NewAction returns an ajax POST action
func NewAction(name, label, icon string) Action {
	return Action{Name: name, Label: label, Icon: icon, Method: enums.POST, Ajax: true}
}

// ToolbarAction is an operation shown above the list
type ToolbarAction struct {
	Action
	Class string
}

// NewToolbarAction returns an ajax POST toolbar action styled with class
func NewToolbarAction(name, label, icon, class string) ToolbarAction {
	return ToolbarAction{Action: NewAction(name, label, icon), Class: class}
}

// NavItem is a classified navigation entry ready for the page chrome
type NavItem struct {
	Type     string
	Label    string
	Icon     string
	URL      string
	Target   string
	Model    string
	Children []NavItem
}

// Navigation classifies resources into nav items; model entries link to
// their list page under adminPath
func Navigation(adminPath string, resources []Resource) ([]NavItem, error) {
	items := make([]NavItem, 0, len(resources))
	for _, res := range resources {
		item, err := navItem(adminPath, res)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func navItem(adminPath string, res Resource) (NavItem, error) {
	switch v := res.(type) {
	case *Link:
		target := v.Target
		if target == "" {
			target = "_self"
		}
		return NavItem{Type: "link", Label: v.Label, Icon: v.Icon, URL: v.URL, Target: target}, nil
	case *Model:
		if v.Schema == nil {
			return NavItem{}, fmt.Errorf("%w: model resource %q has no model", ErrInvalidResource, v.Label)
		}
		return NavItem{
			Type:  "model",
			Label: v.DisplayLabel(),
			Icon:  v.Icon,
			URL:   strings.TrimSuffix(adminPath, "/") + "/" + v.Schema.Name + "/list",
			Model: v.Schema.Name,
		}, nil
	case *Dropdown:
		children, err := Navigation(adminPath, v.Resources)
		if err != nil {
			return NavItem{}, err
		}
		return NavItem{Type: "dropdown", Label: v.Label, Icon: v.Icon, Children: children}, nil
	}
	return NavItem{}, fmt.Errorf("%w: %T", ErrInvalidResource, res)
}

// Models returns every model resource in resources, dropdowns included
func Models(resources []Resource) []*Model {
	var out []*Model
	for _, res := range resources {
		switch v := res.(type) {
		case *Model:
			out = append(out, v)
		case *Dropdown:
			out = append(out, Models(v.Resources)...)
		}
	}
	return out
}

// Package displays renders read-only cell and detail values
package displays

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lestrrat-go/strftime"
	"github.com/spf13/cast"

	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/enums"
)

const (
	DefaultDatetimeFormat = "%Y-%m-%d %H:%M:%S"
	DefaultDateFormat     = "%Y-%m-%d"
)

// Display renders the value as escaped text
type Display struct {
	widgets.Base
}

// NewDisplay returns the plain text display
func NewDisplay() *Display {
	return &Display{}
}

// DatetimeDisplay formats times with a strftime pattern
type DatetimeDisplay struct {
	widgets.Base
	Format string
}

// NewDatetimeDisplay uses DefaultDatetimeFormat when format is empty
func NewDatetimeDisplay(format string) *DatetimeDisplay {
	if format == "" {
		format = DefaultDatetimeFormat
	}
	return &DatetimeDisplay{Format: format}
}

func (d *DatetimeDisplay) Render(r *http.Request, value interface{}) (string, error) {
	return formatTime(d.Format, value)
}

// DateDisplay formats dates with a strftime pattern
type DateDisplay struct {
	widgets.Base
	Format string
}

// NewDateDisplay uses DefaultDateFormat when format is empty
func NewDateDisplay(format string) *DateDisplay {
	if format == "" {
		format = DefaultDateFormat
	}
	return &DateDisplay{Format: format}
}

func (d *DateDisplay) Render(r *http.Request, value interface{}) (string, error) {
	return formatTime(d.Format, value)
}

func formatTime(pattern string, value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}
	if s, ok := value.(string); ok && s == "" {
		return "", nil
	}
	t, err := cast.ToTimeE(value)
	if err != nil {
		return "", fmt.Errorf("format %v: %w", value, err)
	}
	return strftime.Format(pattern, t)
}

// InputOnly marks a field that is edited but never displayed
type InputOnly struct {
	Display
}

// NewInputOnly returns the marker display
func NewInputOnly() *InputOnly {
	return &InputOnly{}
}

// Boolean renders a check or cross icon
type Boolean struct {
	widgets.Base
}

// NewBoolean returns the boolean display
func NewBoolean() *Boolean {
	return &Boolean{Base: widgets.NewBase("widgets/displays/boolean.html", nil)}
}

func (b *Boolean) Render(r *http.Request, value interface{}) (string, error) {
	if value == nil {
		return b.Base.Render(r, nil)
	}
	return b.Base.Render(r, cast.ToBool(value))
}

// Image renders an <img> with optional dimensions
type Image struct {
	widgets.Base
}

// NewImage returns the image display; empty sizes are left to the browser
func NewImage(width, height string) *Image {
	return &Image{Base: widgets.NewBase("widgets/displays/image.html", map[string]interface{}{
		"width":  width,
		"height": height,
	})}
}

// Json renders a highlighted JSON document
type Json struct {
	widgets.Base
}

// NewJson returns the JSON display
func NewJson() *Json {
	return &Json{Base: widgets.NewBase("widgets/displays/json.html", nil)}
}

func (j *Json) Render(r *http.Request, value interface{}) (string, error) {
	doc, err := jsonText(value)
	if err != nil {
		return "", err
	}
	return j.Base.Render(r, doc)
}

func jsonText(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "null", nil
	case string:
		if json.Valid([]byte(v)) {
			var buf bytes.Buffer
			if err := json.Indent(&buf, []byte(v), "", "    "); err != nil {
				return "", err
			}
			return buf.String(), nil
		}
	case []byte:
		return jsonText(string(v))
	}
	b, err := json.MarshalIndent(value, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(b), nil
}

// EnumDisplay renders the member name of an enum value
type EnumDisplay struct {
	widgets.Base
	Enum *enums.Enum
}

// NewEnumDisplay binds the display to e
func NewEnumDisplay(e *enums.Enum) *EnumDisplay {
	return &EnumDisplay{Enum: e}
}

func (d *EnumDisplay) Render(r *http.Request, value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}
	if m, err := d.Enum.Lookup(value); err == nil {
		return d.Base.Render(r, m.Name)
	}
	return d.Base.Render(r, value)
}

// Color renders a swatch next to the hex code
type Color struct {
	widgets.Base
}

// NewColor returns the color display
func NewColor() *Color {
	return &Color{Base: widgets.NewBase("widgets/displays/color.html", nil)}
}

func (c *Color) Render(r *http.Request, value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}
	return c.Base.Render(r, value)
}

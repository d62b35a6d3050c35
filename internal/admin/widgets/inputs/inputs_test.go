package inputs

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/conduit-admin/internal/admin/upload"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/enums"
)

func newRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "/admin/user/create", nil)
}

func testEnum() *enums.Enum {
	return enums.New("test", "OPTION1", "1", "OPTION2", "2")
}

func TestInputRender(t *testing.T) {
	in := NewInput(Options{Name: "title", Label: "Title"})
	out, err := in.Render(newRequest(), "test")
	require.NoError(t, err)
	assert.Contains(t, out, `value="test"`)
	assert.Contains(t, out, `name="title"`)
	assert.Contains(t, out, "required")
}

func TestInputRenderUsesDefault(t *testing.T) {
	in := NewText(Options{Name: "title", Default: "fallback", Null: true})
	out, err := in.Render(newRequest(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, `value="fallback"`)
	assert.NotContains(t, out, "required")
}

func TestInputRenderEscapes(t *testing.T) {
	out, err := NewText(Options{Name: "title"}).Render(newRequest(), `"><script>`)
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestBind(t *testing.T) {
	in := NewText(Options{})
	in.Bind("created_at", "Created At")
	assert.Equal(t, "created_at", in.Name())

	named := NewText(Options{Name: "keep", Label: "Keep"})
	named.Bind("other", "Other")
	assert.Equal(t, "keep", named.Name())
	assert.Equal(t, "Keep", named.Get("label"))
}

func TestParseValueNullable(t *testing.T) {
	v, err := NewText(Options{Name: "a", Null: true}).ParseValue(newRequest(), "")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = NewText(Options{Name: "a"}).ParseValue(newRequest(), "")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestNumber(t *testing.T) {
	n := NewNumber(Options{Name: "age"})
	out, err := n.Render(newRequest(), 123)
	require.NoError(t, err)
	assert.Contains(t, out, `type="number"`)
	assert.Contains(t, out, `value="123"`)

	v, err := n.ParseValue(newRequest(), "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = n.ParseValue(newRequest(), "4.5")
	require.NoError(t, err)
	assert.Equal(t, 4.5, v)

	_, err = n.ParseValue(newRequest(), "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidValue))

	var ve *widgets.ValueError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "age", ve.Field)
}

func TestEmail(t *testing.T) {
	e := NewEmail(Options{Name: "email"})
	v, err := e.ParseValue(newRequest(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", v)

	_, err = e.ParseValue(newRequest(), "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestPasswordAndColor(t *testing.T) {
	out, err := NewPassword(Options{Name: "password"}).Render(newRequest(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, `type="password"`)

	hash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
	out, err = NewPassword(Options{Name: "password", Default: "secret"}).Render(newRequest(), hash)
	require.NoError(t, err)
	assert.NotContains(t, out, hash)
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, `value=""`)
	assert.NotContains(t, out, "required")

	out, err = NewColor(Options{Name: "color"}).Render(newRequest(), "#FFFFFF")
	require.NoError(t, err)
	assert.Contains(t, out, "#FFFFFF")
}

func TestEditorSanitizes(t *testing.T) {
	v, err := NewEditor(Options{Name: "body"}).ParseValue(newRequest(), `<p>hi</p><script>alert(1)</script>`)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", v)
}

func TestJson(t *testing.T) {
	j := NewJson(Options{Name: "extra"})
	out, err := j.Render(newRequest(), map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.Contains(t, out, "&quot;a&quot;:1")

	v, err := j.ParseValue(newRequest(), "")
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	_, err = j.ParseValue(newRequest(), "{broken")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestDateTime(t *testing.T) {
	d := NewDateTime(Options{Name: "created_at"})
	out, err := d.Render(newRequest(), time.Date(2021, 1, 1, 8, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, out, "2021-01-01 08:30:00")

	v, err := d.ParseValue(newRequest(), "2021-01-01 08:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 1, 8, 30, 0, 0, time.UTC), v)

	_, err = d.ParseValue(newRequest(), "yesterday")
	assert.ErrorIs(t, err, ErrInvalidValue)

	out, err = NewDate(Options{Name: "birthday"}).Render(newRequest(), time.Date(2021, 1, 1, 8, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, out, `value="2021-01-01"`)
}

func TestSwitch(t *testing.T) {
	s := NewSwitch(Options{Name: "is_active"})
	out, err := s.Render(newRequest(), "on")
	require.NoError(t, err)
	assert.Contains(t, out, "checked")

	out, err = s.Render(newRequest(), false)
	require.NoError(t, err)
	assert.NotContains(t, out, "checked")

	v, err := s.ParseValue(newRequest(), "on")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = s.ParseValue(newRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestSelect(t *testing.T) {
	s := NewSelect(Options{Name: "kind"}, widgets.StaticOptions(
		widgets.Option{Label: "option1", Value: 1},
		widgets.Option{Label: "option2", Value: 2},
	))
	out, err := s.Render(newRequest(), 2)
	require.NoError(t, err)
	assert.Contains(t, out, "option1")
	assert.Contains(t, out, `<option value="2" selected>option2</option>`)
}

func TestSelectNullPrependsEmpty(t *testing.T) {
	s := NewSelect(Options{Name: "kind", Null: true}, widgets.StaticOptions(widgets.Option{Label: "a", Value: "a"}))
	options, err := s.Options(context.Background())
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, widgets.Option{Label: "", Value: ""}, options[0])
}

func TestSelectOptionsError(t *testing.T) {
	boom := errors.New("boom")
	s := NewSelect(Options{Name: "kind"}, func(context.Context) ([]widgets.Option, error) { return nil, boom })
	_, err := s.Render(newRequest(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestForeignKey(t *testing.T) {
	fk := NewForeignKey(Options{Name: "category_id"}, "category", widgets.StaticOptions(
		widgets.Option{Label: "Books", Value: int64(1)},
	))
	assert.Equal(t, "category", fk.Related)
	out, err := fk.Render(newRequest(), int64(1))
	require.NoError(t, err)
	assert.Contains(t, out, "Books")
	assert.Contains(t, out, "selected")
}

func TestManyToMany(t *testing.T) {
	m := NewManyToMany(Options{Name: "tags"}, "tag", widgets.StaticOptions(
		widgets.Option{Label: "go", Value: 1},
		widgets.Option{Label: "sql", Value: 2},
		widgets.Option{Label: "web", Value: 3},
	))
	out, err := m.Render(newRequest(), []interface{}{1, 3})
	require.NoError(t, err)
	assert.Contains(t, out, "multiple")
	assert.Contains(t, out, `<option value="1" selected>go</option>`)
	assert.Contains(t, out, `<option value="2">sql</option>`)

	v, err := m.ParseValue(newRequest(), []string{"1,2", " 3 "})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, v)

	v, err = m.ParseValue(newRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, v)
	assert.True(t, m.MultiValue())
}

func TestEnum(t *testing.T) {
	e := NewEnum(Options{Name: "status"}, testEnum())
	out, err := e.Render(newRequest(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "OPTION1")
	assert.Contains(t, out, "OPTION2")

	out, err = e.Render(newRequest(), enums.Member{Name: "OPTION2", Value: "2"})
	require.NoError(t, err)
	assert.Contains(t, out, `<option value="2" selected>OPTION2</option>`)

	v, err := e.ParseValue(newRequest(), 1)
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	_, err = e.ParseValue(newRequest(), "9")
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.ErrorIs(t, err, enums.ErrUnknownMember)
}

func TestRadio(t *testing.T) {
	r := NewRadio(Options{Name: "size"},
		widgets.Option{Label: "Small", Value: "s"},
		widgets.Option{Label: "Large", Value: "l"},
	)
	out, err := r.Render(newRequest(), "l")
	require.NoError(t, err)
	assert.Contains(t, out, `type="radio"`)
	assert.Contains(t, out, "Small")
	assert.Contains(t, out, `value="l" checked`)
}

func TestRadioEnum(t *testing.T) {
	r := NewRadioEnum(Options{Name: "status"}, testEnum())
	out, err := r.Render(newRequest(), "1")
	require.NoError(t, err)
	assert.Contains(t, out, "OPTION1")
	assert.Contains(t, out, `value="1" checked`)

	v, err := r.ParseValue(newRequest(), "2")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestDisplayOnly(t *testing.T) {
	d := NewDisplayOnly(Options{Name: "id"})
	assert.True(t, d.ReadOnly())
	out, err := d.Render(newRequest(), 7)
	require.NoError(t, err)
	assert.Contains(t, out, "disabled")
}

func multipartHeader(t *testing.T, field, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/", &body)
	r.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, r.ParseMultipartForm(1<<20))
	return r.MultipartForm.File[field][0]
}

func TestFileUploads(t *testing.T) {
	u := upload.New(t.TempDir())
	f := NewFile(Options{Name: "avatar"}, u)
	assert.True(t, f.FileInput())

	v, err := f.ParseValue(newRequest(), multipartHeader(t, "avatar", "a.png", []byte("png")))
	require.NoError(t, err)
	assert.Equal(t, "/static/uploads/a.png", v)

	v, err = f.ParseValue(newRequest(), nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestImageRendersPreview(t *testing.T) {
	out, err := NewImage(Options{Name: "avatar"}, upload.New(t.TempDir())).Render(newRequest(), "/static/uploads/a.png")
	require.NoError(t, err)
	assert.Contains(t, out, "/static/uploads/a.png")
}

package resources

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/conduit-admin/internal/admin/upload"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/displays"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/filters"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/inputs"
	"github.com/conduit-lang/conduit-admin/internal/enums"
	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
)

func userSchema() *schema.ModelSchema {
	m := schema.NewModelSchema("user", "users")
	m.AddColumn(&schema.Column{Name: "id", Type: schema.TypeInt, PrimaryKey: true, Auto: true})
	m.AddColumn(&schema.Column{Name: "name", Type: schema.TypeString})
	m.AddColumn(&schema.Column{Name: "email", Type: schema.TypeEmail, Nullable: true})
	m.AddColumn(&schema.Column{Name: "age", Type: schema.TypeInt})
	m.AddColumn(&schema.Column{Name: "is_active", Type: schema.TypeBool})
	m.AddColumn(&schema.Column{Name: "status", Type: schema.TypeEnum, Enum: enums.New("status", "ACTIVE", "1", "BANNED", "2")})
	m.AddColumn(&schema.Column{Name: "password", Type: schema.TypePassword})
	m.AddColumn(&schema.Column{Name: "group_id", Type: schema.TypeForeignKey, Related: "group"})
	m.AddColumn(&schema.Column{
		Name: "tags", Type: schema.TypeManyToMany, Related: "tag",
		Through: "user_tags", ThroughKey: "user_id", ThroughRelatedKey: "tag_id",
	})
	m.AddColumn(&schema.Column{Name: "avatar", Type: schema.TypeImage, Nullable: true})
	m.AddColumn(&schema.Column{Name: "created_at", Type: schema.TypeTimestamp, Auto: true})
	return m
}

func initOptions(t *testing.T) InitOptions {
	return InitOptions{
		Related: func(model string) widgets.OptionsFunc {
			return widgets.StaticOptions(
				widgets.Option{Label: model + " one", Value: 1},
				widgets.Option{Label: model + " two", Value: 2},
			)
		},
		Upload: upload.New(t.TempDir()),
	}
}

func formRequest(values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/admin/user/create", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestTitleize(t *testing.T) {
	assert.Equal(t, "Test", Titleize("test"))
	assert.Equal(t, "Created At", Titleize("created_at"))
	assert.Equal(t, "Group Id", Titleize("group_id"))
}

func TestLink(t *testing.T) {
	link := NewLink("Docs", "fas fa-book", "https://example.com")
	assert.Equal(t, "_self", link.Target)
	assert.Equal(t, Base{Label: "Docs", Icon: "fas fa-book"}, link.Resource())
}

func TestField(t *testing.T) {
	f := NewField("test")
	assert.Equal(t, "test", f.Name)
	assert.Equal(t, "Test", f.Label)
	assert.IsType(t, &displays.Display{}, f.Display)
	assert.IsType(t, &inputs.Base{}, f.Input)
	assert.False(t, f.Computed())
}

func TestComputeField(t *testing.T) {
	f := NewComputeField("test", nil)
	assert.True(t, f.Computed())
	v, err := f.Value(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil), map[string]interface{}{"test": "value"})
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	full := NewComputeField("full", func(_ context.Context, _ *http.Request, row map[string]interface{}) (interface{}, error) {
		return row["first"].(string) + " " + row["last"].(string), nil
	})
	v, err = full.Value(context.Background(), nil, map[string]interface{}{"first": "Ada", "last": "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", v)
}

func TestAction(t *testing.T) {
	a := NewAction("test", "Test", "test")
	assert.Equal(t, "test", a.Icon)
	assert.Equal(t, "Test", a.Label)
	assert.Equal(t, "test", a.Name)
	assert.Equal(t, enums.POST, a.Method)
	assert.True(t, a.Ajax)

	ta := NewToolbarAction("test", "Test", "test", "")
	assert.Equal(t, "", ta.Class)
	assert.Equal(t, enums.POST, ta.Method)
}

func TestModelDefaults(t *testing.T) {
	m := NewModel(userSchema(), "")
	require.NoError(t, m.Init(initOptions(t)))
	assert.Equal(t, 10, m.PageSize)
	assert.Equal(t, "User", m.PageTitle)
	assert.Len(t, m.Fields, 11)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	toolbar := m.ToolbarActions(r)
	require.Len(t, toolbar, 1)
	assert.Equal(t, "create", toolbar[0].Name)
	assert.Equal(t, enums.GET, toolbar[0].Method)
	assert.False(t, toolbar[0].Ajax)
	assert.Equal(t, "btn-dark", toolbar[0].Class)

	actions := m.Actions(r)
	require.Len(t, actions, 2)
	assert.Equal(t, enums.GET, actions[0].Method)
	assert.Equal(t, enums.DELETE, actions[1].Method)
	assert.Equal(t, enums.DELETE, m.BulkActions(r)[0].Method)
}

func TestInitPicksWidgets(t *testing.T) {
	m := NewModel(userSchema(), "")
	require.NoError(t, m.Init(initOptions(t)))

	byName := map[string]*Field{}
	for _, f := range m.Fields {
		byName[f.Name] = f
	}
	assert.IsType(t, &inputs.DisplayOnly{}, byName["id"].Input)
	assert.IsType(t, &inputs.Text{}, byName["name"].Input)
	assert.IsType(t, &inputs.Email{}, byName["email"].Input)
	assert.IsType(t, &inputs.Number{}, byName["age"].Input)
	assert.IsType(t, &displays.Boolean{}, byName["is_active"].Display)
	assert.IsType(t, &inputs.Switch{}, byName["is_active"].Input)
	assert.IsType(t, &displays.EnumDisplay{}, byName["status"].Display)
	assert.IsType(t, &inputs.RadioEnum{}, byName["status"].Input)
	assert.IsType(t, &displays.InputOnly{}, byName["password"].Display)
	assert.IsType(t, &inputs.Password{}, byName["password"].Input)
	assert.IsType(t, &inputs.ForeignKey{}, byName["group_id"].Input)
	assert.IsType(t, &inputs.ManyToMany{}, byName["tags"].Input)
	assert.IsType(t, &inputs.File{}, byName["avatar"].Input)
	assert.IsType(t, &displays.DatetimeDisplay{}, byName["created_at"].Display)
	assert.IsType(t, &inputs.DisplayOnly{}, byName["created_at"].Input)
	assert.Equal(t, "Created At", byName["created_at"].Label)
}

func TestInitKeepsConfiguredWidgets(t *testing.T) {
	custom := inputs.NewTextArea(inputs.Options{})
	m := &Model{Schema: userSchema(), Fields: []*Field{
		{Name: "name", Input: custom},
		NewComputeField("summary", nil),
	}}
	require.NoError(t, m.Init(initOptions(t)))
	assert.Same(t, custom, m.Fields[0].Input)
	assert.Equal(t, "name", custom.Name())
	assert.Nil(t, m.Fields[1].Input)
}

func TestInitUnknownField(t *testing.T) {
	m := &Model{Schema: userSchema(), Fields: Names("id", "nickname")}
	err := m.Init(initOptions(t))
	assert.ErrorIs(t, err, ErrNoSuchField)
}

func TestInitValidatesFilters(t *testing.T) {
	m := &Model{Schema: userSchema(), Fields: Names("id"), Filters: []filters.Filter{
		filters.NewBoolean(filters.Options{Name: "is_active"}),
	}}
	require.NoError(t, m.Init(initOptions(t)))

	m = &Model{Schema: userSchema(), Fields: Names("id"), Filters: []filters.Filter{
		filters.NewBoolean(filters.Options{Name: "banned"}),
	}}
	assert.ErrorIs(t, m.Init(initOptions(t)), ErrNoSuchField)

	search, err := filters.NewSearch(filters.Options{Name: "tags"}, "icontains")
	require.NoError(t, err)
	m = &Model{Schema: userSchema(), Fields: Names("id"), Filters: []filters.Filter{search}}
	assert.ErrorIs(t, m.Init(initOptions(t)), ErrInvalidResource)
}

func TestInitRelationNeedsOptions(t *testing.T) {
	m := &Model{Schema: userSchema(), Fields: Names("group_id")}
	assert.Error(t, m.Init(InitOptions{}))
}

func TestNavigation(t *testing.T) {
	model := NewModel(userSchema(), "fas fa-user")
	items, err := Navigation("/admin", []Resource{
		&Link{Base: Base{Label: "Home"}, URL: "/"},
		NewDropdown("Content", "fas fa-bars", model),
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, NavItem{Type: "link", Label: "Home", URL: "/", Target: "_self"}, items[0])
	assert.Equal(t, "dropdown", items[1].Type)
	require.Len(t, items[1].Children, 1)
	assert.Equal(t, NavItem{Type: "model", Label: "User", Icon: "fas fa-user", URL: "/admin/user/list", Model: "user"}, items[1].Children[0])

	assert.Equal(t, []*Model{model}, Models([]Resource{NewDropdown("Content", "", model)}))
}

type bogus struct{ Base }

func TestNavigationRejectsUnknownResource(t *testing.T) {
	_, err := Navigation("/admin", []Resource{&bogus{}})
	assert.ErrorIs(t, err, ErrInvalidResource)

	_, err = Navigation("/admin", []Resource{NewDropdown("x", "", &Model{})})
	assert.ErrorIs(t, err, ErrInvalidResource)
}

func TestResolveQueryParams(t *testing.T) {
	search, err := filters.NewSearch(filters.Options{Name: "name"}, "icontains")
	require.NoError(t, err)
	m := &Model{Schema: userSchema(), Filters: []filters.Filter{
		search,
		filters.NewBoolean(filters.Options{Name: "is_active"}),
	}}

	r := httptest.NewRequest(http.MethodGet, "/admin/user/list?name__icontains=bo&is_active=true", nil)
	parsed, q, err := m.ResolveQueryParams(r, r.URL.Query(), query.New(m.Schema, nil, query.Postgres))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name__icontains": "bo", "is_active": true}, parsed)

	sql, args, err := q.CountSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM users WHERE name ILIKE $1 ESCAPE '\\' AND is_active = $2", sql)
	assert.Equal(t, []interface{}{"%bo%", true}, args)

	rendered, err := m.RenderFilters(r, parsed)
	require.NoError(t, err)
	require.Len(t, rendered, 2)
	assert.Contains(t, rendered[0], `value="bo"`)
}

func TestResolveQueryParamsInvalid(t *testing.T) {
	m := &Model{Schema: userSchema(), Filters: []filters.Filter{filters.NewBoolean(filters.Options{Name: "is_active"})}}
	r := httptest.NewRequest(http.MethodGet, "/admin/user/list?is_active=perhaps", nil)
	_, _, err := m.ResolveQueryParams(r, r.URL.Query(), query.New(m.Schema, nil, query.Postgres))
	assert.ErrorIs(t, err, filters.ErrInvalidValue)
}

func TestResolveData(t *testing.T) {
	m := NewModel(userSchema(), "")
	require.NoError(t, m.Init(initOptions(t)))

	r := formRequest(url.Values{
		"name":      {"bob"},
		"email":     {""},
		"age":       {"42"},
		"is_active": {"on"},
		"status":    {"2"},
		"password":  {"secret"},
		"group_id":  {"1"},
		"tags":      {"1", "2"},
	})
	data, err := m.ResolveData(r, true)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name":      "bob",
		"email":     nil,
		"age":       int64(42),
		"is_active": true,
		"status":    "2",
		"password":  "secret",
		"group_id":  "1",
		"tags":      []string{"1", "2"},
	}, data)
}

func TestResolveDataUpdateKeepsPasswordAndFile(t *testing.T) {
	m := NewModel(userSchema(), "")
	require.NoError(t, m.Init(initOptions(t)))

	r := formRequest(url.Values{"name": {"bob"}, "age": {"1"}, "status": {"1"}, "group_id": {"2"}})
	data, err := m.ResolveData(r, false)
	require.NoError(t, err)
	assert.NotContains(t, data, "password")
	assert.NotContains(t, data, "avatar")
	assert.NotContains(t, data, "id")
	assert.Equal(t, false, data["is_active"])
}

func TestResolveDataInvalid(t *testing.T) {
	m := &Model{Schema: userSchema(), Fields: Names("age")}
	require.NoError(t, m.Init(initOptions(t)))

	_, err := m.ResolveData(formRequest(url.Values{"age": {"old"}}), true)
	assert.ErrorIs(t, err, inputs.ErrInvalidValue)
}

func TestResolveDataUpload(t *testing.T) {
	m := &Model{Schema: userSchema(), Fields: Names("avatar")}
	require.NoError(t, m.Init(initOptions(t)))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/admin/user/create", &body)
	r.Header.Set("Content-Type", w.FormDataContentType())
	data, err := m.ResolveData(r, true)
	require.NoError(t, err)
	assert.Equal(t, "/static/uploads/me.png", data["avatar"])
}

func TestPreSave(t *testing.T) {
	m := &Model{Schema: userSchema(), Fields: Names("name")}
	m.PreSave = func(_ *http.Request, data map[string]interface{}, creating bool) error {
		if data["name"] == "root" {
			return errors.New("reserved")
		}
		data["name"] = strings.ToUpper(data["name"].(string))
		return nil
	}
	require.NoError(t, m.Init(initOptions(t)))

	data, err := m.ResolveData(formRequest(url.Values{"name": {"bob"}}), true)
	require.NoError(t, err)
	assert.Equal(t, "BOB", data["name"])

	_, err = m.ResolveData(formRequest(url.Values{"name": {"root"}}), true)
	assert.EqualError(t, err, "reserved")
}

func TestRenderValues(t *testing.T) {
	m := &Model{Schema: userSchema(), Fields: []*Field{NewField("test")}}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	rows, err := m.RenderValues(r, []map[string]interface{}{{"test": "value", "id": 3}}, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].PK)
	assert.Equal(t, []Cell{{Field: "test", Label: "Test", HTML: "value"}}, rows[0].Cells)
}

func TestRenderValuesAttributesAndHiddenFields(t *testing.T) {
	m := NewModel(userSchema(), "")
	m.Fields = Names("id", "name", "password")
	m.RowAttributesFunc = func(_ *http.Request, row map[string]interface{}) map[string]string {
		return map[string]string{"class": "row-" + row["name"].(string)}
	}
	m.CellAttributesFunc = func(_ *http.Request, _ map[string]interface{}, f *Field) map[string]string {
		return map[string]string{"data-field": f.Name}
	}
	require.NoError(t, m.Init(initOptions(t)))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	rows, err := m.RenderValues(r, []map[string]interface{}{{"id": 1, "name": "<b>bob</b>", "password": "hash"}}, true)
	require.NoError(t, err)
	require.Len(t, rows[0].Cells, 2)
	assert.Equal(t, "&lt;b&gt;bob&lt;/b&gt;", rows[0].Cells[1].HTML)
	assert.Equal(t, map[string]string{"class": "row-<b>bob</b>"}, rows[0].Attributes)
	assert.Equal(t, map[string]string{"data-field": "name"}, rows[0].Cells[1].Attributes)

	assert.Len(t, m.Columns(r), 2)
	assert.Len(t, m.FormFields(true), 2)
	assert.Len(t, m.FormFields(false), 3)
}

package filters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/enums"
	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
)

func newRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "/admin/user/list", nil)
}

func userModel() *schema.ModelSchema {
	m := schema.NewModelSchema("user", "users")
	m.AddColumn(&schema.Column{Name: "id", Type: schema.TypeInt, PrimaryKey: true})
	m.AddColumn(&schema.Column{Name: "name", Type: schema.TypeString})
	m.AddColumn(&schema.Column{Name: "is_active", Type: schema.TypeBool})
	m.AddColumn(&schema.Column{Name: "status", Type: schema.TypeInt})
	m.AddColumn(&schema.Column{Name: "created_at", Type: schema.TypeTimestamp})
	return m
}

func newQuery() *query.QueryBuilder {
	return query.New(userModel(), nil, query.Postgres)
}

func TestSearchModes(t *testing.T) {
	s, err := NewSearch(Options{Name: "test", Label: "Test"}, "contains")
	require.NoError(t, err)
	assert.Equal(t, "contains", s.Get("search_mode"))
	assert.Equal(t, "test__contains", s.Name())
	assert.Equal(t, "test", s.Field())

	s, err = NewSearch(Options{Name: "test", Label: "Test"}, "equal")
	require.NoError(t, err)
	assert.Equal(t, "test", s.Name())

	s, err = NewSearch(Options{Name: "test"}, "")
	require.NoError(t, err)
	assert.Equal(t, "equal", s.SearchMode())

	_, err = NewSearch(Options{Name: "test"}, "regex")
	assert.Error(t, err)
}

func TestSearchApply(t *testing.T) {
	s, err := NewSearch(Options{Name: "name"}, "icontains")
	require.NoError(t, err)

	v, err := s.ParseValue(newRequest(), "bob")
	require.NoError(t, err)
	sql, args, err := s.Apply(newQuery(), v).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name, is_active, status, created_at FROM users WHERE name ILIKE $1 ESCAPE '\\'", sql)
	assert.Equal(t, []interface{}{"%bob%"}, args)

	out, err := s.Render(newRequest(), "bob")
	require.NoError(t, err)
	assert.Contains(t, out, `name="name__icontains"`)
	assert.Contains(t, out, `value="bob"`)
}

func TestDatetimeParseValue(t *testing.T) {
	d := NewDatetime(Options{Name: "test", Label: "Test"}, "")
	assert.Equal(t, "test__range", d.Name())

	v, err := d.ParseValue(newRequest(), "2021-01-01 00:00:00 - 2021-01-02 00:00:00")
	require.NoError(t, err)
	assert.Equal(t, [2]time.Time{
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC),
	}, v)

	_, err = d.ParseValue(newRequest(), "2021-01-01")
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = d.ParseValue(newRequest(), "soon - later")
	var ve *ValueError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "test__range", ve.Field)
}

func TestDatetimeRenderAndApply(t *testing.T) {
	d := NewDatetime(Options{Name: "created_at"}, "")
	rng := [2]time.Time{
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 2, 12, 0, 0, 0, time.UTC),
	}
	out, err := d.Render(newRequest(), rng)
	require.NoError(t, err)
	assert.Contains(t, out, `value="2021-01-01 00:00:00 - 2021-01-02 12:00:00"`)

	sql, args, err := d.Apply(newQuery(), rng).ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE created_at BETWEEN $1 AND $2")
	assert.Equal(t, []interface{}{rng[0], rng[1]}, args)
}

func TestDateInit(t *testing.T) {
	d := NewDate(Options{Name: "test", Label: "Test"}, "")
	assert.Equal(t, true, d.Get("date"))
	assert.Equal(t, DefaultDateFormat, d.Get("format"))

	out, err := d.Render(newRequest(), [2]time.Time{
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, out, `value="2021-01-01 - 2021-01-02"`)
	assert.Contains(t, out, `data-date-only="true"`)
}

func TestSelectGetOptions(t *testing.T) {
	s := NewSelect(Options{Name: "test", Label: "Test", Required: true}, widgets.StaticOptions(
		widgets.Option{Label: "option1", Value: 1},
		widgets.Option{Label: "option2", Value: 2},
	))
	options, err := s.Options(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []widgets.Option{{Label: "option1", Value: 1}, {Label: "option2", Value: 2}}, options)

	optional := NewSelect(Options{Name: "test"}, widgets.StaticOptions(widgets.Option{Label: "option1", Value: 1}))
	options, err = optional.Options(context.Background())
	require.NoError(t, err)
	assert.Equal(t, widgets.Option{Label: "", Value: ""}, options[0])

	out, err := optional.Render(newRequest(), 1)
	require.NoError(t, err)
	assert.Contains(t, out, `<option value="1" selected>option1</option>`)
}

func TestEnumParseValue(t *testing.T) {
	e := NewEnum(Options{Name: "status", Label: "Status"}, enums.New("test", "OPTION1", "1", "OPTION2", "2"))

	v, err := e.ParseValue(newRequest(), "1")
	require.NoError(t, err)
	assert.Equal(t, enums.Member{Name: "OPTION1", Value: "1"}, v)

	_, err = e.ParseValue(newRequest(), "3")
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.ErrorIs(t, err, enums.ErrUnknownMember)

	sql, args, err := e.Apply(newQuery(), v).ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE status = $1")
	assert.Equal(t, []interface{}{"1"}, args)

	out, err := e.Render(newRequest(), v)
	require.NoError(t, err)
	assert.Contains(t, out, `<option value="1" selected>OPTION1</option>`)
	assert.Contains(t, out, "OPTION2")
}

func TestBoolean(t *testing.T) {
	b := NewBoolean(Options{Name: "is_active", Label: "Active"})
	options, err := b.Options(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []widgets.Option{
		{Label: "", Value: ""},
		{Label: "TRUE", Value: "true"},
		{Label: "FALSE", Value: "false"},
	}, options)

	v, err := b.ParseValue(newRequest(), "true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = b.ParseValue(newRequest(), "maybe")
	assert.ErrorIs(t, err, ErrInvalidValue)

	sql, args, err := b.Apply(newQuery(), false).ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE is_active = $1")
	assert.Equal(t, []interface{}{false}, args)

	out, err := b.Render(newRequest(), true)
	require.NoError(t, err)
	assert.Contains(t, out, `<option value="true" selected>TRUE</option>`)
}

func TestDistinctColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT name FROM users ORDER BY name ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("alice").AddRow("bob"))

	d := NewDistinctColumn(Options{Name: "name"}, func() *query.QueryBuilder {
		return query.New(userModel(), db, query.Postgres)
	})
	options, err := d.Options(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []widgets.Option{
		{Label: "", Value: ""},
		{Label: "alice", Value: "alice"},
		{Label: "bob", Value: "bob"},
	}, options)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForeignKey(t *testing.T) {
	fk := NewForeignKey(Options{Name: "group_id", Required: true}, "group", widgets.StaticOptions(
		widgets.Option{Label: "Admins", Value: int64(1)},
	))
	assert.Equal(t, "group", fk.Related)
	out, err := fk.Render(newRequest(), "1")
	require.NoError(t, err)
	assert.Contains(t, out, `<option value="1" selected>Admins</option>`)
}

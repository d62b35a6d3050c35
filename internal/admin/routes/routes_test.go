package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/conduit-admin/internal/admin/depends"
	"github.com/conduit-lang/conduit-admin/internal/admin/i18n"
	"github.com/conduit-lang/conduit-admin/internal/admin/models"
	"github.com/conduit-lang/conduit-admin/internal/admin/resources"
	"github.com/conduit-lang/conduit-admin/internal/admin/template"
	"github.com/conduit-lang/conduit-admin/internal/admin/upload"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/filters"
	"github.com/conduit-lang/conduit-admin/internal/orm/crud"
	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
	"github.com/conduit-lang/conduit-admin/internal/web/cache"
	webcontext "github.com/conduit-lang/conduit-admin/internal/web/context"
	"github.com/conduit-lang/conduit-admin/internal/web/router"
)

var userColumns = []string{"id", "name", "is_active"}

type fixture struct {
	handler http.Handler
	mock    sqlmock.Sqlmock
	app     *depends.Application
}

func userSchema() *schema.ModelSchema {
	m := schema.NewModelSchema("user", "users")
	m.AddColumn(&schema.Column{Name: "id", Type: schema.TypeInt, PrimaryKey: true, Auto: true})
	m.AddColumn(&schema.Column{Name: "name", Type: schema.TypeString})
	m.AddColumn(&schema.Column{Name: "is_active", Type: schema.TypeBool})
	return m
}

func newFixture(t *testing.T, signedIn bool) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := userSchema()
	registry := schema.NewRegistry()
	require.NoError(t, registry.Register(m))

	up := upload.New(t.TempDir(), upload.WithAllowExtensions("png"))
	res := resources.NewModel(m, "fas fa-user")
	res.Filters = []filters.Filter{filters.NewBoolean(filters.Options{Name: "is_active"})}
	require.NoError(t, res.Init(resources.InitOptions{Upload: up}))

	tr, err := i18n.New()
	require.NoError(t, err)

	app := &depends.Application{
		Path:       "/admin",
		Title:      "Admin",
		Registry:   registry,
		Resources:  []resources.Resource{res},
		Models:     map[string]*resources.Model{"user": res},
		Operations: map[string]*crud.Operations{"user": crud.NewOperations(m, db, query.Postgres)},
		Cache:      cache.NewMemoryCache(),
		Translator: tr,
		Upload:     up,
		Engine:     template.New(),
	}

	r := router.NewRouter()
	r.Use(depends.Attach(app))
	if signedIn {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				admin := &models.Admin{ID: 1, Username: "admin"}
				next.ServeHTTP(w, req.WithContext(webcontext.SetCurrentAdmin(req.Context(), admin)))
			})
		})
	}
	r.Route("/admin", Register)
	return &fixture{handler: r, mock: mock, app: app}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestIndexRequiresAdmin(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Oops… You are unauthorized")
}

func TestIndex(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/admin/user/list")
	assert.Contains(t, rec.Body.String(), "admin")
}

func TestList(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, is_active FROM users ORDER BY id DESC LIMIT $1 OFFSET $2")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(7), "alice", true))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/user/list", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "alice")
	assert.Contains(t, body, "Total 1 items")
	assert.Contains(t, body, "/admin/user/update/7")
	assert.Contains(t, body, `name="is_active"`)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestListFilteredAndPaged(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE is_active = $1")).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(45))
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, is_active FROM users WHERE is_active = $1 ORDER BY id DESC LIMIT $2 OFFSET $3")).
		WithArgs(false, 20, 20).
		WillReturnRows(sqlmock.NewRows(userColumns))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/user/list?is_active=false&page=2&page_size=20", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "2 / 3")
	assert.Contains(t, body, "page=1")
	assert.Contains(t, body, "page=3")
	assert.Contains(t, body, `href="/admin/user/export?is_active=false"`)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestListPageBeyondLast(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(45))
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, is_active FROM users ORDER BY id DESC LIMIT $1 OFFSET $2")).
		WithArgs(20, 40).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(5), "eve", true))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/user/list?page=4611686018427387904&page_size=20", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "eve")
	assert.Contains(t, body, "3 / 3")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestListInvalidFilter(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/user/list?is_active=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUnknownResource(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/ghost/list", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Oops… You just found an error page")
}

func TestCreateView(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/user/create", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="name"`)
	assert.Contains(t, body, `action="/admin/user/create"`)
	assert.NotContains(t, body, `name="id"`)
}

func TestCreate(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (name, is_active) VALUES ($1, $2) RETURNING id, name, is_active")).
		WithArgs("bob", true).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(3), "bob", true))
	f.mock.ExpectCommit()

	rec := f.do(postForm("/admin/user/create", url.Values{"name": {"bob"}, "is_active": {"on"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/user/update/3", rec.Header().Get("Location"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateAndReturn(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(3), "bob", false))
	f.mock.ExpectCommit()

	rec := f.do(postForm("/admin/user/create", url.Values{"name": {"bob"}, "save_and_return": {"1"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/user/list", rec.Header().Get("Location"))
}

func TestCreateUniqueViolation(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO users").WillReturnError(errors.New("UNIQUE constraint failed: users.name"))
	f.mock.ExpectRollback()

	rec := f.do(postForm("/admin/user/create", url.Values{"name": {"bob"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Save failed")
	assert.Contains(t, rec.Body.String(), `value="bob"`)
}

func TestUpdateViewNotFound(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, is_active FROM users WHERE id = $1 LIMIT $2")).
		WithArgs(int64(9), 1).
		WillReturnRows(sqlmock.NewRows(userColumns))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/user/update/9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateViewBadPK(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/user/update/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, is_active FROM users WHERE id = $1 LIMIT $2")).
		WithArgs(int64(7), 1).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(7), "alice", true))
	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name = $1, is_active = $2 WHERE id = $3")).
		WithArgs("alicia", false, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	rec := f.do(postForm("/admin/user/update/7", url.Values{"name": {"alicia"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/user/update/7", rec.Header().Get("Location"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDetail(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, is_active FROM users WHERE id = $1 LIMIT $2")).
		WithArgs(int64(7), 1).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(7), "alice", true))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/user/detail/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "alice")
	assert.Contains(t, body, "Is Active")
	assert.Contains(t, body, "bg-green-lt")
}

func TestDelete(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id IN ($1)")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/admin/user/delete/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
}

func TestDeleteMissing(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id IN ($1)")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectCommit()

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/admin/user/delete/7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkDelete(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id IN ($1, $2)")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	f.mock.ExpectCommit()

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/admin/user/delete?ids=1,2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["deleted"])

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/admin/user/delete?ids=", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func uploadRequest(t *testing.T, filename string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("content"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(uploadRequest(t, "a.png"))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body["url"], "/static/uploads/"))
	assert.True(t, strings.HasSuffix(body["url"], ".png"))

	rec = f.do(uploadRequest(t, "a.exe"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPageSizes(t *testing.T) {
	assert.Equal(t, []int{10, 20, 50, 100}, pageSizes(10))
	assert.Equal(t, []int{10, 20, 30, 50, 100}, pageSizes(30))
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs(userSchema(), "1, 2,,3")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, ids)

	_, err = parseIDs(userSchema(), "1,x")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	batch := ExportBatchSize
	ExportBatchSize = 2
	t.Cleanup(func() { ExportBatchSize = batch })

	f := newFixture(t, true)
	sql := regexp.QuoteMeta("SELECT id, name, is_active FROM users ORDER BY id ASC LIMIT $1 OFFSET $2")
	f.mock.ExpectQuery(sql).WithArgs(2, 0).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(1), "alice", true).AddRow(int64(2), "Smith, Bob", false))
	f.mock.ExpectQuery(sql).WithArgs(2, 2).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(3), "carol", true))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/user/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=user.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Id,Name,Is Active\n1,alice,true\n2,\"Smith, Bob\",false\n3,carol,true\n", rec.Body.String())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestExportFiltered(t *testing.T) {
	f := newFixture(t, true)
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, is_active FROM users WHERE is_active = $1 ORDER BY id ASC LIMIT $2 OFFSET $3")).
		WithArgs(true, ExportBatchSize, 0).
		WillReturnRows(sqlmock.NewRows(userColumns))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/user/export?is_active=true&page=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Id,Name,Is Active\n", rec.Body.String())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestExportErrors(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/user/export", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f = newFixture(t, true)
	rec = f.do(httptest.NewRequest(http.MethodGet, "/admin/user/export?is_active=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))
	rec = f.do(httptest.NewRequest(http.MethodGet, "/admin/user/export", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestExportURL(t *testing.T) {
	f := newFixture(t, true)
	res := &depends.ModelResource{Model: f.app.Models["user"]}
	assert.Equal(t, "/admin/user/export", exportURL(f.app, res, url.Values{"page": {"2"}}))
	assert.Equal(t, "/admin/user/export?is_active=true", exportURL(f.app, res, url.Values{"is_active": {"true"}, "page_size": {"50"}}))
}

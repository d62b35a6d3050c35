package manifest

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/conduit-admin/internal/admin/models"
	"github.com/conduit-lang/conduit-admin/internal/admin/resources"
	"github.com/conduit-lang/conduit-admin/internal/admin/upload"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/displays"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/filters"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets/inputs"
	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
)

func related(model string) widgets.OptionsFunc {
	return widgets.StaticOptions(widgets.Option{Label: model + " 1", Value: "1"})
}

func buildShop(t *testing.T) (*Result, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m, err := Load(filepath.Join("testdata", "shop.yml"))
	require.NoError(t, err)
	res, err := m.Build(BuildOptions{DB: db, Dialect: query.Postgres, Related: related})
	require.NoError(t, err)
	return res, mock
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yml"))
	assert.Error(t, err)
}

func TestParseFieldShorthand(t *testing.T) {
	m, err := Parse([]byte(`
resources:
  - type: model
    model: user
    fields: [id, {name: name, label: Full Name}]
`))
	require.NoError(t, err)
	want := []FieldSpec{{Name: "id"}, {Name: "name", Label: "Full Name"}}
	if diff := cmp.Diff(want, m.Resources[0].Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("models:\n  - name: user\n    tabel: users\n"))
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestParseEmpty(t *testing.T) {
	m, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, m.Models)
}

func TestBuildModels(t *testing.T) {
	res, _ := buildShop(t)

	assert.Equal(t, []string{"category", "product", "tag"}, res.Registry.List())

	product, ok := res.Registry.Get("product")
	require.True(t, ok)
	assert.Equal(t, "products", product.Table)
	assert.Equal(t, "Products", product.Label)
	assert.Len(t, product.Columns, 11)

	status, ok := product.Column("status")
	require.True(t, ok)
	assert.Equal(t, schema.TypeEnum, status.Type)
	assert.Same(t, res.Enums["status"], status.Enum)
	assert.Equal(t, "1", status.Default)

	tags, ok := product.Column("tags")
	require.True(t, ok)
	assert.Equal(t, schema.TypeManyToMany, tags.Type)
	assert.Equal(t, "product_tags", tags.Through)

	tag, ok := res.Registry.Get("tag")
	require.True(t, ok)
	assert.Equal(t, "tags", tag.Table)

	category, _ := res.Registry.Get("category")
	assert.Equal(t, "name", category.LabelColumn())
}

func TestBuildResources(t *testing.T) {
	res, _ := buildShop(t)
	require.Len(t, res.Resources, 3)

	link, ok := res.Resources[0].(*resources.Link)
	require.True(t, ok)
	assert.Equal(t, "/admin", link.URL)

	product, ok := res.Resources[1].(*resources.Model)
	require.True(t, ok)
	assert.Equal(t, 20, product.PageSize)
	assert.Equal(t, "catalog", product.PagePreTitle)
	require.Len(t, product.Fields, 10)

	assert.Nil(t, product.Fields[0].Display)
	assert.IsType(t, &displays.EnumDisplay{}, product.Fields[2].Display)
	assert.IsType(t, &inputs.RadioEnum{}, product.Fields[3].Input)
	assert.IsType(t, &inputs.Editor{}, product.Fields[4].Input)
	assert.Equal(t, "Created", product.Fields[9].Label)
	dt, ok := product.Fields[9].Display.(*displays.DatetimeDisplay)
	require.True(t, ok)
	assert.Equal(t, "%Y/%m/%d", dt.Format)

	var names []string
	for _, f := range product.Filters {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"name__icontains", "status", "kind", "is_active", "created_at", "city", "category_id"}, names)
	assert.IsType(t, &filters.ForeignKey{}, product.Filters[6])

	dropdown, ok := res.Resources[2].(*resources.Dropdown)
	require.True(t, ok)
	require.Len(t, dropdown.Resources, 3)
	docs := dropdown.Resources[2].(*resources.Link)
	assert.Equal(t, "_blank", docs.Target)

	nav, err := resources.Navigation("/admin", res.Resources)
	require.NoError(t, err)
	assert.Equal(t, "/admin/product/list", nav[1].URL)
	assert.Equal(t, "Taxonomy", nav[2].Label)
}

func TestBuiltModelsInit(t *testing.T) {
	res, _ := buildShop(t)
	opts := resources.InitOptions{Related: related, Upload: upload.New(t.TempDir())}
	for _, m := range resources.Models(res.Resources) {
		require.NoError(t, m.Init(opts), m.Name())
	}

	product := res.Resources[1].(*resources.Model)
	assert.IsType(t, &displays.DatetimeDisplay{}, product.Fields[9].Display)
	assert.IsType(t, &inputs.ManyToMany{}, product.Fields[7].Input)
	assert.Equal(t, "Category Id", product.Fields[6].Label)
}

func TestDistinctFilterQueriesColumn(t *testing.T) {
	res, mock := buildShop(t)
	product := res.Resources[1].(*resources.Model)
	city, ok := product.Filters[5].(*filters.DistinctColumn)
	require.True(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT city FROM products ORDER BY city ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"city"}).AddRow("Paris").AddRow("Rome"))

	options, err := city.Options(context.Background())
	require.NoError(t, err)
	var labels []string
	for _, o := range options {
		labels = append(labels, o.Label)
	}
	assert.Contains(t, labels, "Paris")
	assert.Contains(t, labels, "Rome")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildErrors(t *testing.T) {
	cases := map[string]string{
		"unknown type": `
models:
  - name: user
    columns: [{name: id, type: blob}]`,
		"unknown enum": `
models:
  - name: user
    columns: [{name: status, type: enum, enum: missing}]`,
		"empty enum": `
enums:
  status: []`,
		"dangling relation": `
models:
  - name: user
    columns: [{name: group_id, type: fk, related: group}]`,
		"unknown model": `
resources:
  - {type: model, model: ghost}`,
		"unknown resource type": `
resources:
  - {type: banner}`,
		"link without url": `
resources:
  - {type: link, label: Home}`,
		"unknown display": `
models:
  - name: user
    columns: [{name: id, type: int, primary_key: true}]
resources:
  - {type: model, model: user, fields: [{name: id, display: sparkle}]}`,
		"unknown filter": `
models:
  - name: user
    columns: [{name: id, type: int, primary_key: true}]
resources:
  - {type: model, model: user, filters: [{type: slider, name: id}]}`,
		"bad search mode": `
models:
  - name: user
    columns: [{name: name, type: string}]
resources:
  - {type: model, model: user, filters: [{type: search, name: name, mode: fuzzy}]}`,
		"enum filter without enum": `
models:
  - name: user
    columns: [{name: name, type: string}]
resources:
  - {type: model, model: user, filters: [{type: enum, name: name}]}`,
		"distinct without db": `
models:
  - name: user
    columns: [{name: name, type: string}]
resources:
  - {type: model, model: user, filters: [{type: distinct, name: name}]}`,
		"filter on m2m column": `
models:
  - name: tag
    columns: [{name: id, type: int, primary_key: true}]
  - name: post
    columns:
      - {name: id, type: int, primary_key: true}
      - {name: tags, type: m2m, related: tag, through: post_tags, through_key: post_id, through_related_key: tag_id}
resources:
  - {type: model, model: post, filters: [{type: search, name: tags}]}`,
		"bad display column": `
models:
  - name: user
    display_column: title
    columns: [{name: name, type: string}]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			m, err := Parse([]byte(doc))
			require.NoError(t, err)
			_, err = m.Build(BuildOptions{})
			assert.ErrorIs(t, err, ErrInvalidManifest)
		})
	}
}

func TestBuildUnknownField(t *testing.T) {
	m, err := Parse([]byte(`
models:
  - name: user
    columns: [{name: id, type: int, primary_key: true}]
resources:
  - {type: model, model: user, filters: [{type: boolean, name: active}]}
`))
	require.NoError(t, err)
	_, err = m.Build(BuildOptions{})
	assert.ErrorIs(t, err, resources.ErrNoSuchField)
}

func TestExampleManifestBuilds(t *testing.T) {
	m, err := Load(filepath.Join("..", "..", "..", "admin.example.yml"))
	require.NoError(t, err)

	registry := schema.NewRegistry()
	require.NoError(t, registry.Register(models.AdminSchema()))
	res, err := m.Build(BuildOptions{Registry: registry, Related: related})
	require.NoError(t, err)

	assert.Equal(t, []string{"admin", "category", "config", "product"}, registry.List())
	nav, err := resources.Navigation("/admin", res.Resources)
	require.NoError(t, err)
	require.Len(t, nav, 5)
	assert.Len(t, nav[2].Children, 2)
}

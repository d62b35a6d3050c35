package routes

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cast"

	"github.com/conduit-lang/conduit-admin/internal/admin/depends"
	"github.com/conduit-lang/conduit-admin/internal/admin/template"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/orm/crud"
	"github.com/conduit-lang/conduit-admin/internal/web/response"
	"github.com/conduit-lang/conduit-admin/internal/web/router"
)

// resolve loads what every resource handler needs, answering the error itself
func resolve(w http.ResponseWriter, r *http.Request) (*depends.Application, *depends.ModelResource, bool) {
	if _, err := depends.CurrentAdmin(r); err != nil {
		depends.Fail(w, r, err)
		return nil, nil, false
	}
	app, err := depends.App(r)
	if err != nil {
		depends.Fail(w, r, err)
		return nil, nil, false
	}
	res, err := depends.Resource(r)
	if err != nil {
		depends.Fail(w, r, err)
		return nil, nil, false
	}
	return app, res, true
}

func pageContext(res *depends.ModelResource, extra template.Context) template.Context {
	ctx := template.Context{
		"model":           res,
		"page_title":      res.PageTitle,
		"page_pre_title":  res.PagePreTitle,
		"toolbar_actions": res.ToolbarActions,
		"actions":         res.Actions,
		"bulk_actions":    res.BulkActions,
	}
	for k, v := range extra {
		ctx[k] = v
	}
	return ctx
}

// List renders one page of a resource, filtered by the query string
func List(w http.ResponseWriter, r *http.Request) {
	app, res, ok := resolve(w, r)
	if !ok {
		return
	}
	values := r.URL.Query()

	pageSize := cast.ToInt(values.Get("page_size"))
	if pageSize <= 0 {
		pageSize = res.PageSize
	}
	page := cast.ToInt(values.Get("page"))
	if page < 1 {
		page = 1
	}

	parsed, q, err := res.ResolveQueryParams(r, values, res.Ops.Query())
	if err != nil {
		depends.Fail(w, r, badRequest(err))
		return
	}
	total, err := q.Clone().Count(r.Context())
	if err != nil {
		depends.Fail(w, r, err)
		return
	}
	totalPages := total / pageSize
	if total%pageSize != 0 || totalPages < 1 {
		totalPages++
	}
	if page > totalPages {
		page = totalPages
	}
	rows, err := q.OrderBy(res.Schema.PrimaryKey().Name, "DESC").Paginate(page, pageSize).All(r.Context())
	if err != nil {
		depends.Fail(w, r, crud.ConvertDBError(err))
		return
	}

	rendered, err := res.RenderValues(r, rows, true)
	if err != nil {
		depends.Fail(w, r, err)
		return
	}
	filterHTML, err := res.RenderFilters(r, parsed)
	if err != nil {
		depends.Fail(w, r, err)
		return
	}

	ctx := pageContext(res, template.Context{
		"export_url":  exportURL(app, res, values),
		"columns":     res.Columns(r),
		"rows":        rendered,
		"filters":     filterHTML,
		"total":       total,
		"page_num":    page,
		"page_size":   pageSize,
		"page_sizes":  pageSizes(res.PageSize),
		"total_pages": totalPages,
	})
	if page > 1 {
		ctx["prev_url"] = template.CurrentPageWithParams(r, map[string]string{"page": strconv.Itoa(page - 1)})
	}
	if page < totalPages {
		ctx["next_url"] = template.CurrentPageWithParams(r, map[string]string{"page": strconv.Itoa(page + 1)})
	}
	depends.Render(w, r, http.StatusOK, "list.html", ctx)
}

// exportURL keeps the filters of the list but not its paging
func exportURL(app *depends.Application, res *depends.ModelResource, values url.Values) string {
	q := url.Values{}
	for k, v := range values {
		if k != "page" && k != "page_size" {
			q[k] = v
		}
	}
	u := resourceURL(app, res.Name(), "/export")
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func pageSizes(configured int) []int {
	for _, s := range PageSizes {
		if s == configured {
			return PageSizes
		}
	}
	out := append([]int{configured}, PageSizes...)
	for i := 1; i < len(out) && out[i] < out[i-1]; i++ {
		out[i], out[i-1] = out[i-1], out[i]
	}
	return out
}

func badRequest(err error) error {
	if errors.Is(err, widgets.ErrInvalidValue) {
		return response.Wrap(http.StatusBadRequest, err)
	}
	return err
}

// renderForm renders the create or update form with values keyed by field name
func renderForm(w http.ResponseWriter, r *http.Request, res *depends.ModelResource, status int, tpl, action string, pk interface{}, values map[string]interface{}, formErr string) {
	fields := res.FormFields(pk == nil)
	html := make([]string, 0, len(fields))
	for _, f := range fields {
		var v interface{}
		if values != nil {
			v = values[f.Name]
		}
		out, err := f.Input.Render(r, v)
		if err != nil {
			depends.Fail(w, r, err)
			return
		}
		html = append(html, out)
	}
	depends.Render(w, r, status, tpl, pageContext(res, template.Context{
		"inputs":     html,
		"action_url": action,
		"pk":         pk,
		"error":      formErr,
	}))
}

// CreateView renders the empty create form
func CreateView(w http.ResponseWriter, r *http.Request) {
	app, res, ok := resolve(w, r)
	if !ok {
		return
	}
	renderForm(w, r, res, http.StatusOK, "create.html", resourceURL(app, res.Name(), "/create"), nil, nil, "")
}

// Create saves a new record
func Create(w http.ResponseWriter, r *http.Request) {
	app, res, ok := resolve(w, r)
	if !ok {
		return
	}
	data, err := res.ResolveData(r, true)
	var row map[string]interface{}
	if err == nil {
		row, err = res.Ops.Create(r.Context(), data)
	}
	if err != nil {
		status, shown := formError(err)
		if !shown {
			depends.Fail(w, r, err)
			return
		}
		renderForm(w, r, res, status, "create.html", resourceURL(app, res.Name(), "/create"), nil, data, depends.T(r, "save_failed", err.Error()))
		return
	}

	if r.PostForm.Get("save_and_return") != "" {
		depends.Redirect(w, r, resourceURL(app, res.Name(), "/list"))
		return
	}
	pk := cast.ToString(row[res.Schema.PrimaryKey().Name])
	depends.Redirect(w, r, resourceURL(app, res.Name(), "/update/"+pk))
}

func loadRow(w http.ResponseWriter, r *http.Request, res *depends.ModelResource) (interface{}, map[string]interface{}, bool) {
	pk, err := parsePK(res.Schema, router.Param(r, "pk"))
	if err != nil {
		depends.Fail(w, r, err)
		return nil, nil, false
	}
	row, err := res.Ops.Find(r.Context(), pk)
	if err != nil {
		if crud.IsNotFound(err) {
			err = response.Wrap(http.StatusNotFound, err)
		}
		depends.Fail(w, r, err)
		return nil, nil, false
	}
	return pk, row, true
}

// UpdateView renders the edit form of one record
func UpdateView(w http.ResponseWriter, r *http.Request) {
	app, res, ok := resolve(w, r)
	if !ok {
		return
	}
	pk, row, ok := loadRow(w, r, res)
	if !ok {
		return
	}
	action := resourceURL(app, res.Name(), "/update/"+cast.ToString(pk))
	renderForm(w, r, res, http.StatusOK, "update.html", action, pk, row, "")
}

// Update saves the edit form of one record
func Update(w http.ResponseWriter, r *http.Request) {
	app, res, ok := resolve(w, r)
	if !ok {
		return
	}
	pk, row, ok := loadRow(w, r, res)
	if !ok {
		return
	}
	action := resourceURL(app, res.Name(), "/update/"+cast.ToString(pk))

	data, err := res.ResolveData(r, false)
	if err == nil {
		err = res.Ops.Update(r.Context(), pk, data)
	}
	if err != nil {
		if crud.IsNotFound(err) {
			depends.Fail(w, r, response.Wrap(http.StatusNotFound, err))
			return
		}
		status, shown := formError(err)
		if !shown {
			depends.Fail(w, r, err)
			return
		}
		for k, v := range data {
			row[k] = v
		}
		renderForm(w, r, res, status, "update.html", action, pk, row, depends.T(r, "save_failed", err.Error()))
		return
	}

	if r.PostForm.Get("save_and_return") != "" {
		depends.Redirect(w, r, resourceURL(app, res.Name(), "/list"))
		return
	}
	depends.Redirect(w, r, action)
}

// Detail renders one record with its display widgets
func Detail(w http.ResponseWriter, r *http.Request) {
	_, res, ok := resolve(w, r)
	if !ok {
		return
	}
	pk, row, ok := loadRow(w, r, res)
	if !ok {
		return
	}
	rendered, err := res.RenderValues(r, []map[string]interface{}{row}, true)
	if err != nil {
		depends.Fail(w, r, err)
		return
	}
	depends.Render(w, r, http.StatusOK, "detail.html", pageContext(res, template.Context{
		"pk":  pk,
		"row": rendered[0],
	}))
}

// Delete removes one record
func Delete(w http.ResponseWriter, r *http.Request) {
	_, res, ok := resolve(w, r)
	if !ok {
		return
	}
	pk, err := parsePK(res.Schema, router.Param(r, "pk"))
	if err != nil {
		response.RenderError(w, err)
		return
	}
	if err := res.Ops.Delete(r.Context(), pk); err != nil {
		response.RenderError(w, deleteError(err))
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": 1})
}

// BulkDelete removes the records listed in ?ids=
func BulkDelete(w http.ResponseWriter, r *http.Request) {
	_, res, ok := resolve(w, r)
	if !ok {
		return
	}
	ids, err := parseIDs(res.Schema, r.URL.Query().Get("ids"))
	if err != nil {
		response.RenderError(w, err)
		return
	}
	if len(ids) == 0 {
		response.RenderError(w, response.NewHTTPError(http.StatusBadRequest, "no ids given"))
		return
	}
	n, err := res.Ops.DeleteMany(r.Context(), ids)
	if err != nil {
		response.RenderError(w, deleteError(err))
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": n})
}

func deleteError(err error) error {
	switch {
	case crud.IsNotFound(err):
		return response.Wrap(http.StatusNotFound, err)
	case crud.IsConstraintViolation(err):
		return response.Wrap(http.StatusConflict, err)
	}
	return err
}

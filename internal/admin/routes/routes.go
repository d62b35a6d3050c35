// Package routes serves the admin pages: dashboard, resource list, detail,
// create, update, delete and CSV export, plus the upload endpoint used by
// rich inputs
package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cast"

	"github.com/conduit-lang/conduit-admin/internal/admin/depends"
	"github.com/conduit-lang/conduit-admin/internal/admin/upload"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/orm/crud"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
	"github.com/conduit-lang/conduit-admin/internal/web/response"
	"github.com/conduit-lang/conduit-admin/internal/web/router"
)

// PageSizes are offered by the list page size selector
var PageSizes = []int{10, 20, 50, 100}

const maxUploadMemory = 32 << 20

// Register adds the dashboard, upload and resource routes
func Register(r *router.Router) {
	r.Get("/", Index).Named("index")
	r.Post("/upload", Upload).Named("upload")

	r.Route("/{"+depends.ResourceParam+"}", func(r *router.Router) {
		r.Get("/list", List).Named("list_view")
		r.Get("/export", Export).Named("export")
		r.Get("/create", CreateView).Named("create_view")
		r.Post("/create", Create).Named("create")
		r.Get("/update/{pk}", UpdateView).Named("update_view")
		r.Post("/update/{pk}", Update).Named("update")
		r.Get("/detail/{pk}", Detail).Named("detail_view")
		r.Delete("/delete/{pk}", Delete).Named("delete")
		r.Delete("/delete", BulkDelete).Named("bulk_delete")
	})
}

// Index renders the dashboard
func Index(w http.ResponseWriter, r *http.Request) {
	if _, err := depends.CurrentAdmin(r); err != nil {
		depends.Fail(w, r, err)
		return
	}
	depends.Render(w, r, http.StatusOK, "dashboard.html", nil)
}

// Upload stores the "file" part of a multipart form and answers with its URL
func Upload(w http.ResponseWriter, r *http.Request) {
	if _, err := depends.CurrentAdmin(r); err != nil {
		response.RenderError(w, err)
		return
	}
	app, err := depends.App(r)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	if app.Upload == nil {
		response.RenderError(w, response.Wrap(http.StatusNotFound, fmt.Errorf("uploads are not configured")))
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		response.RenderError(w, response.Wrap(http.StatusBadRequest, err))
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		response.RenderError(w, response.NewHTTPError(http.StatusBadRequest, "missing file"))
		return
	}

	url, err := app.Upload.Upload(r.Context(), files[0])
	if err != nil {
		response.RenderError(w, uploadError(err))
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]string{"url": url})
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, upload.ErrFileMaxSizeLimit):
		return response.Wrap(http.StatusRequestEntityTooLarge, err)
	case errors.Is(err, upload.ErrFileExtNotAllowed):
		return response.Wrap(http.StatusBadRequest, err)
	}
	return err
}

// formError classifies errors raised while saving a form. Invalid input and
// constraint violations are shown on the form; anything else fails the request.
func formError(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, widgets.ErrInvalidValue),
		errors.Is(err, upload.ErrFileExtNotAllowed),
		crud.IsConstraintViolation(err):
		return http.StatusBadRequest, true
	case errors.Is(err, upload.ErrFileMaxSizeLimit):
		return http.StatusRequestEntityTooLarge, true
	}
	return 0, false
}

// parsePK converts a path value to the type of the primary key
func parsePK(m *schema.ModelSchema, raw string) (interface{}, error) {
	if raw == "" {
		return nil, response.NewHTTPError(http.StatusNotFound, "missing primary key")
	}
	pk := m.PrimaryKey()
	if pk != nil && (pk.Type == schema.TypeInt || pk.Type == schema.TypeBigInt) {
		id, err := cast.ToInt64E(raw)
		if err != nil {
			return nil, response.Wrap(http.StatusNotFound, fmt.Errorf("invalid primary key %q", raw))
		}
		return id, nil
	}
	return raw, nil
}

// parseIDs splits a comma separated ?ids= value
func parseIDs(m *schema.ModelSchema, raw string) ([]interface{}, error) {
	ids := make([]interface{}, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := parsePK(m, part)
		if err != nil {
			return nil, response.Wrap(http.StatusBadRequest, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func resourceURL(app *depends.Application, resource, p string) string {
	return app.URL("/" + resource + p)
}

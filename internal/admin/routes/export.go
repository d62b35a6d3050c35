package routes

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/conduit-lang/conduit-admin/internal/admin/depends"
	"github.com/conduit-lang/conduit-admin/internal/admin/widgets"
	"github.com/conduit-lang/conduit-admin/internal/orm/crud"
	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/web/stream"
)

// ExportBatchSize is the number of rows fetched per query while exporting
var ExportBatchSize = 500

// Export streams every row matching the list filters as CSV, one column per
// display field
func Export(w http.ResponseWriter, r *http.Request) {
	app, res, ok := resolve(w, r)
	if !ok {
		return
	}
	_, q, err := res.ResolveQueryParams(r, r.URL.Query(), res.Ops.Query())
	if err != nil {
		depends.Fail(w, r, badRequest(err))
		return
	}
	q = q.OrderBy(res.Schema.PrimaryKey().Name, "ASC")

	// the first batch is read before any byte is written so failures still get an error page
	rows, err := exportBatch(r.Context(), q, 1)
	if err != nil {
		depends.Fail(w, r, err)
		return
	}
	out, err := stream.NewCSV(w, res.Name()+".csv")
	if err != nil {
		depends.Fail(w, r, err)
		return
	}

	fields := res.DisplayFields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Label
	}
	if err := out.Write(header); err != nil {
		logExportError(app, r, err)
		return
	}

	for page := 1; ; page++ {
		if page > 1 {
			if rows, err = exportBatch(r.Context(), q, page); err != nil {
				logExportError(app, r, err)
				break
			}
		}
		for _, row := range rows {
			record := make([]string, len(fields))
			for i, f := range fields {
				v, err := f.Value(r.Context(), r, row)
				if err != nil {
					logExportError(app, r, err)
					return
				}
				record[i] = widgets.Stringify(v)
			}
			if err := out.Write(record); err != nil {
				logExportError(app, r, err)
				return
			}
		}
		if len(rows) < ExportBatchSize {
			break
		}
	}
	if err := out.Flush(); err != nil {
		logExportError(app, r, err)
	}
}

func exportBatch(ctx context.Context, q *query.QueryBuilder, page int) ([]map[string]interface{}, error) {
	rows, err := q.Clone().Paginate(page, ExportBatchSize).All(ctx)
	if err != nil {
		return nil, crud.ConvertDBError(err)
	}
	return rows, nil
}

func logExportError(app *depends.Application, r *http.Request, err error) {
	if app.Logger != nil {
		app.Logger.Error("export failed", zap.Error(err), zap.String("path", r.URL.Path))
	}
}

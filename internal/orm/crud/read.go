package crud

import (
	"context"
	"fmt"
	"strings"

	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
)

// Find retrieves a record by its primary key. Many-to-many columns are
// loaded as lists of related primary keys.
func (o *Operations) Find(ctx context.Context, id interface{}) (map[string]interface{}, error) {
	pk := o.model.PrimaryKey().Name
	record, err := o.Query().Where(pk, query.OpEqual, id).First(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s %v: %w", o.model.Name, id, ConvertDBError(err))
	}

	for _, col := range o.model.Columns {
		if !col.IsVirtual() {
			continue
		}
		ids, err := o.RelatedIDs(ctx, col, id)
		if err != nil {
			return nil, err
		}
		record[col.Name] = ids
	}
	return record, nil
}

// FindBy retrieves a single record by a column value
func (o *Operations) FindBy(ctx context.Context, field string, value interface{}) (map[string]interface{}, error) {
	if _, ok := o.model.Column(field); !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrFieldNotFound, o.model.Name, field)
	}
	record, err := o.Query().Filter(field, value).First(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s by %s: %w", o.model.Name, field, ConvertDBError(err))
	}
	return record, nil
}

// RelatedIDs returns the related primary keys stored in the join table of an m2m column
func (o *Operations) RelatedIDs(ctx context.Context, col *schema.Column, id interface{}) ([]interface{}, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		col.ThroughRelatedKey, col.Through, col.ThroughKey, o.ph(1))

	rows, err := o.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", col.Name, ConvertDBError(err))
	}
	defer rows.Close()

	ids := make([]interface{}, 0)
	for rows.Next() {
		var v interface{}
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		ids = append(ids, v)
	}
	return ids, rows.Err()
}

// Options returns (label, pk) pairs of every row, ordered by pk. It backs
// relation selectors.
func (o *Operations) Options(ctx context.Context) ([][2]string, error) {
	pk := o.model.PrimaryKey().Name
	label := o.model.LabelColumn()

	cols := []string{pk}
	if label != pk {
		cols = append(cols, label)
	}
	rows, err := o.Query().Select(cols...).OrderBy(pk, "ASC").All(ctx)
	if err != nil {
		return nil, ConvertDBError(err)
	}

	out := make([][2]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, [2]string{fmt.Sprint(row[label]), fmt.Sprint(row[pk])})
	}
	return out, nil
}

func placeholders(o *Operations, start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = o.ph(start + i)
	}
	return strings.Join(parts, ", ")
}

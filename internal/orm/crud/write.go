package crud

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
)

// Create inserts a record and its m2m rows in one transaction and returns the stored row
func (o *Operations) Create(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	record, m2m, err := o.splitRecord(data)
	if err != nil {
		return nil, err
	}
	o.populateAutoFields(record, OperationCreate)

	var inserted map[string]interface{}
	err = withTx(ctx, o.db, func(tx *sql.Tx) error {
		row, err := o.insertRecord(ctx, tx, record)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", ConvertDBError(err))
		}
		pk := row[o.model.PrimaryKey().Name]
		for col, ids := range m2m {
			if err := o.setManyToMany(ctx, tx, col, pk, ids); err != nil {
				return err
			}
		}
		inserted = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// insertRecord runs INSERT ... RETURNING; postgres and sqlite (3.35+) both support it
func (o *Operations) insertRecord(ctx context.Context, tx *sql.Tx, record map[string]interface{}) (map[string]interface{}, error) {
	fields := o.orderedColumns(record)
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	values := make([]interface{}, len(fields))
	for i, f := range fields {
		values[i] = record[f]
	}

	returning := make([]string, 0)
	for _, col := range o.model.TableColumns() {
		returning = append(returning, col.Name)
	}

	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		o.model.Table,
		strings.Join(fields, ", "),
		placeholders(o, 1, len(fields)),
		strings.Join(returning, ", "),
	)

	rows, err := tx.QueryContext(ctx, q, values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := query.ScanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, sql.ErrNoRows
	}
	return results[0], nil
}

// Update writes the given columns of the record with primary key id and
// replaces the join rows of every m2m column present in data
func (o *Operations) Update(ctx context.Context, id interface{}, data map[string]interface{}) error {
	record, m2m, err := o.splitRecord(data)
	if err != nil {
		return err
	}
	pk := o.model.PrimaryKey().Name
	delete(record, pk)
	if len(record) > 0 {
		o.populateAutoFields(record, OperationUpdate)
	}

	return withTx(ctx, o.db, func(tx *sql.Tx) error {
		if len(record) > 0 {
			fields := o.orderedColumns(record)
			sets := make([]string, len(fields))
			values := make([]interface{}, 0, len(fields)+1)
			for i, f := range fields {
				sets[i] = fmt.Sprintf("%s = %s", f, o.ph(i+1))
				values = append(values, record[f])
			}
			values = append(values, id)

			q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
				o.model.Table, strings.Join(sets, ", "), pk, o.ph(len(fields)+1))

			res, err := tx.ExecContext(ctx, q, values...)
			if err != nil {
				return fmt.Errorf("failed to update record: %w", ConvertDBError(err))
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return ErrNotFound
			}
		}

		for col, ids := range m2m {
			if err := o.setManyToMany(ctx, tx, col, id, ids); err != nil {
				return err
			}
		}
		return nil
	})
}

// setManyToMany replaces the join rows of col for the record id
func (o *Operations) setManyToMany(ctx context.Context, tx *sql.Tx, col *schema.Column, id interface{}, ids []interface{}) error {
	del := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", col.Through, col.ThroughKey, o.ph(1))
	if _, err := tx.ExecContext(ctx, del, id); err != nil {
		return fmt.Errorf("failed to clear %s: %w", col.Name, ConvertDBError(err))
	}

	ins := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
		col.Through, col.ThroughKey, col.ThroughRelatedKey, o.ph(1), o.ph(2))
	for _, related := range ids {
		if _, err := tx.ExecContext(ctx, ins, id, related); err != nil {
			return fmt.Errorf("failed to add %s %v: %w", col.Name, related, ConvertDBError(err))
		}
	}
	return nil
}

// Delete removes the record with primary key id
func (o *Operations) Delete(ctx context.Context, id interface{}) error {
	n, err := o.DeleteMany(ctx, []interface{}{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes every record whose primary key is in ids, join rows first
func (o *Operations) DeleteMany(ctx context.Context, ids []interface{}) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	pk := o.model.PrimaryKey().Name
	in := placeholders(o, 1, len(ids))

	var affected int64
	err := withTx(ctx, o.db, func(tx *sql.Tx) error {
		for _, col := range o.model.Columns {
			if !col.IsVirtual() {
				continue
			}
			q := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", col.Through, col.ThroughKey, in)
			if _, err := tx.ExecContext(ctx, q, ids...); err != nil {
				return fmt.Errorf("failed to clear %s: %w", col.Name, ConvertDBError(err))
			}
		}

		q := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", o.model.Table, pk, in)
		res, err := tx.ExecContext(ctx, q, ids...)
		if err != nil {
			return fmt.Errorf("failed to delete records: %w", ConvertDBError(err))
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

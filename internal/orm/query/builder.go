// Package query builds and runs SELECT statements against a model table
package query

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// QueryBuilder provides a fluent API for building SQL queries
type QueryBuilder struct {
	model   *schema.ModelSchema
	db      Querier
	dialect Dialect

	columns    []string
	distinct   bool
	conditions []*Condition
	orderBy    []string
	limit      *int
	offset     *int

	// first invalid call; reported by ToSQL so chains stay fluent
	err error
}

// New creates a query builder for the given model
func New(model *schema.ModelSchema, db Querier, dialect Dialect) *QueryBuilder {
	return &QueryBuilder{
		model:      model,
		db:         db,
		dialect:    dialect,
		conditions: make([]*Condition, 0),
		orderBy:    make([]string, 0),
	}
}

// Model returns the model the builder targets
func (qb *QueryBuilder) Model() *schema.ModelSchema {
	return qb.model
}

// Dialect returns the SQL dialect in use
func (qb *QueryBuilder) Dialect() Dialect {
	return qb.dialect
}

func (qb *QueryBuilder) fail(err error) *QueryBuilder {
	if qb.err == nil {
		qb.err = err
	}
	return qb
}

func (qb *QueryBuilder) checkColumn(field string) bool {
	if qb.model == nil {
		return true
	}
	c, ok := qb.model.Column(field)
	if !ok {
		qb.fail(fmt.Errorf("field %s does not exist on model %s", field, qb.model.Name))
		return false
	}
	if c.IsVirtual() {
		qb.fail(fmt.Errorf("field %s of model %s has no table column", field, qb.model.Name))
		return false
	}
	return true
}

// Select restricts the selected columns
func (qb *QueryBuilder) Select(columns ...string) *QueryBuilder {
	for _, c := range columns {
		if qb.checkColumn(c) {
			qb.columns = append(qb.columns, c)
		}
	}
	return qb
}

// Distinct turns the query into SELECT DISTINCT
func (qb *QueryBuilder) Distinct() *QueryBuilder {
	qb.distinct = true
	return qb
}

// Where adds a WHERE condition to the query
func (qb *QueryBuilder) Where(field string, op Operator, value interface{}) *QueryBuilder {
	if !qb.checkColumn(field) {
		return qb
	}
	qb.conditions = append(qb.conditions, &Condition{
		Field:    field,
		Operator: op,
		Value:    value,
	})
	return qb
}

// Filter adds a condition expressed as a lookup key, e.g. "name__icontains"
func (qb *QueryBuilder) Filter(key string, value interface{}) *QueryBuilder {
	field, lookup := SplitLookup(key)
	if !qb.checkColumn(field) {
		return qb
	}
	cond, err := lookupCondition(field, lookup, value)
	if err != nil {
		return qb.fail(err)
	}
	qb.conditions = append(qb.conditions, cond)
	return qb
}

// WhereIn adds a WHERE IN condition
func (qb *QueryBuilder) WhereIn(field string, values []interface{}) *QueryBuilder {
	return qb.Where(field, OpIn, values)
}

// OrderBy adds an ORDER BY clause
func (qb *QueryBuilder) OrderBy(field string, direction string) *QueryBuilder {
	if !qb.checkColumn(field) {
		return qb
	}
	dir := strings.ToUpper(direction)
	if dir != "ASC" && dir != "DESC" {
		dir = "ASC"
	}
	qb.orderBy = append(qb.orderBy, fmt.Sprintf("%s %s", field, dir))
	return qb
}

// Limit sets the LIMIT clause
func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.limit = &n
	return qb
}

// Offset sets the OFFSET clause
func (qb *QueryBuilder) Offset(n int) *QueryBuilder {
	qb.offset = &n
	return qb
}

// Paginate sets limit and offset for a 1-based page
func (qb *QueryBuilder) Paginate(page, size int) *QueryBuilder {
	if page < 1 {
		page = 1
	}
	if size < 0 {
		size = 0
	}
	skip := page - 1
	if size > 0 && skip > math.MaxInt/size {
		skip = math.MaxInt / size
	}
	return qb.Limit(size).Offset(skip * size)
}

func (qb *QueryBuilder) selectList() string {
	if len(qb.columns) > 0 {
		return strings.Join(qb.columns, ", ")
	}
	if qb.model == nil {
		return "*"
	}
	cols := qb.model.TableColumns()
	if len(cols) == 0 {
		return "*"
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

func (qb *QueryBuilder) writeWhere(b *strings.Builder, paramCounter *int, args *[]interface{}) error {
	if len(qb.conditions) == 0 {
		return nil
	}
	b.WriteString(" WHERE ")
	for i, cond := range qb.conditions {
		if i > 0 {
			b.WriteString(" AND ")
		}
		condSQL, err := conditionToSQL(qb.dialect, cond, paramCounter, args)
		if err != nil {
			return fmt.Errorf("failed to build condition: %w", err)
		}
		b.WriteString(condSQL)
	}
	return nil
}

// ToSQL generates the SQL query and parameter bindings
func (qb *QueryBuilder) ToSQL() (string, []interface{}, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}

	var b strings.Builder
	args := make([]interface{}, 0)
	paramCounter := 1

	b.WriteString("SELECT ")
	if qb.distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(qb.selectList())
	b.WriteString(" FROM ")
	b.WriteString(qb.model.Table)

	if err := qb.writeWhere(&b, &paramCounter, &args); err != nil {
		return "", nil, err
	}

	if len(qb.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(qb.orderBy, ", "))
	}

	if qb.limit != nil {
		b.WriteString(" LIMIT " + qb.dialect.Placeholder(paramCounter))
		args = append(args, *qb.limit)
		paramCounter++
	}

	if qb.offset != nil {
		b.WriteString(" OFFSET " + qb.dialect.Placeholder(paramCounter))
		args = append(args, *qb.offset)
		paramCounter++
	}

	return b.String(), args, nil
}

// CountSQL generates the COUNT query for the current conditions
func (qb *QueryBuilder) CountSQL() (string, []interface{}, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}

	var b strings.Builder
	args := make([]interface{}, 0)
	paramCounter := 1

	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(qb.model.Table)
	if err := qb.writeWhere(&b, &paramCounter, &args); err != nil {
		return "", nil, err
	}
	return b.String(), args, nil
}

// All executes the query and returns all matching rows
func (qb *QueryBuilder) All(ctx context.Context) ([]map[string]interface{}, error) {
	sqlStr, args, err := qb.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL: %w", err)
	}

	rows, err := qb.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	results, err := ScanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rows: %w", err)
	}
	return results, nil
}

// First executes the query and returns the first matching row
func (qb *QueryBuilder) First(ctx context.Context) (map[string]interface{}, error) {
	qb.Limit(1)
	results, err := qb.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, sql.ErrNoRows
	}
	return results[0], nil
}

// Count executes the query and returns the count
func (qb *QueryBuilder) Count(ctx context.Context) (int, error) {
	sqlStr, args, err := qb.CountSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to generate SQL: %w", err)
	}

	var count int
	if err := qb.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to execute count query: %w", err)
	}
	return count, nil
}

// Values returns the values of a single column, in query order
func (qb *QueryBuilder) Values(ctx context.Context, column string) ([]interface{}, error) {
	clone := qb.Clone()
	clone.columns = nil
	clone.Select(column)
	rows, err := clone.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		out = append(out, row[column])
	}
	return out, nil
}

// Clone creates a copy of the query builder
func (qb *QueryBuilder) Clone() *QueryBuilder {
	clone := &QueryBuilder{
		model:      qb.model,
		db:         qb.db,
		dialect:    qb.dialect,
		distinct:   qb.distinct,
		columns:    make([]string, len(qb.columns)),
		conditions: make([]*Condition, len(qb.conditions)),
		orderBy:    make([]string, len(qb.orderBy)),
		err:        qb.err,
	}
	copy(clone.columns, qb.columns)
	copy(clone.conditions, qb.conditions)
	copy(clone.orderBy, qb.orderBy)

	if qb.limit != nil {
		limit := *qb.limit
		clone.limit = &limit
	}
	if qb.offset != nil {
		offset := *qb.offset
		clone.offset = &offset
	}
	return clone
}

// ScanRows scans SQL rows into a slice of maps. Byte slices are converted to
// strings since text columns come back as []byte from some drivers.
func ScanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

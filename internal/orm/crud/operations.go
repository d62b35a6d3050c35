// Package crud reads and writes model rows, including many-to-many join rows
package crud

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
	"github.com/conduit-lang/conduit-admin/internal/orm/transaction"
)

// Operation represents a CRUD operation type
type Operation int

const (
	// OperationCreate represents a create operation
	OperationCreate Operation = iota
	// OperationRead represents a read operation
	OperationRead
	// OperationUpdate represents an update operation
	OperationUpdate
	// OperationDelete represents a delete operation
	OperationDelete
)

// String returns the string representation of the operation
func (o Operation) String() string {
	switch o {
	case OperationCreate:
		return "create"
	case OperationRead:
		return "read"
	case OperationUpdate:
		return "update"
	case OperationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Operations provides CRUD operations for a model
type Operations struct {
	model   *schema.ModelSchema
	db      *sql.DB
	dialect query.Dialect
	now     func() time.Time
}

// NewOperations creates a new Operations instance
func NewOperations(model *schema.ModelSchema, db *sql.DB, dialect query.Dialect) *Operations {
	return &Operations{
		model:   model,
		db:      db,
		dialect: dialect,
		now:     time.Now,
	}
}

// Model returns the model schema
func (o *Operations) Model() *schema.ModelSchema {
	return o.model
}

// DB returns the database connection
func (o *Operations) DB() *sql.DB {
	return o.db
}

// Query starts a select on the model table
func (o *Operations) Query() *query.QueryBuilder {
	return query.New(o.model, o.db, o.dialect)
}

func (o *Operations) ph(n int) string {
	return o.dialect.Placeholder(n)
}

// splitRecord separates table columns from m2m values and rejects unknown keys
func (o *Operations) splitRecord(data map[string]interface{}) (map[string]interface{}, map[*schema.Column][]interface{}, error) {
	columns := make(map[string]interface{}, len(data))
	m2m := make(map[*schema.Column][]interface{})
	for name, value := range data {
		col, ok := o.model.Column(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s.%s", ErrFieldNotFound, o.model.Name, name)
		}
		if col.IsVirtual() {
			ids, err := toIDs(value)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", name, err)
			}
			m2m[col] = ids
			continue
		}
		columns[name] = value
	}
	return columns, m2m, nil
}

// populateAutoFields fills generated uuid keys and the conventional timestamps
func (o *Operations) populateAutoFields(record map[string]interface{}, operation Operation) {
	now := o.now()
	for _, col := range o.model.TableColumns() {
		_, exists := record[col.Name]
		switch {
		case operation == OperationCreate && col.PrimaryKey && col.Auto && col.Type == schema.TypeUUID && !exists:
			record[col.Name] = uuid.New().String()
		case col.Type != schema.TypeTimestamp:
		case col.Name == "created_at" && operation == OperationCreate && !exists:
			record[col.Name] = now
		case col.Name == "updated_at":
			record[col.Name] = now
		}
	}
}

// orderedColumns returns the record keys in column declaration order
func (o *Operations) orderedColumns(record map[string]interface{}) []string {
	names := make([]string, 0, len(record))
	for _, col := range o.model.TableColumns() {
		if _, ok := record[col.Name]; ok {
			names = append(names, col.Name)
		}
	}
	return names
}

func toIDs(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case nil:
		return []interface{}{}, nil
	case []interface{}:
		return v, nil
	case []string:
		out := make([]interface{}, 0, len(v))
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case []int:
		out := make([]interface{}, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []int64:
		out := make([]interface{}, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of ids, got %T", value)
	}
}

// withTx retries writes the database aborted over a lock conflict
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	return transaction.Run(ctx, db, transaction.DefaultRetryConfig(), fn)
}

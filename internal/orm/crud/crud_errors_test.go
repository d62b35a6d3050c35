package crud

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestConvertDBError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		want     error
		contains string
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound, ""},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), ErrNotFound, ""},
		{"pgx unique", &pgconn.PgError{Code: "23505", Detail: "Key (username)=(root) already exists."}, ErrUniqueViolation, "Key (username)"},
		{"pgx foreign key", &pgconn.PgError{Code: "23503", Detail: "Key (category_id)=(9) is not present in table categories."}, ErrForeignKeyViolation, "category_id"},
		{"pgx check", &pgconn.PgError{Code: "23514"}, ErrCheckViolation, ""},
		{"pgx not null", &pgconn.PgError{Code: "23502", ColumnName: "name"}, ErrNotNullViolation, "column name"},
		{"pq unique", &pq.Error{Code: "23505", Detail: "Key (slug)=(news) already exists."}, ErrUniqueViolation, "slug"},
		{"pq not null", &pq.Error{Code: "23502", Column: "title"}, ErrNotNullViolation, "title"},
		{"sqlite unique", errors.New("UNIQUE constraint failed: admins.username"), ErrUniqueViolation, "admins.username"},
		{"sqlite foreign key", errors.New("FOREIGN KEY constraint failed"), ErrForeignKeyViolation, ""},
		{"sqlite not null", errors.New("NOT NULL constraint failed: products.name"), ErrNotNullViolation, "products.name"},
		{"sqlite check", errors.New("CHECK constraint failed: price > 0"), ErrCheckViolation, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ConvertDBError(tc.err)
			assert.ErrorIs(t, err, tc.want)
			if tc.contains != "" {
				assert.Contains(t, err.Error(), tc.contains)
			}
		})
	}
}

func TestConvertDBErrorPassesThrough(t *testing.T) {
	assert.NoError(t, ConvertDBError(nil))

	unknown := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	assert.Same(t, unknown, ConvertDBError(unknown))

	generic := errors.New("connection reset")
	assert.Equal(t, generic, ConvertDBError(generic))
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsNotFound(ConvertDBError(sql.ErrNoRows)))
	assert.True(t, IsUniqueViolation(ConvertDBError(&pq.Error{Code: "23505"})))

	for _, err := range []error{ErrUniqueViolation, ErrForeignKeyViolation, ErrCheckViolation, ErrNotNullViolation} {
		assert.True(t, IsConstraintViolation(fmt.Errorf("save: %w", err)), err.Error())
	}
	assert.False(t, IsConstraintViolation(ErrNotFound))
	assert.False(t, IsConstraintViolation(errors.New("boom")))
}

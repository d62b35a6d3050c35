// Package models holds the admin account model the login provider authenticates against
package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/conduit-lang/conduit-admin/internal/orm/crud"
	"github.com/conduit-lang/conduit-admin/internal/orm/query"
	"github.com/conduit-lang/conduit-admin/internal/orm/schema"
	"github.com/conduit-lang/conduit-admin/internal/web/auth"
)

// ErrUsernameTaken is returned when creating an admin with an existing username
var ErrUsernameTaken = errors.New("username already exists")

// Admin is an account allowed into the dashboard
type Admin struct {
	ID        int64
	Username  string
	Password  string
	Avatar    string
	CreatedAt time.Time
}

// AdminSchema describes the admins table created by the bundled migrations
func AdminSchema() *schema.ModelSchema {
	m := schema.NewModelSchema("admin", "admins")
	m.Label = "Admin"
	m.DisplayColumn = "username"
	m.AddColumn(&schema.Column{Name: "id", Type: schema.TypeInt, PrimaryKey: true, Auto: true})
	m.AddColumn(&schema.Column{Name: "username", Type: schema.TypeString, MaxLength: 50})
	m.AddColumn(&schema.Column{Name: "password", Type: schema.TypePassword, MaxLength: 200})
	m.AddColumn(&schema.Column{Name: "avatar", Type: schema.TypeImage, Nullable: true, Default: "", MaxLength: 200})
	m.AddColumn(&schema.Column{Name: "created_at", Type: schema.TypeTimestamp, Auto: true})
	return m
}

// AdminFromRow converts a scanned admins row
func AdminFromRow(row map[string]interface{}) (*Admin, error) {
	id, err := cast.ToInt64E(row["id"])
	if err != nil {
		return nil, fmt.Errorf("admin id: %w", err)
	}
	a := &Admin{
		ID:       id,
		Username: cast.ToString(row["username"]),
		Password: cast.ToString(row["password"]),
		Avatar:   cast.ToString(row["avatar"]),
	}
	if v := row["created_at"]; v != nil {
		if t, err := cast.ToTimeE(v); err == nil {
			a.CreatedAt = t
		}
	}
	return a, nil
}

// AdminStore reads and writes admin accounts
type AdminStore struct {
	ops *crud.Operations
}

// NewAdminStore binds the store to db
func NewAdminStore(db *sql.DB, dialect query.Dialect) *AdminStore {
	return &AdminStore{ops: crud.NewOperations(AdminSchema(), db, dialect)}
}

// Schema returns the model the store writes
func (s *AdminStore) Schema() *schema.ModelSchema {
	return s.ops.Model()
}

// Get loads the admin with primary key id
func (s *AdminStore) Get(ctx context.Context, id interface{}) (*Admin, error) {
	row, err := s.ops.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return AdminFromRow(row)
}

// GetByUsername loads the admin called username
func (s *AdminStore) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	row, err := s.ops.FindBy(ctx, "username", username)
	if err != nil {
		return nil, err
	}
	return AdminFromRow(row)
}

// Count returns the number of admins
func (s *AdminStore) Count(ctx context.Context) (int, error) {
	n, err := s.ops.Query().Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

// Create stores a new admin; password is plain text and gets hashed
func (s *AdminStore) Create(ctx context.Context, username, password string) (*Admin, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	row, err := s.ops.Create(ctx, map[string]interface{}{
		"username": username,
		"password": hash,
	})
	if err != nil {
		if crud.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
		}
		return nil, err
	}
	return AdminFromRow(row)
}

// UpdatePassword hashes and stores a new password
func (s *AdminStore) UpdatePassword(ctx context.Context, id int64, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.ops.Update(ctx, id, map[string]interface{}{"password": hash})
}

// UpdateAvatar stores the avatar URL of an admin
func (s *AdminStore) UpdateAvatar(ctx context.Context, id int64, url string) error {
	return s.ops.Update(ctx, id, map[string]interface{}{"avatar": url})
}

// Authenticate returns the admin when password matches its stored hash
func (s *AdminStore) Authenticate(ctx context.Context, username, password string) (*Admin, bool, error) {
	a, err := s.GetByUsername(ctx, username)
	if err != nil {
		if crud.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !auth.CheckPassword(password, a.Password) {
		return nil, false, nil
	}
	return a, true, nil
}

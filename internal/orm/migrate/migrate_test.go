package migrate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/conduit-admin/internal/orm/db"
)

func TestUpCreatesAdminsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.db")
	conn, err := db.Open(context.Background(), db.DefaultConfig("sqlite3://"+path))
	require.NoError(t, err)
	defer conn.Close()

	r, err := New(conn, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, r.Up())
	// applying again is a no-op
	require.NoError(t, r.Up())

	v, dirty, err := r.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	_, err = conn.Exec("INSERT INTO admins (username, password) VALUES (?, ?)", "root", "hash")
	require.NoError(t, err)

	var count int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM admins").Scan(&count))
	assert.Equal(t, 1, count)
}

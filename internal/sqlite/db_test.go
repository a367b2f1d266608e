package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	for _, table := range []string{"flows", "activity_log"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}
}

func TestMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowscribe.db")

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	_, err = db.Exec(`INSERT INTO flows (id, name, status) VALUES ('login', 'Login', 'pending')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RunMigrations())

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM flows WHERE id = 'login'`).Scan(&name))
	require.Equal(t, "Login", name)
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")
}

// TestFlowsTable verifies the flows table constraints
func TestFlowsTable(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO flows (id, name, status, confidence) VALUES (?, ?, ?, ?)`,
		"f1", "Flow", "completed", 46)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO flows (id, name, status) VALUES (?, ?, ?)`,
		"f2", "Flow", "archived")
	require.Error(t, err, "should fail with invalid status")

	_, err = db.ExecContext(ctx,
		`INSERT INTO flows (id, name, status, confidence) VALUES (?, ?, ?, ?)`,
		"f3", "Flow", "completed", 101)
	require.Error(t, err, "should fail with confidence above 100")

	_, err = db.ExecContext(ctx,
		`INSERT INTO flows (id, name, status) VALUES (?, ?, ?)`,
		"f1", "Again", "pending")
	require.True(t, isUniqueViolation(err))
}

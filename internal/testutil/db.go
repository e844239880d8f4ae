package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3" // Blank import for sql driver
	"github.com/vrsandeep/vmfa-addons/internal/assets"
	"github.com/vrsandeep/vmfa-addons/internal/db"
)

// SetupTestDB creates an in-memory SQLite database and applies all migrations.
// It returns the database connection, ready for use in tests.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	// Every connection to ":memory:" is its own database.
	conn.SetMaxOpenConns(1)

	t.Cleanup(func() {
		conn.Close()
	})

	if err := db.RunMigrations(conn, assets.MigrationsFS, nil); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	return conn
}

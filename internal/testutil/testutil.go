// Package testutil provides in-memory databases for package tests.
package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contact-book/internal/database"
	"go.uber.org/zap"
)

// OpenDB opens a migrated in-memory SQLite database named after the running
// test. The database is closed when the test ends.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := "file:" + name + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := database.Open(context.Background(), "sqlite3", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, zap.NewNop()); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// CreateUser inserts a user with an unusable password hash and returns its id.
func CreateUser(t *testing.T, db *sqlx.DB, username string) int64 {
	t.Helper()
	result, err := db.Exec(`INSERT INTO users (username, password_hash) VALUES (?, ?)`, username, "-")
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return id
}

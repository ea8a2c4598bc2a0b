// Package testdb provides in-memory SQLite databases for tests.
package testdb

import (
	"context"
	"testing"

	"github.com/helixml/marketbasket/infrastructure/persistence"
	"github.com/helixml/marketbasket/internal/database"
)

// New creates an in-memory SQLite database with all migrations applied.
// The database is closed when the test finishes.
func New(t testing.TB) database.Database {
	t.Helper()
	db := NewPlain(t)
	if err := persistence.AutoMigrate(db); err != nil {
		t.Fatalf("testdb.New: %v", err)
	}
	return db
}

// NewPlain creates an in-memory SQLite database without any schema.
func NewPlain(t testing.TB) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), "sqlite:///:memory:")
	if err != nil {
		t.Fatalf("testdb.NewPlain: open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

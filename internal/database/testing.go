package database

import (
	"testing"
)

// NewTestDB opens an in-memory sqlite database with every catalog migration applied.
// It closes the database when the test ends.
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	db, err := NewDB(Config{Driver: DriverSQLite, DatabasePath: memoryPath})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// CreateTestEntry inserts a minimal catalog entry owned by userID
func CreateTestEntry(t testing.TB, db *DB, userID, title string) *CatalogEntry {
	t.Helper()

	entry := &CatalogEntry{
		UserID: userID,
		Title:  title,
		Level:  "Intermediate",
		Tags:   []string{},
	}
	if err := db.Catalog.CreateEntry(t.Context(), entry); err != nil {
		t.Fatalf("Failed to create test entry: %v", err)
	}
	return entry
}

package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/teranos/legisync/db"
)

// CreateTestDB creates a migrated run ledger in a temporary directory.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// A file rather than :memory:, so every pooled connection sees the same schema
	sqlDB, err := db.OpenWithMigrations(filepath.Join(t.TempDir(), "legisync.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return sqlDB
}

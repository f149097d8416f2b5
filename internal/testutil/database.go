// Package testutil provides test helpers backed by a real SQLite database.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/storage"
)

// TestDB is a migrated database in the test's temporary directory.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates and migrates a database that is closed when the test
// ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	studio := db.Property("Studio Lyon")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "lmnp.db"))
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()), "failed to run migrations")

	return &TestDB{Storage: store, t: t}
}

// Property creates a property or fails the test.
func (db *TestDB) Property(name string) *model.Property {
	db.t.Helper()
	p, err := db.Storage.CreateProperty(context.Background(), name)
	require.NoError(db.t, err, "failed to create property %q", name)
	return p
}

// Mappings seeds the categories of a builder or fails the test.
func (db *TestDB) Mappings(b *MappingBuilder) []model.CategoryMapping {
	db.t.Helper()
	out, err := b.Build(context.Background(), db.Storage)
	require.NoError(db.t, err, "failed to seed mappings")
	return out
}

// Package sqlitetest opens migrated throwaway databases for tests.
package sqlitetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dvloznov/finance-dashboard/internal/infra/sqlite"
	"github.com/stretchr/testify/require"
)

// NewStore returns a Store over a fresh, migrated database in t.TempDir().
// When seed is true the default taxonomy is loaded.
func NewStore(t testing.TB, seed bool) *sqlite.Store {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, sqlite.RunMigrations(db))

	store := sqlite.NewStore(db)
	if seed {
		require.NoError(t, store.SeedDefaults(context.Background()))
	}
	return store
}

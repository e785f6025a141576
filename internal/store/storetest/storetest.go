// Package storetest opens throwaway SQLite databases with the full schema applied.
package storetest

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"clubhub/internal/store"
)

// New returns a migrated in-memory database closed when the test ends.
func New(t testing.TB) *store.DB {
	t.Helper()
	ctx := context.Background()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := store.NewDB(ctx, "sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(ctx, slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

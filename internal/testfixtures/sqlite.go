package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/calshare/internal/persistence/sqlite"
)

// SQLiteHarness is a migrated SQLite storage in a temporary directory, for
// integration tests that exercise real SQL.
type SQLiteHarness struct {
	Storage *sqlite.Storage
}

// NewSQLiteHarness opens and migrates a fresh database. It is closed through
// tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	storage, err := sqlite.Open(filepath.Join(tb.TempDir(), "calshare.db"), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return &SQLiteHarness{Storage: storage}
}

// SeedUser inserts fixture straight into the users table.
func (h *SQLiteHarness) SeedUser(tb testing.TB, fixture UserFixture) UserFixture {
	tb.Helper()
	if err := h.Storage.CreateUser(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed user %s: %v", fixture.ID, err)
	}
	return fixture
}

// SeedCalendar inserts fixture, including its member rows.
func (h *SQLiteHarness) SeedCalendar(tb testing.TB, fixture CalendarFixture) CalendarFixture {
	tb.Helper()
	if err := h.Storage.CreateCalendar(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed calendar %s: %v", fixture.ID, err)
	}
	return fixture
}

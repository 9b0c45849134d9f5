package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/example/calshare/internal/persistence/sqlite/migration"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Storage bundles every SQLite repository behind one connection pool.
type Storage struct {
	*UserRepository
	*SessionRepository
	*CalendarRepository
	*InviteRepository
	*EventRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open connects to the database at dsn using the default SQLite settings.
func Open(dsn string, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(migration.DefaultSQLiteConfig(dsn))
	if err != nil {
		return nil, err
	}
	return NewStorage(pool, logger), nil
}

// NewStorage wires repositories around an existing pool.
func NewStorage(pool *ConnectionPool, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		UserRepository:     NewUserRepository(pool),
		SessionRepository:  NewSessionRepository(pool),
		CalendarRepository: NewCalendarRepository(pool),
		InviteRepository:   NewInviteRepository(pool),
		EventRepository:    NewEventRepository(pool),
		pool:               pool,
		logger:             logger,
	}
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	return migration.NewRunner(s.pool.DB(), schemaFS, "schema", s.logger).RunMigrations(ctx)
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

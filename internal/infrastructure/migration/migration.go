package migration

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// RunMigrations prepares the Postgres-backed store on startup.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("Starting database migrations")

	for _, m := range Migrations() {
		if err := m.Up(ctx, pool); err != nil {
			log.Error("Migration failed", zap.String("name", m.Name), zap.Error(err))
			return err
		}
		log.Info("Migration completed", zap.String("name", m.Name))
	}

	log.Info("All migrations completed successfully")
	return nil
}

// Migration represents a database migration
type Migration struct {
	Name string
	Up   func(ctx context.Context, pool *pgxpool.Pool) error
}

// Migrations lists every migration in the order it must run.
func Migrations() []Migration {
	return []Migration{
		{Name: "create_local_storage", Up: exec(createLocalStorage)},
		{Name: "index_local_storage_updated_at", Up: exec(indexUpdatedAt)},
	}
}

const createLocalStorage = `
	CREATE TABLE IF NOT EXISTS local_storage (
		profile    TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (profile, key)
	);
`

const indexUpdatedAt = `
	CREATE INDEX IF NOT EXISTS local_storage_updated_at_idx ON local_storage (updated_at);
`

func exec(query string) func(ctx context.Context, pool *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, query)
		return err
	}
}

// Package migrate applies the embedded commission ledger schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Apply runs all migrations up.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	return run(ctx, pool, func(m *migrate.Migrate) error { return m.Up() })
}

// Rollback reverts the given number of migrations.
func Rollback(ctx context.Context, pool *pgxpool.Pool, steps int) error {
	if steps <= 0 {
		return errors.Errorf("rollback steps must be positive, got %d", steps)
	}
	return run(ctx, pool, func(m *migrate.Migrate) error { return m.Steps(-steps) })
}

// Version reports the applied schema version; ok is false when nothing has been applied.
func Version(ctx context.Context, pool *pgxpool.Pool) (version uint, dirty, ok bool, err error) {
	err = run(ctx, pool, func(m *migrate.Migrate) error {
		v, d, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		if verr != nil {
			return verr
		}
		version, dirty, ok = v, d, true
		return nil
	})
	return version, dirty, ok, err
}

func run(ctx context.Context, pool *pgxpool.Pool, step func(*migrate.Migrate) error) error {
	srcDriver, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return errors.Wrap(err, "init iofs")
	}

	sqlDB, err := sql.Open("pgx", pool.Config().ConnString())
	if err != nil {
		return errors.Wrap(err, "open sql db")
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping sql db")
	}

	dbDriver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "init db driver")
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "pgx", dbDriver)
	if err != nil {
		return errors.Wrap(err, "init migrate")
	}
	defer m.Close()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.Wrap(err, "migrate: every version needs both .up.sql and .down.sql")
		}
		return errors.Wrap(err, "migrate")
	}
	return nil
}

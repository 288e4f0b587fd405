// Package migrations owns the tables this service creates itself. The
// directory tables are written by the upstream ETL and never touched here.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/greatvovan/bacon-number/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Table keeps our version row apart from any schema_migrations table the
// ETL may own in the same database.
const Table = "bacon_schema_migrations"

// Up applies all pending migrations.
func Up(databaseURL string) error {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	dbURL, err := withMigrationsTable(databaseURL)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("[Migrations] Schema up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("[Migrations] Applied", "version", version)
	return nil
}

func withMigrationsTable(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	q := u.Query()
	if q.Get("x-migrations-table") == "" {
		q.Set("x-migrations-table", Table)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Package setup wires configuration into the stores and directories shared
// by the server and the snapshot worker.
package setup

import (
	"context"
	"fmt"

	"github.com/greatvovan/bacon-number/internal/config"
	"github.com/greatvovan/bacon-number/internal/migrations"
	"github.com/greatvovan/bacon-number/pkg/directory"
	"github.com/greatvovan/bacon-number/pkg/directory/cached"
	pgxdir "github.com/greatvovan/bacon-number/pkg/directory/pgx"
	"github.com/greatvovan/bacon-number/pkg/leaselock"
	"github.com/greatvovan/bacon-number/pkg/logger"
	"github.com/greatvovan/bacon-number/pkg/snapshot"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Database opens the pool and applies migrations when the configuration
// needs the app_locks table.
func Database(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dbURL := cfg.DatabaseURL()

	if cfg.DBMigrate || cfg.SnapshotLock {
		if err := migrations.Up(dbURL); err != nil {
			return nil, err
		}
		logger.Info("[Setup] Migrations applied")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return pool, nil
}

// NewDirectory returns the Postgres directory, wrapped in an in-memory name
// cache in cached mode. The returned warm func fills the cache and must be
// run in the background; it is a no-op in online mode.
func NewDirectory(pool *pgxpool.Pool, cfg *config.Config) (directory.Directory, func(ctx context.Context) error) {
	pg := pgxdir.New(pool, pgxdir.Options{
		ActorsTable: cfg.ActorsTable,
		PeersTable:  cfg.PeersTable,
		MaxRetries:  cfg.DBMaxRetries,
	})

	if cfg.DirectoryMode != config.DirectoryCached {
		return pg, func(context.Context) error { return nil }
	}

	dir := cached.New(pg, nil)
	return dir, func(ctx context.Context) error {
		return dir.Warm(ctx, cfg.SchemaPollInterval)
	}
}

// NewSnapshots returns the snapshot store for cfg.SnapshotBackend, wrapped in
// a database lease when SNAPSHOT_LOCK is set. db may be nil when no lock is
// configured.
func NewSnapshots(ctx context.Context, cfg *config.Config, db leaselock.DB) (snapshot.Store, error) {
	var store snapshot.Store
	switch cfg.SnapshotBackend {
	case config.SnapshotFile:
		store = snapshot.NewFile(cfg.GraphCachePath)
	case config.SnapshotS3:
		client, err := snapshot.NewS3Client(ctx, snapshot.S3Config{
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.AWSEndpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
		})
		if err != nil {
			return nil, err
		}
		store = snapshot.NewS3(client, cfg.AWSBucket, cfg.SnapshotKey)
	case config.SnapshotNone:
		return snapshot.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}

	if !cfg.SnapshotLock {
		return store, nil
	}
	if db == nil {
		return nil, fmt.Errorf("SNAPSHOT_LOCK requires a database")
	}
	return snapshot.NewLocked(store, leaselock.New(db), snapshot.DefaultLockKey, leaselock.Options{
		TTL: cfg.SnapshotLockTTL,
	}), nil
}

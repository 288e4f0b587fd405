package snapshot

import (
	"context"
	"errors"

	"github.com/greatvovan/bacon-number/pkg/graph"
	"github.com/greatvovan/bacon-number/pkg/leaselock"
	"github.com/greatvovan/bacon-number/pkg/logger"
)

// DefaultLockKey is the app_locks key guarding snapshot writes.
const DefaultLockKey = "graph-snapshot"

// Locked serializes Save across processes sharing a database. When another
// process holds the lease the write is skipped: that process is already
// persisting an equivalent graph.
type Locked struct {
	Store
	locker leaselock.Locker
	key    string
	opts   leaselock.Options
}

func NewLocked(inner Store, locker leaselock.Locker, key string, opts leaselock.Options) *Locked {
	if key == "" {
		key = DefaultLockKey
	}
	return &Locked{Store: inner, locker: locker, key: key, opts: opts}
}

func (l *Locked) Save(ctx context.Context, g *graph.Store) error {
	err := l.locker.WithLease(ctx, l.key, l.opts, func(ctx context.Context) error {
		return l.Store.Save(ctx, g)
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Snapshot] Another process is writing the snapshot, skipping", "key", l.key)
		return nil
	}
	return err
}

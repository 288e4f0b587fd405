package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/greatvovan/bacon-number/internal/util"
	"github.com/greatvovan/bacon-number/pkg/directory"
	"github.com/greatvovan/bacon-number/pkg/graph"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

type pgxIConn interface {
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// Options names the tables the directory reads. Empty fields take the
// defaults "actors" and "peers".
type Options struct {
	ActorsTable string
	PeersTable  string
	MaxRetries  int
}

// Directory is a directory.Directory backed by Postgres. Entities live in
// an (id, name) table and relations in an (id1, id2) table holding both
// orientations of every pair.
//
// Lookups are retried up to MaxRetries times. The relation stream is not:
// a failure midway would otherwise replay rows already consumed.
type Directory struct {
	conn       pgxIConn
	actors     string
	peers      string
	maxRetries int

	qResolveID    string
	qResolveIDs   string
	qResolveNames string
	qRelations    string
	qEntities     string
}

var (
	_ directory.Directory    = (*Directory)(nil)
	_ directory.EntitySource = (*Directory)(nil)
)

// New creates a Directory over an open connection or pool.
func New(conn pgxIConn, opts Options) *Directory {
	if opts.ActorsTable == "" {
		opts.ActorsTable = "actors"
	}
	if opts.PeersTable == "" {
		opts.PeersTable = "peers"
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	actors := pq.QuoteIdentifier(opts.ActorsTable)
	peers := pq.QuoteIdentifier(opts.PeersTable)
	return &Directory{
		conn:       conn,
		actors:     opts.ActorsTable,
		peers:      opts.PeersTable,
		maxRetries: opts.MaxRetries,

		qResolveID:    fmt.Sprintf("SELECT id FROM %s WHERE name = $1 LIMIT 1", actors),
		qResolveIDs:   fmt.Sprintf("SELECT id, name FROM %s WHERE name = ANY($1)", actors),
		qResolveNames: fmt.Sprintf("SELECT id, name FROM %s WHERE id = ANY($1)", actors),
		qRelations:    fmt.Sprintf("SELECT id1, id2 FROM %s WHERE id1 < id2", peers),
		qEntities:     fmt.Sprintf("SELECT id, name FROM %s", actors),
	}
}

func (d *Directory) ResolveID(ctx context.Context, name string) (graph.ID, bool, error) {
	name = util.SanitizePostgresText(name)
	var id graph.ID
	err := util.RetryErrWithContext(ctx, d.maxRetries, func(ctx context.Context) error {
		return d.conn.QueryRow(ctx, d.qResolveID, name).Scan(&id)
	})
	if errors.Is(err, pgxv5.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve actor id: %w", err)
	}
	return id, true, nil
}

func (d *Directory) ResolveIDs(ctx context.Context, names []string) (map[string]graph.ID, error) {
	if len(names) == 0 {
		return map[string]graph.ID{}, nil
	}
	clean := make([]string, len(names))
	for i, n := range names {
		clean[i] = util.SanitizePostgresText(n)
	}

	out, err := util.RetryWithContext(ctx, d.maxRetries, func(ctx context.Context) (map[string]graph.ID, error) {
		rows, err := d.conn.Query(ctx, d.qResolveIDs, clean)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		res := make(map[string]graph.ID, len(clean))
		for rows.Next() {
			var id graph.ID
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				return nil, err
			}
			res[name] = id
		}
		return res, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve actor ids: %w", err)
	}
	return out, nil
}

func (d *Directory) ResolveNames(ctx context.Context, ids []graph.ID) (map[graph.ID]string, error) {
	if len(ids) == 0 {
		return map[graph.ID]string{}, nil
	}

	out, err := util.RetryWithContext(ctx, d.maxRetries, func(ctx context.Context) (map[graph.ID]string, error) {
		rows, err := d.conn.Query(ctx, d.qResolveNames, ids)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		res := make(map[graph.ID]string, len(ids))
		for rows.Next() {
			var id graph.ID
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				return nil, err
			}
			res[id] = name
		}
		return res, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve actor names: %w", err)
	}
	return out, nil
}

// StreamRelations streams every pair once, lower id first. Rows are read
// off the wire as fn consumes them, so the result set is never held in
// memory.
func (d *Directory) StreamRelations(ctx context.Context, fn func(a, b graph.ID) error) error {
	rows, err := d.conn.Query(ctx, d.qRelations)
	if err != nil {
		return fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a, b graph.ID
		if err := rows.Scan(&a, &b); err != nil {
			return fmt.Errorf("failed to scan relation: %w", err)
		}
		if err := fn(a, b); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("relation stream failed: %w", err)
	}
	return nil
}

func (d *Directory) StreamEntities(ctx context.Context, fn func(id graph.ID, name string) error) error {
	rows, err := d.conn.Query(ctx, d.qEntities)
	if err != nil {
		return fmt.Errorf("failed to query actors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id graph.ID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("failed to scan actor: %w", err)
		}
		if err := fn(id, name); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("actor stream failed: %w", err)
	}
	return nil
}

// SchemaReady reports whether both directory tables exist.
func (d *Directory) SchemaReady(ctx context.Context) (bool, error) {
	var count int
	err := d.conn.QueryRow(ctx, schemaReadySQL, []string{d.actors, d.peers}).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to probe schema: %w", err)
	}
	return count == 2, nil
}

const schemaReadySQL = `
SELECT count(DISTINCT table_name)
FROM information_schema.tables
WHERE table_name = ANY($1);
`

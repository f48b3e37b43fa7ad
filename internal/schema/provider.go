package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/failure"
	"github.com/askdb/askdb/internal/observability"
)

// introspectionQuery covers base tables outside the engine's own schemas.
// System catalogs are deliberately not exposed to the model.
const introspectionQuery = `
SELECT c.table_schema, c.table_name, c.column_name, c.data_type
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema NOT IN ('pg_catalog', 'information_schema')
  AND t.table_type = 'BASE TABLE'
ORDER BY c.table_schema, c.table_name, c.ordinal_position`

// Provider fetches schema snapshots with a TTL cache. Refresh is forced at
// every engine start so a session never begins on a stale view; within a
// session the TTL bounds how long a DDL change can go unnoticed.
type Provider struct {
	db  *sql.DB
	ttl time.Duration

	mu        sync.Mutex
	cached    Snapshot
	fetchedAt time.Time
}

func NewProvider(db *sql.DB, ttl time.Duration) *Provider {
	return &Provider{db: db, ttl: ttl}
}

// Snapshot returns the cached snapshot when it is still fresh, otherwise
// fetches a new one. Fails with SchemaUnavailable when introspection cannot
// run.
func (p *Provider) Snapshot(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ttl > 0 && !p.fetchedAt.IsZero() && time.Since(p.fetchedAt) < p.ttl {
		return p.cached, nil
	}
	return p.fetchLocked(ctx)
}

// Refresh bypasses the cache and always hits the database.
func (p *Provider) Refresh(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetchLocked(ctx)
}

func (p *Provider) fetchLocked(ctx context.Context) (Snapshot, error) {
	snap, err := introspect(ctx, p.db)
	if err != nil {
		return Snapshot{}, failure.Wrap(failure.KindSchemaUnavailable, err)
	}
	observability.ObserveSchemaRefresh()
	p.cached = snap
	p.fetchedAt = time.Now()
	return snap, nil
}

func introspect(ctx context.Context, db *sql.DB) (Snapshot, error) {
	rows, err := db.QueryContext(ctx, introspectionQuery)
	if err != nil {
		return Snapshot{}, fmt.Errorf("introspect schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		tables  []Table
		current *Table
	)
	for rows.Next() {
		var tableSchema, tableName string
		var col Column
		if err := rows.Scan(&tableSchema, &tableName, &col.Name, &col.Type); err != nil {
			return Snapshot{}, fmt.Errorf("scan schema row: %w", err)
		}
		// Table identity is schema+name; same-named tables in two
		// schemas must not merge.
		if current == nil || current.Schema != tableSchema || current.Name != tableName {
			tables = append(tables, Table{Schema: tableSchema, Name: tableName})
			current = &tables[len(tables)-1]
		}
		current.Columns = append(current.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("read schema rows: %w", err)
	}

	return Snapshot{Tables: tables, TakenAt: time.Now()}, nil
}

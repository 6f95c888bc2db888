// Package postgres stores the inventory in PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/inventory"
)

// ddl creates the inventory table when it does not exist yet.
const ddl = `
CREATE TABLE IF NOT EXISTS lab_inventory (
    item      TEXT     PRIMARY KEY,
    quantity  INTEGER  NOT NULL DEFAULT 0 CHECK (quantity >= 0)
);
`

const (
	sqlUpsert = `
INSERT INTO lab_inventory (item, quantity) VALUES ($1, $2)
ON CONFLICT (item) DO UPDATE SET quantity = lab_inventory.quantity + EXCLUDED.quantity
RETURNING item, quantity`

	sqlList = `SELECT item, quantity FROM lab_inventory ORDER BY item`

	sqlSearch = `SELECT item, quantity FROM lab_inventory WHERE item ILIKE '%' || $1 || '%' ESCAPE '\' ORDER BY item`
)

// Store is a PostgreSQL-backed inventory.Store. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

var _ inventory.Store = (*Store)(nil)

// Open connects to dsn and verifies the connection. With migrate set the
// table is created when missing.
func Open(ctx context.Context, dsn string, migrate bool) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres inventory: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres inventory: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres inventory: ping: %w", err)
	}
	if migrate {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres inventory: migrate: %w", err)
		}
	}
	return &Store{pool: pool}, nil
}

// Add implements inventory.Store. The upsert runs in its own transaction.
func (s *Store) Add(ctx context.Context, item string, qty int) (inventory.Item, error) {
	item, err := inventory.CheckAdd(item, qty)
	if err != nil {
		return inventory.Item{}, err
	}
	var out inventory.Item
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, sqlUpsert, item, qty).Scan(&out.Name, &out.Quantity)
	})
	if err != nil {
		return inventory.Item{}, fault.Store("add", err)
	}
	return out, nil
}

// List implements inventory.Store.
func (s *Store) List(ctx context.Context) ([]inventory.Item, error) {
	items, err := s.query(ctx, sqlList)
	if err != nil {
		return nil, fault.Store("list", err)
	}
	return items, nil
}

// Search implements inventory.Store.
func (s *Store) Search(ctx context.Context, fragment string) ([]inventory.Item, error) {
	items, err := s.query(ctx, sqlSearch, inventory.EscapeLike(fragment))
	if err != nil {
		return nil, fault.Store("search", err)
	}
	return items, nil
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]inventory.Item, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Item, error) {
		var it inventory.Item
		err := row.Scan(&it.Name, &it.Quantity)
		return it, err
	})
}

// Ping implements inventory.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fault.Store("ping", err)
	}
	return nil
}

// Close implements inventory.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

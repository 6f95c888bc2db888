// Package mysql stores the inventory in MySQL or MariaDB through
// database/sql and the go-sql-driver connector.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/inventory"
)

const ddl = `CREATE TABLE IF NOT EXISTS lab_inventory (
    item      VARCHAR(255) NOT NULL PRIMARY KEY,
    quantity  INT UNSIGNED NOT NULL DEFAULT 0
)`

const (
	sqlUpsert = "INSERT INTO lab_inventory (item, quantity) VALUES (?, ?) " +
		"ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)"
	sqlSelectOne = "SELECT item, quantity FROM lab_inventory WHERE item = ?"
	sqlList      = "SELECT item, quantity FROM lab_inventory ORDER BY item"
	sqlSearch    = "SELECT item, quantity FROM lab_inventory WHERE LOWER(item) LIKE ? ORDER BY item"
)

// Store is a MySQL-backed inventory.Store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

var _ inventory.Store = (*Store)(nil)

// Open parses a go-sql-driver DSN ("user:pass@tcp(host:3306)/lab"), connects
// and verifies the connection. With migrate set the table is created when
// missing.
func Open(ctx context.Context, dsn string, migrate bool) (*Store, error) {
	cfg, err := mysqldrv.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql inventory: parse dsn: %w", err)
	}
	connector, err := mysqldrv.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql inventory: connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql inventory: ping: %w", err)
	}
	if migrate {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("mysql inventory: migrate: %w", err)
		}
	}
	return New(db), nil
}

// New wraps an open handle. The Store owns db and closes it on Close.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Add implements inventory.Store. The upsert and the read-back share one
// transaction that is rolled back on any failure.
func (s *Store) Add(ctx context.Context, item string, qty int) (inventory.Item, error) {
	item, err := inventory.CheckAdd(item, qty)
	if err != nil {
		return inventory.Item{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return inventory.Item{}, fault.Store("add: begin", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.ExecContext(ctx, sqlUpsert, item, qty); err != nil {
		return inventory.Item{}, fault.Store("add: upsert", err)
	}
	var out inventory.Item
	if err := tx.QueryRowContext(ctx, sqlSelectOne, item).Scan(&out.Name, &out.Quantity); err != nil {
		return inventory.Item{}, fault.Store("add: read back", err)
	}
	if err := tx.Commit(); err != nil {
		return inventory.Item{}, fault.Store("add: commit", err)
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
	pattern := "%" + inventory.EscapeLike(strings.ToLower(fragment)) + "%"
	items, err := s.query(ctx, sqlSearch, pattern)
	if err != nil {
		return nil, fault.Store("search", err)
	}
	return items, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]inventory.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []inventory.Item
	for rows.Next() {
		var it inventory.Item
		if err := rows.Scan(&it.Name, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Ping implements inventory.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fault.Store("ping", err)
	}
	return nil
}

// Close implements inventory.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

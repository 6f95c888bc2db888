// Package inventory is the lab inventory datastore: unique item names mapped
// to non-negative quantities.
//
// Quantities only ever grow through [Store.Add], an upsert that inserts a new
// row or atomically increments the existing one inside a single transaction.
// Implementations report datastore failures as fault.KindStore errors and
// roll back any partial write.
//
// Three backends exist: the in-memory [Memory] store in this package, and the
// postgres and mysql subpackages sharing the lab_inventory table layout.
package inventory

import (
	"context"
	"errors"
	"math"
	"strings"
)

// Table is the relational table name used by the SQL backends.
const Table = "lab_inventory"

// MaxQuantity is the largest quantity a row may hold. It matches the postgres
// INTEGER column, the narrower of the two SQL layouts.
const MaxQuantity = math.MaxInt32

var (
	// ErrInvalidItem is returned for blank item names.
	ErrInvalidItem = errors.New("inventory: item name must not be blank")

	// ErrInvalidQuantity is returned for non-positive increments and for
	// increments above MaxQuantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

	// ErrOverflow is wrapped when an increment would push a row past
	// MaxQuantity. The row is left unchanged.
	ErrOverflow = errors.New("inventory: quantity would exceed maximum")

	// ErrClosed is wrapped by calls on a closed store.
	ErrClosed = errors.New("inventory: store closed")
)

// Item is one inventory row.
type Item struct {
	Name     string
	Quantity int
}

// Store is the datastore contract. Implementations must be safe for
// concurrent use; each call is its own transaction.
type Store interface {
	// Add increments item by qty, creating it when absent, and returns the
	// stored row after the increment.
	Add(ctx context.Context, item string, qty int) (Item, error)

	// List returns every item ordered by name.
	List(ctx context.Context) ([]Item, error)

	// Search returns items whose name contains fragment, case-insensitively,
	// ordered by name.
	Search(ctx context.Context, fragment string) ([]Item, error)

	// Ping checks the datastore is reachable.
	Ping(ctx context.Context) error

	// Close releases the datastore handle.
	Close() error
}

// CheckAdd validates Add arguments and returns the trimmed item name.
func CheckAdd(item string, qty int) (string, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return "", ErrInvalidItem
	}
	if qty <= 0 || qty > MaxQuantity {
		return "", ErrInvalidQuantity
	}
	return item, nil
}

// EscapeLike escapes the LIKE wildcards in s using backslash.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

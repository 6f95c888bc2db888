package inventory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/voxbridge/internal/fault"
)

// Memory is a process-local Store guarded by a mutex. It loses its contents
// on restart and is meant for development and tests.
type Memory struct {
	mu     sync.Mutex
	items  map[string]int
	closed bool
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]int)}
}

// Add implements Store.
func (m *Memory) Add(ctx context.Context, item string, qty int) (Item, error) {
	item, err := CheckAdd(item, qty)
	if err != nil {
		return Item{}, err
	}
	if err := ctx.Err(); err != nil {
		return Item{}, fault.Store("add", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Item{}, fault.Store("add", ErrClosed)
	}
	if m.items[item] > MaxQuantity-qty {
		return Item{}, fault.Store("add", ErrOverflow)
	}
	m.items[item] += qty
	return Item{Name: item, Quantity: m.items[item]}, nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context) ([]Item, error) {
	return m.find(ctx, "list", func(string) bool { return true })
}

// Search implements Store.
func (m *Memory) Search(ctx context.Context, fragment string) ([]Item, error) {
	frag := strings.ToLower(fragment)
	return m.find(ctx, "search", func(name string) bool {
		return strings.Contains(strings.ToLower(name), frag)
	})
}

func (m *Memory) find(ctx context.Context, op string, match func(string) bool) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Store(op, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fault.Store(op, ErrClosed)
	}
	var out []Item
	for name, qty := range m.items {
		if match(name) {
			out = append(out, Item{Name: name, Quantity: qty})
		}
	}
	slices.SortFunc(out, func(a, b Item) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Ping implements Store.
func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fault.Store("ping", ErrClosed)
	}
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

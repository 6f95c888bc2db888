package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/inventory"
	"github.com/MrWong99/voxbridge/internal/inventory/inventorytest"
)

func TestMemory_Contract(t *testing.T) {
	t.Parallel()
	inventorytest.Run(t, func(t *testing.T) inventory.Store {
		return inventory.NewMemory()
	})
}

func TestMemory_Closed(t *testing.T) {
	t.Parallel()
	m := inventory.NewMemory()
	_ = m.Close()
	_, err := m.Add(context.Background(), "flask", 1)
	if !fault.Is(err, fault.KindStore) || !errors.Is(err, inventory.ErrClosed) {
		t.Errorf("Add() after Close error = %v, want store fault wrapping ErrClosed", err)
	}
	if err := m.Ping(context.Background()); err == nil {
		t.Error("Ping() after Close expected error")
	}
}

func TestMemory_Overflow(t *testing.T) {
	t.Parallel()
	m := inventory.NewMemory()
	ctx := context.Background()
	if _, err := m.Add(ctx, "beakers", inventory.MaxQuantity-1); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	_, err := m.Add(ctx, "beakers", 2)
	if !fault.Is(err, fault.KindStore) || !errors.Is(err, inventory.ErrOverflow) {
		t.Errorf("Add() error = %v, want store fault wrapping ErrOverflow", err)
	}
	got, err := m.Add(ctx, "beakers", 1)
	if err != nil || got.Quantity != inventory.MaxQuantity {
		t.Errorf("Add() = %+v, %v; want beakers at MaxQuantity", got, err)
	}
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()
	if got := inventory.EscapeLike(`50%_a\b`); got != `50\%\_a\\b` {
		t.Errorf("EscapeLike() = %q", got)
	}
}

// Package inventorytest checks inventory.Store implementations against the
// shared contract.
package inventorytest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrWong99/voxbridge/internal/inventory"
)

// Run exercises a fresh, empty store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) inventory.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("AddAccumulates", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Add(ctx, "beakers", 2); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
		got, err := s.Add(ctx, "beakers", 3)
		if err != nil {
			t.Fatalf("Add() error: %v", err)
		}
		if got.Quantity != 5 || got.Name != "beakers" {
			t.Errorf("Add() = %+v, want beakers 5", got)
		}
		items, err := s.Search(ctx, "beakers")
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(items) != 1 || items[0].Quantity != 5 {
			t.Errorf("Search() = %+v, want one beakers row with 5", items)
		}
	})

	t.Run("ListOrdered", func(t *testing.T) {
		s := newStore(t)
		for _, it := range []inventory.Item{
			{Name: "test tubes", Quantity: 4},
			{Name: "beakers", Quantity: 2},
			{Name: "flask", Quantity: 1},
		} {
			if _, err := s.Add(ctx, it.Name, it.Quantity); err != nil {
				t.Fatalf("Add(%s) error: %v", it.Name, err)
			}
		}
		items, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		want := []inventory.Item{
			{Name: "beakers", Quantity: 2},
			{Name: "flask", Quantity: 1},
			{Name: "test tubes", Quantity: 4},
		}
		if len(items) != len(want) {
			t.Fatalf("List() = %+v, want %+v", items, want)
		}
		for i := range want {
			if items[i] != want[i] {
				t.Errorf("List()[%d] = %+v, want %+v", i, items[i], want[i])
			}
		}
	})

	t.Run("SearchSubstringCaseInsensitive", func(t *testing.T) {
		s := newStore(t)
		_, _ = s.Add(ctx, "glass beakers", 2)
		_, _ = s.Add(ctx, "beaker stand", 1)
		_, _ = s.Add(ctx, "flask", 1)
		items, err := s.Search(ctx, "BEAKER")
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(items) != 2 || items[0].Name != "beaker stand" || items[1].Name != "glass beakers" {
			t.Errorf("Search() = %+v, want beaker stand and glass beakers", items)
		}
	})

	t.Run("SearchNoMatch", func(t *testing.T) {
		s := newStore(t)
		_, _ = s.Add(ctx, "flask", 1)
		items, err := s.Search(ctx, "centrifuge")
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("Search() = %+v, want none", items)
		}
	})

	t.Run("SearchWildcardsAreLiteral", func(t *testing.T) {
		s := newStore(t)
		_, _ = s.Add(ctx, "flask", 1)
		items, err := s.Search(ctx, "%")
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("Search(%%) = %+v, want none", items)
		}
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Add(ctx, "  ", 1); !errors.Is(err, inventory.ErrInvalidItem) {
			t.Errorf("Add(blank) error = %v, want ErrInvalidItem", err)
		}
		if _, err := s.Add(ctx, "flask", 0); !errors.Is(err, inventory.ErrInvalidQuantity) {
			t.Errorf("Add(0) error = %v, want ErrInvalidQuantity", err)
		}
		if _, err := s.Add(ctx, "flask", inventory.MaxQuantity+1); !errors.Is(err, inventory.ErrInvalidQuantity) {
			t.Errorf("Add(MaxQuantity+1) error = %v, want ErrInvalidQuantity", err)
		}
	})

	t.Run("OverflowLeavesRow", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Add(ctx, "beakers", inventory.MaxQuantity); err != nil {
			t.Fatalf("Add(MaxQuantity) error: %v", err)
		}
		if _, err := s.Add(ctx, "beakers", 1); err == nil {
			t.Fatal("Add() past MaxQuantity expected error")
		}
		items, err := s.Search(ctx, "beakers")
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(items) != 1 || items[0].Quantity != inventory.MaxQuantity {
			t.Errorf("Search() = %+v, want beakers at MaxQuantity", items)
		}
	})

	t.Run("ConcurrentAdds", func(t *testing.T) {
		s := newStore(t)
		const n = 20
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Add(ctx, "pipettes", 1); err != nil {
					t.Errorf("Add() error: %v", err)
				}
			}()
		}
		wg.Wait()
		items, err := s.Search(ctx, "pipettes")
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(items) != 1 || items[0].Quantity != n {
			t.Errorf("Search() = %+v, want pipettes %d", items, n)
		}
	})
}

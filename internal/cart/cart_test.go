package cart

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"threadly/internal/model"
	"threadly/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(opts ...Option) (*Store, storage.Store) {
	kv := storage.NewMemory()
	return New(kv, quietLogger(), opts...), kv
}

func TestAddDoesNotMerge(t *testing.T) {
	ctx := context.Background()

	var badgeCount int
	var badgeVisible bool
	s, _ := newTestStore(WithBadge(func(count int, visible bool) {
		badgeCount, badgeVisible = count, visible
	}))

	item := model.CartItem{ID: "p1", Name: "Linen Kurta", Price: 120000, Color: "indigo", Size: "M"}
	if err := s.Add(ctx, item); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, item); err != nil {
		t.Fatalf("second Add: %v", err)
	}

	items := s.Items(ctx)
	if len(items) != 2 {
		t.Fatalf("rows = %d, want 2 (no merge on duplicate id)", len(items))
	}
	for i, it := range items {
		if it.ID != "p1" || it.Quantity != 1 {
			t.Errorf("row %d = id %q qty %d, want p1/1", i, it.ID, it.Quantity)
		}
		if it.Key == "" {
			t.Errorf("row %d has no key", i)
		}
	}
	if items[0].Key == items[1].Key {
		t.Error("duplicate rows share a key")
	}
	if badgeCount != 2 || !badgeVisible {
		t.Errorf("badge = %d/%v, want 2/visible", badgeCount, badgeVisible)
	}

	// Drain the duplicates one change at a time
	if err := s.ChangeQuantity(ctx, "p1", -1); err != nil {
		t.Fatalf("ChangeQuantity: %v", err)
	}
	if got := len(s.Items(ctx)); got != 1 {
		t.Fatalf("rows after first drain = %d, want 1", got)
	}
	if err := s.ChangeQuantity(ctx, "p1", -1); err != nil {
		t.Fatalf("ChangeQuantity: %v", err)
	}
	if !s.Empty(ctx) {
		t.Error("cart not empty after draining both rows")
	}
	if badgeCount != 0 || badgeVisible {
		t.Errorf("badge = %d/%v, want 0/hidden", badgeCount, badgeVisible)
	}
}

func TestQuantityInvariant(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	if err := s.Add(ctx, model.CartItem{ID: "p1", Price: 100}); err != nil {
		t.Fatal(err)
	}

	moves := []int{+3, -1, +2, -10, +1}
	for _, delta := range moves {
		if err := s.ChangeQuantity(ctx, "p1", delta); err != nil {
			t.Fatalf("ChangeQuantity(%d): %v", delta, err)
		}
		for _, it := range s.Items(ctx) {
			if it.Quantity <= 0 {
				t.Fatalf("persisted row with quantity %d after delta %d", it.Quantity, delta)
			}
		}
	}
}

func TestChangeQuantityRemovesAtZero(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	if err := s.Add(ctx, model.CartItem{ID: "p1", Price: 100}); err != nil {
		t.Fatal(err)
	}
	if err := s.ChangeQuantity(ctx, "p1", 2); err != nil {
		t.Fatal(err)
	}
	// quantity is now 3; -3 must remove the row, not leave zero
	if err := s.ChangeQuantity(ctx, "p1", -3); err != nil {
		t.Fatal(err)
	}
	if !s.Empty(ctx) {
		t.Errorf("items = %v, want empty", s.Items(ctx))
	}
}

func TestChangeQuantityUnknownIDIsNoop(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	if err := s.ChangeQuantity(ctx, "ghost", 1); err != nil {
		t.Errorf("ChangeQuantity on unknown id: %v", err)
	}
	if !s.Empty(ctx) {
		t.Error("cart should remain empty")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	items := []model.CartItem{
		{Key: "k1", ID: "p2", Name: "Silk Saree", Price: 450000, Quantity: 1, Color: "crimson"},
		{Key: "k2", ID: "p1", Name: "Linen Kurta", Price: 120000, Quantity: 3, Size: "L"},
	}
	if err := s.Save(ctx, items); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := s.Items(ctx)
	if len(got) != len(items) {
		t.Fatalf("rows = %d, want %d", len(got), len(items))
	}
	for i := range items {
		if got[i] != items[i] {
			t.Errorf("row %d = %+v, want %+v (order preserved)", i, got[i], items[i])
		}
	}
}

func TestCorruptStorageReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore()

	if err := kv.Set(ctx, StorageKey, "{{{not json"); err != nil {
		t.Fatal(err)
	}

	items := s.Items(ctx)
	if len(items) != 0 {
		t.Errorf("Items on corrupt storage = %v, want empty", items)
	}
	if s.BadgeCount(ctx) != 0 {
		t.Errorf("BadgeCount = %d, want 0", s.BadgeCount(ctx))
	}

	// The cart stays usable after recovery
	if err := s.Add(ctx, model.CartItem{ID: "p1", Price: 100}); err != nil {
		t.Fatalf("Add after recovery: %v", err)
	}
	if len(s.Items(ctx)) != 1 {
		t.Error("cart not writable after recovery")
	}
}

func TestConfirmationGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("declining remove keeps state", func(t *testing.T) {
		s, _ := newTestStore(WithConfirmer(ConfirmerFunc(func(string) bool { return false })))
		if err := s.Add(ctx, model.CartItem{ID: "p1", Price: 100}); err != nil {
			t.Fatal(err)
		}

		removed, err := s.Remove(ctx, "p1")
		if err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if removed {
			t.Error("Remove reported success after declined confirmation")
		}
		if s.Empty(ctx) {
			t.Error("item vanished despite declined confirmation")
		}
	})

	t.Run("declining clear keeps state", func(t *testing.T) {
		s, _ := newTestStore(WithConfirmer(ConfirmerFunc(func(string) bool { return false })))
		if err := s.Add(ctx, model.CartItem{ID: "p1", Price: 100}); err != nil {
			t.Fatal(err)
		}

		cleared, err := s.Clear(ctx)
		if err != nil || cleared {
			t.Errorf("Clear = %v, %v; want false, nil", cleared, err)
		}
		if s.Empty(ctx) {
			t.Error("cart cleared despite declined confirmation")
		}
	})

	t.Run("accepting clears", func(t *testing.T) {
		s, _ := newTestStore(WithConfirmer(ConfirmerFunc(func(string) bool { return true })))
		if err := s.Add(ctx, model.CartItem{ID: "p1", Price: 100}); err != nil {
			t.Fatal(err)
		}

		cleared, err := s.Clear(ctx)
		if err != nil || !cleared {
			t.Fatalf("Clear = %v, %v; want true, nil", cleared, err)
		}
		if !s.Empty(ctx) {
			t.Error("cart not empty after confirmed clear")
		}
	})
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	if err := s.Add(ctx, model.CartItem{Price: 100}); err == nil {
		t.Error("expected error for missing product id")
	}
	if err := s.Add(ctx, model.CartItem{ID: "p1", Price: -5}); err == nil {
		t.Error("expected error for negative price")
	}
}

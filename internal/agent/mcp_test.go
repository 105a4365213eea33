package agent

import (
	"context"
	"testing"

	"threadly/internal/cart"
	"threadly/internal/session"
	"threadly/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	kv := storage.NewMemory()
	cartStore := cart.New(kv, nil)
	sessions := session.New(kv, nil, nil)
	return New(cartStore, sessions, nil)
}

func TestMCPServerConstruction(t *testing.T) {
	s := newTestServer(t)
	if s.MCPServer() == nil {
		t.Fatal("expected a server")
	}
}

func TestAddAndViewCart(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, view, err := s.addToCart(ctx, nil, AddItemInput{
		ID:    "p1",
		Name:  "Linen Kurta",
		Price: "1499.00",
		Size:  "M",
	})
	if err != nil {
		t.Fatalf("addToCart: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(view.Items))
	}
	if view.Items[0].Price != 149900 {
		t.Errorf("price = %d paise, want 149900", view.Items[0].Price)
	}
	if view.Empty {
		t.Error("view reports empty after add")
	}

	// Same id again adds a second line, not a merge.
	_, view, err = s.addToCart(ctx, nil, AddItemInput{ID: "p1"})
	if err != nil {
		t.Fatalf("addToCart: %v", err)
	}
	if len(view.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(view.Items))
	}
}

func TestAddRequiresID(t *testing.T) {
	s := newTestServer(t)
	if _, _, err := s.addToCart(context.Background(), nil, AddItemInput{}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestChangeQuantityAndRemove(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	if _, _, err := s.addToCart(ctx, nil, AddItemInput{ID: "p1"}); err != nil {
		t.Fatalf("addToCart: %v", err)
	}

	_, view, err := s.changeQuantity(ctx, nil, ChangeQuantityInput{ID: "p1", Delta: 2})
	if err != nil {
		t.Fatalf("changeQuantity: %v", err)
	}
	if view.Items[0].Quantity != 3 {
		t.Errorf("quantity = %d, want 3", view.Items[0].Quantity)
	}

	if _, _, err := s.changeQuantity(ctx, nil, ChangeQuantityInput{ID: "p1"}); err == nil {
		t.Error("expected error for zero delta")
	}

	_, view, err = s.removeItem(ctx, nil, RemoveItemInput{ID: "p1"})
	if err != nil {
		t.Fatalf("removeItem: %v", err)
	}
	if !view.Empty {
		t.Error("expected empty cart after remove")
	}

	if _, _, err := s.removeItem(ctx, nil, RemoveItemInput{ID: "p1"}); err == nil {
		t.Error("expected error removing from empty cart")
	}
}

func TestClearCart(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for range 3 {
		if _, _, err := s.addToCart(ctx, nil, AddItemInput{ID: "p9"}); err != nil {
			t.Fatalf("addToCart: %v", err)
		}
	}

	_, view, err := s.clearCart(ctx, nil, emptyInput{})
	if err != nil {
		t.Fatalf("clearCart: %v", err)
	}
	if !view.Empty || len(view.Items) != 0 {
		t.Errorf("expected empty cart, got %d items", len(view.Items))
	}
}

func TestWhoamiEmpty(t *testing.T) {
	s := newTestServer(t)
	_, view, err := s.whoami(context.Background(), nil, emptyInput{})
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if view.LoggedIn {
		t.Error("expected logged out")
	}
}

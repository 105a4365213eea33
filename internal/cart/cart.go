// Package cart is the single writer of the persisted cart key. It keeps the
// stored line items well-formed (no zero-quantity rows), derives the badge
// count, and guards destructive mutations behind a confirmation step.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"threadly/internal/model"
	"threadly/internal/storage"
)

// StorageKey holds the JSON array of line items.
const StorageKey = "threadly_cart"

// Confirmer answers the "are you sure" prompt before destructive mutations.
// Returning false aborts the mutation with no state change and no error.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(prompt string) bool

func (f ConfirmerFunc) Confirm(prompt string) bool { return f(prompt) }

// BadgeFunc receives the derived badge state after every save: the sum of
// quantities and whether the badge should be visible (hidden at zero).
type BadgeFunc func(count int, visible bool)

// Store reads and mutates the persisted cart.
type Store struct {
	kv      storage.Store
	log     *slog.Logger
	confirm Confirmer
	badge   BadgeFunc
}

// Option configures a Store.
type Option func(*Store)

// WithConfirmer installs the confirmation hook for Remove and Clear.
// Without one, destructive mutations proceed unprompted.
func WithConfirmer(c Confirmer) Option {
	return func(s *Store) { s.confirm = c }
}

// WithBadge installs the badge listener invoked after every save.
func WithBadge(fn BadgeFunc) Option {
	return func(s *Store) { s.badge = fn }
}

// New creates a cart store over kv.
func New(kv storage.Store, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{kv: kv, log: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadResult tags how a read went: a recovered read means the stored value
// was unusable and the empty cart was substituted.
type loadResult struct {
	items     []model.CartItem
	recovered bool
	reason    string
}

// Items returns the current cart. Missing or corrupt storage reads as an
// empty cart; corruption is logged, never surfaced — availability over
// correctness for a client-side cart.
func (s *Store) Items(ctx context.Context) []model.CartItem {
	return s.load(ctx).items
}

func (s *Store) load(ctx context.Context) loadResult {
	raw, found, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		s.log.Warn("cart read failed, treating as empty",
			slog.String("error", err.Error()))
		return loadResult{recovered: true, reason: "storage read failed"}
	}
	if !found || raw == "" {
		return loadResult{}
	}

	var items []model.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.log.Warn("corrupt cart payload, recovering with empty cart",
			slog.String("error", err.Error()))
		return loadResult{recovered: true, reason: "malformed JSON"}
	}
	return loadResult{items: items}
}

// Save overwrites the stored cart with items (order preserved) and pushes
// the derived badge state to the listener.
func (s *Store) Save(ctx context.Context, items []model.CartItem) error {
	if items == nil {
		items = []model.CartItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding cart: %w", err)
	}
	if err := s.kv.Set(ctx, StorageKey, string(raw)); err != nil {
		return fmt.Errorf("persisting cart: %w", err)
	}

	if s.badge != nil {
		count := model.Summarize(items).ItemCount
		s.badge(count, count > 0)
	}
	return nil
}

// Add appends item as a new row with quantity 1. No dedup by product id:
// adding a product already in the cart produces a second row. Each row gets
// its own key so duplicates stay individually addressable.
func (s *Store) Add(ctx context.Context, item model.CartItem) error {
	if item.ID == "" {
		return model.NewValidationError("id", "product id is required")
	}
	if item.Price < 0 {
		return model.NewValidationError("price", "must not be negative")
	}

	item.Quantity = 1
	if item.Key == "" {
		item.Key = uuid.NewString()
	}

	items := append(s.Items(ctx), item)
	return s.Save(ctx, items)
}

// ChangeQuantity adds delta to the first row whose product id matches id.
// Driving the quantity to zero or below removes the row entirely; a cart
// never persists a row with quantity <= 0. Unknown ids are a no-op.
func (s *Store) ChangeQuantity(ctx context.Context, id string, delta int) error {
	items := s.Items(ctx)
	for i, it := range items {
		if it.ID != id {
			continue
		}
		if it.Quantity+delta <= 0 {
			items = append(items[:i], items[i+1:]...)
		} else {
			items[i].Quantity += delta
		}
		return s.Save(ctx, items)
	}
	return nil
}

// Remove deletes the first row matching id, behind the confirmation guard.
// Reports whether a row was removed; declining the prompt is not an error.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	if !s.confirmed("Remove this item from your cart?") {
		return false, nil
	}

	items := s.Items(ctx)
	for i, it := range items {
		if it.ID == id {
			items = append(items[:i], items[i+1:]...)
			return true, s.Save(ctx, items)
		}
	}
	return false, nil
}

// Clear empties the cart, behind the confirmation guard.
func (s *Store) Clear(ctx context.Context) (bool, error) {
	if !s.confirmed("Remove all items from your cart?") {
		return false, nil
	}
	return true, s.Save(ctx, nil)
}

// BadgeCount returns the sum of quantities across the cart.
func (s *Store) BadgeCount(ctx context.Context) int {
	return model.Summarize(s.Items(ctx)).ItemCount
}

// Summary returns the derived totals for the current cart.
func (s *Store) Summary(ctx context.Context) model.CartSummary {
	return model.Summarize(s.Items(ctx))
}

// Empty reports whether the cart has no rows. The cart renders either the
// "start shopping" prompt (empty) or the itemized list (populated).
func (s *Store) Empty(ctx context.Context) bool {
	return len(s.Items(ctx)) == 0
}

func (s *Store) confirmed(prompt string) bool {
	if s.confirm == nil {
		return true
	}
	return s.confirm.Confirm(prompt)
}

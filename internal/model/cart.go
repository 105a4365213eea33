// Package model defines the shared domain types for the Threadly client core:
// cart line items, session identity, and the error taxonomy used by the API
// client and stores.
package model

// CartItem is one row of the persisted cart.
//
// Rows are append-only on add: adding a product that is already in the cart
// produces a second row rather than merging quantities, so rows carry their
// own Key to stay individually addressable. Price is the unit price in paise.
type CartItem struct {
	Key      string `json:"key,omitempty"` // row identifier, assigned on add
	ID       string `json:"id"`            // product id
	Name     string `json:"name"`
	Price    int64  `json:"price"` // unit price in paise
	Quantity int    `json:"quantity"`
	Color    string `json:"color,omitempty"`
	Size     string `json:"size,omitempty"`
	Image    string `json:"image,omitempty"`
}

// CartSummary holds the derived totals for a populated cart.
type CartSummary struct {
	ItemCount int   `json:"item_count"` // sum of quantities, drives the badge
	Subtotal  int64 `json:"subtotal"`   // paise
	Shipping  int64 `json:"shipping"`   // paise
	Total     int64 `json:"total"`      // paise
}

// flatShippingPaise is charged on every non-empty cart. Free-shipping
// promotions are applied server-side at checkout, not here.
const flatShippingPaise = 9900

// Summarize derives totals from a cart snapshot. An empty cart yields the
// zero summary (no shipping on nothing).
func Summarize(items []CartItem) CartSummary {
	var s CartSummary
	for _, it := range items {
		s.ItemCount += it.Quantity
		s.Subtotal += it.Price * int64(it.Quantity)
	}
	if s.ItemCount > 0 {
		s.Shipping = flatShippingPaise
	}
	s.Total = s.Subtotal + s.Shipping
	return s
}

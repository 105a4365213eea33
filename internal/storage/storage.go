// Package storage provides the persisted key-value layer backing the cart
// and session stores. Backends: in-memory (tests, single process), a JSON
// file (local portals), and Redis (shared across devices).
//
// All mutations are full read-modify-write with last-writer-wins; there is
// no compare-and-swap, so two concurrent writers can lose updates. Callers
// accept that for this data.
package storage

import "context"

// Store is the minimal contract the cart and session stores need.
// Get reports found=false for a missing key; absence is never an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Package endpoint decides which backend host a portal talks to and builds
// request URLs against it. Resolution happens once per Resolver; the chosen
// base never changes for the lifetime of the instance.
package endpoint

import (
	"context"
	"strings"

	"threadly/internal/storage"
)

// PersistKey is the storage key a deployment can write to redirect all
// traffic without a code change. Consulted after the in-config overrides.
const PersistKey = "threadly_api_base"

// Default fallback hosts for the production-fallback policy.
const (
	defaultLocalBase      = "http://localhost:5000"
	defaultProductionBase = "https://api.threadly.in"
)

// FallbackMode selects the last step of the resolution chain. The portals
// historically disagreed on this, so it stays an explicit choice.
type FallbackMode string

const (
	// FallbackProduction picks the local-development host when the portal
	// runs on localhost and the fixed production host otherwise.
	FallbackProduction FallbackMode = "production"

	// FallbackRelative resolves to the empty base, meaning requests use
	// paths relative to the current origin.
	FallbackRelative FallbackMode = "relative"
)

// Config holds the inputs the resolution chain consults, in precedence
// order: Explicit, Alternate, the persisted override, the derived origin,
// then the mode-selected fallback.
type Config struct {
	Explicit  string // highest-priority override
	Alternate string // secondary override

	Origin   string // the portal page's origin, e.g. "https://vendor.threadly.in"
	Hostname string // current hostname, drives localhost detection

	Fallback       FallbackMode // zero value behaves as FallbackProduction
	LocalBase      string       // optional, defaults to defaultLocalBase
	ProductionBase string       // optional, defaults to defaultProductionBase
}

// Resolver holds the base chosen at construction time.
type Resolver struct {
	base string
}

// New resolves the base once and returns an immutable Resolver.
// Resolution is total: it always produces a usable string, worst case ""
// (relative paths). A failing persisted-override read is skipped, not
// surfaced — an unreachable store must not take the portal down with it.
func New(ctx context.Context, cfg Config, store storage.Store) *Resolver {
	return &Resolver{base: resolve(ctx, cfg, store)}
}

// Base returns the resolved base, without a trailing slash.
func (r *Resolver) Base() string {
	return r.base
}

// BuildURL joins path onto the resolved base, guaranteeing exactly one
// slash between them. Passing an already-built URL back in returns it
// unchanged rather than doubling the base. No escaping is performed.
func (r *Resolver) BuildURL(path string) string {
	if r.base != "" && strings.HasPrefix(path, r.base) {
		return path
	}
	return r.base + "/" + strings.TrimLeft(path, "/")
}

func resolve(ctx context.Context, cfg Config, store storage.Store) string {
	if base, ok := accept(cfg.Explicit); ok {
		return base
	}
	if base, ok := accept(cfg.Alternate); ok {
		return base
	}
	if store != nil {
		if persisted, found, err := store.Get(ctx, PersistKey); err == nil && found {
			if base, ok := accept(persisted); ok {
				return base
			}
		}
	}
	if strings.HasPrefix(cfg.Origin, "http://") || strings.HasPrefix(cfg.Origin, "https://") {
		if base, ok := accept(cfg.Origin); ok {
			return base
		}
	}
	return fallback(cfg)
}

// accept trims trailing slashes and rejects candidates that end up empty.
func accept(candidate string) (string, bool) {
	trimmed := strings.TrimRight(candidate, "/")
	return trimmed, trimmed != ""
}

func fallback(cfg Config) string {
	if cfg.Fallback == FallbackRelative {
		return ""
	}
	if cfg.Hostname == "localhost" {
		if cfg.LocalBase != "" {
			return strings.TrimRight(cfg.LocalBase, "/")
		}
		return defaultLocalBase
	}
	if cfg.ProductionBase != "" {
		return strings.TrimRight(cfg.ProductionBase, "/")
	}
	return defaultProductionBase
}

// Package session persists the logged-in user's identity as flat string
// keys, plus a few cached backend statuses pages read to skip redundant
// fetches. Fields are independently settable; only logout touches them all.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"threadly/internal/api"
	"threadly/internal/model"
	"threadly/internal/storage"
)

// Identity field keys.
const (
	KeyUserID   = "threadly_user_id"
	KeyRole     = "threadly_role"
	KeyUsername = "threadly_username"
	KeyEmail    = "threadly_email"
	KeyPhone    = "threadly_phone"
	KeyToken    = "threadly_token"
)

// Cached-status keys. Best-effort caches of last-known backend state; pages
// read them to avoid redundant fetches and refresh them opportunistically.
const (
	KeyVerificationStatus = "threadly_verification_status"
	KeyQuotationStatus    = "threadly_quotation_status"
	KeyUnreadCount        = "threadly_unread_count"
)

// allKeys is everything logout wipes.
var allKeys = []string{
	KeyUserID, KeyRole, KeyUsername, KeyEmail, KeyPhone, KeyToken,
	KeyVerificationStatus, KeyQuotationStatus, KeyUnreadCount,
}

// logoutPath is notified best-effort on logout so cookie sessions get
// invalidated server-side. Bearer portals simply discard the token.
const logoutPath = "/api/logout"

// defaultEntryURL is where logout lands when no entry point is configured.
const defaultEntryURL = "/login"

// RedirectFunc performs the hard navigation after logout. A hard navigation
// (full reload, not a soft route change) guarantees no stale in-memory
// state survives.
type RedirectFunc func(url string)

// Store reads and mutates the persisted session.
type Store struct {
	kv       storage.Store
	client   *api.Client
	log      *slog.Logger
	redirect RedirectFunc
	entryURL string
}

// Option configures a Store.
type Option func(*Store)

// WithRedirect installs the navigation hook logout calls after clearing.
func WithRedirect(fn RedirectFunc) Option {
	return func(s *Store) { s.redirect = fn }
}

// WithEntryURL overrides the post-logout destination.
func WithEntryURL(url string) Option {
	return func(s *Store) { s.entryURL = url }
}

// New creates a session store over kv. client may be nil for portals that
// never notify the backend on logout.
func New(kv storage.Store, client *api.Client, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{kv: kv, client: client, log: logger, entryURL: defaultEntryURL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set writes one field. No validation of the value's shape.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.kv.Set(ctx, key, value)
}

// Get reads one field; found is false after logout or before login.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	v, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn("session read failed", slog.String("key", key), slog.String("error", err.Error()))
		return "", false
	}
	return v, found
}

// SaveIdentity persists the identity fields and credential after a
// successful login. Empty fields are skipped, not cleared.
func (s *Store) SaveIdentity(ctx context.Context, sess model.Session, token string) error {
	fields := map[string]string{
		KeyUserID:   sess.UserID,
		KeyRole:     string(sess.Role),
		KeyUsername: sess.Username,
		KeyEmail:    sess.Email,
		KeyPhone:    sess.Phone,
		KeyToken:    token,
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := s.kv.Set(ctx, key, value); err != nil {
			return fmt.Errorf("saving session field %s: %w", key, err)
		}
	}
	return nil
}

// Snapshot assembles the current identity from the stored fields.
func (s *Store) Snapshot(ctx context.Context) model.Session {
	sess := model.Session{
		UserID:   s.field(ctx, KeyUserID),
		Username: s.field(ctx, KeyUsername),
		Email:    s.field(ctx, KeyEmail),
		Phone:    s.field(ctx, KeyPhone),
	}
	if role := model.Role(s.field(ctx, KeyRole)); role.Valid() {
		sess.Role = role
	}
	return sess
}

// Token returns the stored bearer credential, if any.
func (s *Store) Token(ctx context.Context) (string, bool) {
	return s.Get(ctx, KeyToken)
}

// TokenClaims is the subset of bearer-token claims the portals care about.
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Claims peeks at the stored bearer token's claims without verifying the
// signature — verification is the backend's job; this is a convenience for
// pages that want the role or subject without a round trip.
func (s *Store) Claims(ctx context.Context) (*TokenClaims, error) {
	token, found := s.Token(ctx)
	if !found {
		return nil, model.NewUnauthorizedError("no stored credential")
	}

	var claims TokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("parsing stored token: %w", err)
	}
	return &claims, nil
}

// Logout notifies the backend best-effort, unconditionally clears every
// session field and credential, then hard-navigates to the entry point.
// A failed logout call is logged and ignored: the local session dies
// either way.
func (s *Store) Logout(ctx context.Context) error {
	if s.client != nil {
		resp, err := s.client.Do(ctx, http.MethodPost, logoutPath, nil)
		if err != nil {
			s.log.Warn("logout notification failed", slog.String("error", err.Error()))
		} else {
			resp.Body.Close()
		}
	}

	var errs []error
	for _, key := range allKeys {
		if err := s.kv.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("clearing %s: %w", key, err))
		}
	}

	if s.redirect != nil {
		s.redirect(s.entryURL)
	}
	return errors.Join(errs...)
}

func (s *Store) field(ctx context.Context, key string) string {
	v, _ := s.Get(ctx, key)
	return v
}

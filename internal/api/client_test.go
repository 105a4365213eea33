package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dunglas/httpsfv"

	"threadly/internal/endpoint"
	"threadly/internal/model"
)

// newTestClient builds a client resolved against the given test server.
func newTestClient(t *testing.T, server *httptest.Server, mode CredentialMode) *Client {
	t.Helper()
	r := endpoint.New(context.Background(), endpoint.Config{Explicit: server.URL}, nil)
	c, err := New(Config{Resolver: r, Mode: mode, Portal: model.RoleCustomer})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewValidation(t *testing.T) {
	r := endpoint.New(context.Background(), endpoint.Config{Explicit: "https://api.example"}, nil)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing resolver", Config{Mode: CredentialCookie, Portal: model.RoleAdmin}},
		{"missing mode", Config{Resolver: r, Portal: model.RoleAdmin}},
		{"bad mode", Config{Resolver: r, Mode: "basic", Portal: model.RoleAdmin}},
		{"missing portal", Config{Resolver: r, Mode: CredentialBearer}},
		{"unknown portal", Config{Resolver: r, Mode: CredentialBearer, Portal: "warehouse"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestContentTypeInjection(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer server.Close()

	c := newTestClient(t, server, CredentialBearer)
	ctx := context.Background()

	t.Run("body without content type gets JSON default", func(t *testing.T) {
		resp, err := c.Post(ctx, "/api/orders", map[string]string{"id": "o1"}, nil)
		if err != nil {
			t.Fatalf("Post: %v", err)
		}
		resp.Body.Close()
		if gotContentType != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", gotContentType)
		}
	})

	t.Run("explicit content type left untouched", func(t *testing.T) {
		h := http.Header{}
		h.Set("Content-Type", "text/plain")
		resp, err := c.Do(ctx, http.MethodPost, "/api/orders", &RequestOptions{
			Headers: h,
			Body:    []byte("raw"),
		})
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		resp.Body.Close()
		if gotContentType != "text/plain" {
			t.Errorf("Content-Type = %q, want text/plain", gotContentType)
		}
	})

	t.Run("no body means no content type default", func(t *testing.T) {
		resp, err := c.Get(ctx, "/api/orders", nil)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		resp.Body.Close()
		if gotContentType != "" {
			t.Errorf("Content-Type = %q, want empty", gotContentType)
		}
	})
}

func TestClientMetaHeader(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Threadly-Client")
	}))
	defer server.Close()

	c := newTestClient(t, server, CredentialBearer)
	resp, err := c.Get(context.Background(), "/api/ping", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	dict, err := httpsfv.UnmarshalDictionary([]string{got})
	if err != nil {
		t.Fatalf("header %q is not a valid sfv dictionary: %v", got, err)
	}
	member, ok := dict.Get("portal")
	if !ok {
		t.Fatal("portal key missing from Threadly-Client header")
	}
	item, ok := member.(httpsfv.Item)
	if !ok || item.Value != "customer" {
		t.Errorf("portal = %v, want customer", member)
	}
	if _, ok := dict.Get("version"); !ok {
		t.Error("version key missing from Threadly-Client header")
	}
}

func TestCookieModeAlwaysSendsCredentials(t *testing.T) {
	var sawCookie string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/authenticate", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "threadly_session", Value: "s3cret", Path: "/", HttpOnly: true})
	})
	mux.HandleFunc("/api/customer/orders", func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("threadly_session"); err == nil {
			sawCookie = cookie.Value
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(t, server, CredentialCookie)
	ctx := context.Background()

	resp, err := c.Post(ctx, "/api/authenticate", map[string]string{"phone": "9999"}, nil)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	resp.Body.Close()

	// There is no per-call option to omit credentials; the jar rides along
	// on every subsequent request.
	resp, err = c.Get(ctx, "/api/customer/orders", nil)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	resp.Body.Close()

	if sawCookie != "s3cret" {
		t.Errorf("session cookie = %q, want s3cret", sawCookie)
	}
}

func TestBearerMode(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	ctx := context.Background()

	t.Run("bearer option attaches header", func(t *testing.T) {
		c := newTestClient(t, server, CredentialBearer)
		resp, err := c.Get(ctx, "/api/vendor/products", &RequestOptions{Bearer: "tok123"})
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		resp.Body.Close()
		if gotAuth != "Bearer tok123" {
			t.Errorf("Authorization = %q, want Bearer tok123", gotAuth)
		}
	})

	t.Run("cookie mode ignores bearer option", func(t *testing.T) {
		c := newTestClient(t, server, CredentialCookie)
		resp, err := c.Get(ctx, "/api/vendor/products", &RequestOptions{Bearer: "tok123"})
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		resp.Body.Close()
		if gotAuth != "" {
			t.Errorf("Authorization = %q, want empty in cookie mode", gotAuth)
		}
	})
}

func TestNetworkErrorPropagates(t *testing.T) {
	// A server that is already closed refuses connections.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, server, CredentialBearer)
	server.Close()

	if _, err := c.Get(context.Background(), "/api/ping", nil); err == nil {
		t.Error("expected network error from closed server")
	}
}

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", 401, `{"message":"token expired"}`, model.ErrUnauthorized},
		{"forbidden maps to unauthorized", 403, ``, model.ErrUnauthorized},
		{"not found", 404, ``, model.ErrNotFound},
		{"bad request", 400, `{"error":"missing phone"}`, model.ErrInvalidRequest},
		{"rate limited", 429, ``, model.ErrRateLimited},
		{"server error", 500, `<html>Internal Server Error</html>`, model.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server, CredentialBearer)
			resp, err := c.Get(context.Background(), "/api/x", nil)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}

			decoded := DecodeError(resp)
			if !errors.Is(decoded, tt.want) {
				t.Errorf("DecodeError = %v, want errors.Is %v", decoded, tt.want)
			}
		})
	}
}

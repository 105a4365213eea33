// Package api implements the authenticated HTTP client every portal page
// routes its backend calls through. It owns default-header injection and
// the per-portal credential policy; everything else about a response is
// the caller's business.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/dunglas/httpsfv"

	"threadly/internal/endpoint"
	"threadly/internal/model"
	"threadly/internal/transport"
)

// CredentialMode is how a portal authenticates to the API.
type CredentialMode string

const (
	// CredentialCookie portals ride on the cross-subdomain HttpOnly session
	// cookie. The client always carries its cookie jar; callers cannot opt
	// out of sending credentials.
	CredentialCookie CredentialMode = "cookie"

	// CredentialBearer portals store a token client-side and send it as an
	// Authorization header. Supplying the token is the caller's job, via
	// RequestOptions.Bearer.
	CredentialBearer CredentialMode = "bearer"
)

// userAgent identifies portal clients to the API and its CDN.
const userAgent = "ThreadlyPortal/1.0"

// clientHeader is the RFC 8941 dictionary header identifying the calling
// portal, e.g. `portal="customer", version="1.0.0"`.
const clientHeader = "Threadly-Client"

// Config for constructing a Client.
type Config struct {
	Resolver *endpoint.Resolver
	Mode     CredentialMode
	Portal   model.Role // advertised in the Threadly-Client header

	Version string        // client version for the header, default "1.0.0"
	Timeout time.Duration // default 30s

	// BrowserFingerprint enables the Chrome TLS fingerprint transport.
	// Needed for portals behind the production CDN WAF.
	BrowserFingerprint bool
}

// Client issues credentialed requests against the resolved API base.
type Client struct {
	httpClient *http.Client
	resolver   *endpoint.Resolver
	mode       CredentialMode
	meta       string // prebuilt Threadly-Client header value
}

// RequestOptions carries the per-call knobs. All fields are optional.
type RequestOptions struct {
	// Headers are copied onto the request. A caller-supplied Content-Type
	// suppresses the JSON default.
	Headers http.Header

	// Body is marshaled to JSON unless it is []byte or json.RawMessage,
	// which pass through untouched.
	Body any

	// Bearer is attached as "Authorization: Bearer <token>" on
	// bearer-mode clients. Ignored in cookie mode, where the session
	// cookie is the credential.
	Bearer string
}

// New validates the config and constructs a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("endpoint resolver is required")
	}
	switch cfg.Mode {
	case CredentialCookie, CredentialBearer:
	default:
		return nil, fmt.Errorf("credential mode is required (cookie or bearer)")
	}
	if !cfg.Portal.Valid() {
		return nil, fmt.Errorf("portal role is required")
	}

	version := cfg.Version
	if version == "" {
		version = "1.0.0"
	}
	meta, err := buildClientMeta(cfg.Portal, version)
	if err != nil {
		return nil, fmt.Errorf("building client header: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	if cfg.BrowserFingerprint {
		httpClient.Transport = transport.NewBrowserTransport(timeout)
	}
	if cfg.Mode == CredentialCookie {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	return &Client{
		httpClient: httpClient,
		resolver:   cfg.Resolver,
		mode:       cfg.Mode,
		meta:       meta,
	}, nil
}

// Do issues one request against the resolved base and returns the raw
// response. No retry, no auto JSON parse: callers inspect ok/status and
// content type themselves, and network errors propagate unmodified.
func (c *Client) Do(ctx context.Context, method, path string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	bodyReader, hasBody, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolver.BuildURL(path), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range opts.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if hasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(clientHeader, c.meta)

	if c.mode == CredentialBearer && opts.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Bearer)
	}

	return c.httpClient.Do(req)
}

// Get issues a GET with no body.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, opts)
}

// Post issues a POST with the given body.
func (c *Client) Post(ctx context.Context, path string, body any, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	opts.Body = body
	return c.Do(ctx, http.MethodPost, path, opts)
}

// Mode returns the client's credential mode.
func (c *Client) Mode() CredentialMode {
	return c.mode
}

// DecodeError drains resp and converts a >=400 status into the matching
// *model.APIError. Call only after checking resp.StatusCode; the client
// itself never inspects responses.
func DecodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var apiBody struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	json.Unmarshal(body, &apiBody) // best effort, may be an HTML error page
	msg := apiBody.Message
	if msg == "" {
		msg = apiBody.Error
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg == "" {
			msg = "session expired or invalid"
		}
		return model.NewUnauthorizedError(msg)
	case http.StatusNotFound:
		return model.NewNotFoundError("resource")
	case http.StatusBadRequest:
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case http.StatusTooManyRequests:
		return model.NewRateLimitError("Threadly API")
	default:
		return model.NewUpstreamError("Threadly API",
			fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
}

// encodeBody turns the options body into a reader. []byte and
// json.RawMessage pass through; anything else is marshaled as JSON.
func encodeBody(body any) (io.Reader, bool, error) {
	switch b := body.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		return bytes.NewReader(b), true, nil
	case json.RawMessage:
		return bytes.NewReader(b), true, nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, false, fmt.Errorf("marshaling request body: %w", err)
		}
		return bytes.NewReader(raw), true, nil
	}
}

// buildClientMeta renders the Threadly-Client dictionary header.
func buildClientMeta(portal model.Role, version string) (string, error) {
	dict := httpsfv.NewDictionary()
	dict.Add("portal", httpsfv.NewItem(string(portal)))
	dict.Add("version", httpsfv.NewItem(version))
	return httpsfv.Marshal(dict)
}

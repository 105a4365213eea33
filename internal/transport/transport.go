// Package transport provides the HTTP transport used when portals talk to
// the production API through its CDN.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// The production CDN's WAF rate-limits clients whose TLS fingerprint does
// not look like a browser, which hits Go's default TLS client hard. This
// transport presents Chrome's fingerprint via uTLS and lets ALPN pick
// HTTP/2 or HTTP/1.1.

// NewBrowserTransport returns an http.RoundTripper with a Chrome TLS
// fingerprint. Use it for portals deployed behind the production CDN;
// local development talks plain HTTP and does not need it.
func NewBrowserTransport(dialTimeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: dialTimeout}

	return &browserTransport{
		h2: &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialFingerprinted(ctx, dialer, network, addr)
			},
		},
		h1: &http.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialFingerprinted(ctx, dialer, network, addr)
			},
			ForceAttemptHTTP2: false,
		},
	}
}

// browserTransport tries HTTP/2 first and falls back to HTTP/1.1 for
// servers that never negotiate h2.
type browserTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	return t.h1.RoundTrip(req)
}

// dialFingerprinted establishes a TLS connection presenting Chrome's
// ClientHello, with SNI taken from the target address.
func dialFingerprinted(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return tlsConn, nil
}

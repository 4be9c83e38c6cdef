package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// Roots selects how server certificates are verified.
type Roots string

const (
	// RootsSystem verifies against the operating system trust store.
	RootsSystem Roots = "system"
	// RootsBundle verifies against a PEM bundle read from TransportOptions.CAFile.
	RootsBundle Roots = "bundle"
	// RootsPlain disables TLS entirely; only http:// URLs are accepted.
	RootsPlain Roots = "plain"
)

const (
	dialTimeout         = 10 * time.Second
	keepAlive           = 30 * time.Second
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
	maxIdleConns        = 100
)

// TransportOptions configures the connection layer used by RestyClient.
type TransportOptions struct {
	Roots Roots
	// CAFile is the PEM bundle used with RootsBundle.
	CAFile string
	// DNSServer, when set, is a host:port queried by the pure-Go resolver
	// instead of the system resolver.
	DNSServer string
}

// ParseRoots maps a config string onto a Roots value. Empty means RootsSystem.
func ParseRoots(s string) (Roots, error) {
	switch r := Roots(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RootsSystem, nil
	case RootsSystem, RootsBundle, RootsPlain:
		return r, nil
	default:
		return "", fmt.Errorf("unsupported tls roots %q", s)
	}
}

// NewTransport builds an http.RoundTripper for opts.
func NewTransport(opts TransportOptions) (http.RoundTripper, error) {
	roots, err := ParseRoots(string(opts.Roots))
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: keepAlive,
		Resolver:  newResolver(strings.TrimSpace(opts.DNSServer)),
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: time.Second,
	}

	switch roots {
	case RootsSystem:
		transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	case RootsBundle:
		pool, err := loadCertPool(opts.CAFile)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	case RootsPlain:
		return plainTransport{next: transport}, nil
	}
	return transport, nil
}

// newResolver returns nil (system resolver) when server is empty.
func newResolver(server string) *net.Resolver {
	if server == "" {
		return nil
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: dialTimeout}
			return d.DialContext(ctx, network, server)
		},
	}
}

func loadCertPool(path string) (*x509.CertPool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("bundle roots require a ca file")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(raw) {
		return nil, fmt.Errorf("ca file %q contains no PEM certificates", path)
	}
	return pool, nil
}

// plainTransport refuses anything but cleartext http.
type plainTransport struct {
	next http.RoundTripper
}

func (p plainTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "http" {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, fmt.Errorf("plain transport cannot dial %s scheme", req.URL.Scheme)
	}
	return p.next.RoundTrip(req)
}

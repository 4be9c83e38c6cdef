package httpclient

import (
	"context"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var _ Client = (*RestyClient)(nil)

func TestRestyClientPostSendsBodyAndHeaders(t *testing.T) {
	var gotBody, gotCT, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotCT = r.Header.Get("Content-Type")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewRestyClient(2 * time.Second)
	resp, err := client.Post(context.Background(), srv.URL, map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   "test-agent",
	}, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode() != http.StatusTeapot {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	if string(resp.Body()) != `{"ok":true}` {
		t.Fatalf("body = %s", resp.Body())
	}
	if gotBody != `{"a":1}` {
		t.Fatalf("server body = %s", gotBody)
	}
	if gotCT != "application/json" || gotUA != "test-agent" {
		t.Fatalf("headers: content-type=%q user-agent=%q", gotCT, gotUA)
	}
}

func TestRestyClientPostHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewRestyClient(5 * time.Second)
	if _, err := client.Post(ctx, srv.URL, nil, []byte(`{}`)); err == nil {
		t.Fatalf("expected error after context deadline")
	}
}

func TestPlainTransportRejectsHTTPS(t *testing.T) {
	client, err := NewRestyClientWithTransport(time.Second, TransportOptions{Roots: RootsPlain})
	if err != nil {
		t.Fatalf("NewRestyClientWithTransport: %v", err)
	}
	_, err = client.Post(context.Background(), "https://127.0.0.1:1/", nil, []byte(`{}`))
	if err == nil || !strings.Contains(err.Error(), "plain transport") {
		t.Fatalf("expected plain transport error, got %v", err)
	}
}

func TestPlainTransportAllowsHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewRestyClientWithTransport(time.Second, TransportOptions{Roots: RootsPlain})
	if err != nil {
		t.Fatalf("NewRestyClientWithTransport: %v", err)
	}
	resp, err := client.Post(context.Background(), srv.URL, nil, []byte(`{}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode())
	}
}

func TestBundleRootsTrustsProvidedCA(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "ca.pem")
	block := &pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write ca file: %v", err)
	}

	client, err := NewRestyClientWithTransport(2*time.Second, TransportOptions{Roots: RootsBundle, CAFile: path})
	if err != nil {
		t.Fatalf("NewRestyClientWithTransport: %v", err)
	}
	if _, err := client.Post(context.Background(), srv.URL, nil, []byte(`{}`)); err != nil {
		t.Fatalf("Post with bundle roots: %v", err)
	}

	sys := NewRestyClient(2 * time.Second)
	if _, err := sys.Post(context.Background(), srv.URL, nil, []byte(`{}`)); err == nil {
		t.Fatalf("expected system roots to reject the test certificate")
	}
}

func TestNewTransportValidatesOptions(t *testing.T) {
	if _, err := NewTransport(TransportOptions{Roots: "webpki"}); err == nil {
		t.Fatalf("expected unsupported roots error")
	}
	if _, err := NewTransport(TransportOptions{Roots: RootsBundle}); err == nil {
		t.Fatalf("expected missing ca file error")
	}

	path := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(path, []byte("not a cert"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := NewTransport(TransportOptions{Roots: RootsBundle, CAFile: path}); err == nil {
		t.Fatalf("expected invalid PEM error")
	}

	rt, err := NewTransport(TransportOptions{DNSServer: "127.0.0.1:53"})
	if err != nil {
		t.Fatalf("NewTransport with dns server: %v", err)
	}
	tr, ok := rt.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", rt)
	}
	if !tr.ForceAttemptHTTP2 {
		t.Fatalf("expected HTTP/2 to be enabled")
	}
}

func TestParseRoots(t *testing.T) {
	cases := map[string]Roots{
		"":         RootsSystem,
		" System ": RootsSystem,
		"bundle":   RootsBundle,
		"PLAIN":    RootsPlain,
	}
	for in, want := range cases {
		got, err := ParseRoots(in)
		if err != nil || got != want {
			t.Fatalf("ParseRoots(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

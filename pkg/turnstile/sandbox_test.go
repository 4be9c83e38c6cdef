package turnstile

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// Run with TURNSTILE_SANDBOX_TESTS=1; these call the live siteverify endpoint
// using Cloudflare's dummy secrets.
func sandboxClient(t *testing.T, secret string) *Client {
	t.Helper()
	if os.Getenv("TURNSTILE_SANDBOX_TESTS") != "1" {
		t.Skip("set TURNSTILE_SANDBOX_TESTS=1 to run against the live sandbox")
	}
	c, err := New(NewSecret(secret), WithTimeout(15*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestSandboxAlwaysPasses(t *testing.T) {
	c := sandboxClient(t, SandboxAlwaysPassesSecret)
	resp, err := c.SiteVerify(context.Background(), SiteVerifyRequest{Response: "myresponse"})
	if err != nil {
		t.Fatalf("SiteVerify: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
}

func TestSandboxAlwaysFails(t *testing.T) {
	c := sandboxClient(t, SandboxAlwaysFailsSecret)
	if _, err := c.SiteVerify(context.Background(), SiteVerifyRequest{Response: "myresponse"}); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestSandboxTokenAlreadySpent(t *testing.T) {
	c := sandboxClient(t, SandboxTokenSpentSecret)
	_, err := c.SiteVerify(context.Background(), SiteVerifyRequest{Response: "myresponse"})
	var verr *VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *VerificationError, got %T %v", err, err)
	}
	if len(verr.Codes) == 0 || verr.Codes[0] != TimeoutOrDuplicate {
		t.Fatalf("codes = %v, want timeout-or-duplicate first", verr.Codes)
	}
}

// TestSandboxIntegration verifies a real token. It needs TURNSTILE_SECRET_KEY,
// TURNSTILE_RESPONSE and TURNSTILE_HOSTNAME.
func TestSandboxIntegration(t *testing.T) {
	secret, token, host := os.Getenv("TURNSTILE_SECRET_KEY"), os.Getenv("TURNSTILE_RESPONSE"), os.Getenv("TURNSTILE_HOSTNAME")
	if secret == "" || token == "" || host == "" {
		t.Skip("TURNSTILE_SECRET_KEY, TURNSTILE_RESPONSE and TURNSTILE_HOSTNAME not set")
	}
	c := sandboxClient(t, secret)
	resp, err := c.SiteVerify(context.Background(), SiteVerifyRequest{
		Response:       token,
		IdempotencyKey: NewIdempotencyKey(),
	})
	if err != nil {
		t.Fatalf("SiteVerify: %v", err)
	}
	if !resp.Success || resp.Hostname != host {
		t.Fatalf("response = %+v, want success for %s", resp, host)
	}
}

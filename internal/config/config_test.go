package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samvad-hq/turnstile-verifier/pkg/httpclient"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppName != "turnstile-verify" || cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Transport().Roots != httpclient.RootsSystem {
		t.Fatalf("roots = %q", cfg.Transport().Roots)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TURNSTILE_SECRET_KEY", "1x0000000000000000000000000000000AA")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "3")
	t.Setenv("TLS_ROOTS", "plain")
	t.Setenv("IDEMPOTENCY_KEYS", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Secret().Expose() != "1x0000000000000000000000000000000AA" {
		t.Fatalf("secret not loaded from env")
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("timeout = %v", cfg.RequestTimeout)
	}
	if cfg.Transport().Roots != httpclient.RootsPlain || !cfg.IdempotencyKeys {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turnstile.yaml")
	raw := "log_level: debug\nsites_file: ./sites.yaml\ndns_server: 1.1.1.1:53\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.SitesFile != "./sites.yaml" || cfg.Transport().DNSServer != "1.1.1.1:53" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "0")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for zero timeout")
	}

	t.Setenv("REQUEST_TIMEOUT_SECONDS", "5")
	t.Setenv("TLS_ROOTS", "bundle")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for bundle roots without ca_file")
	}

	t.Setenv("TLS_ROOTS", "webpki")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for unknown roots")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

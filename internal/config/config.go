package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samvad-hq/turnstile-verifier/pkg/httpclient"
	"github.com/samvad-hq/turnstile-verifier/pkg/turnstile"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	// SecretKey is the default site secret. Use Secret() to pass it on.
	SecretKey string `mapstructure:"turnstile_secret_key"`
	SitesFile string `mapstructure:"sites_file"`

	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`
	TLSRoots              string        `mapstructure:"tls_roots"`
	CAFile                string        `mapstructure:"ca_file"`
	DNSServer             string        `mapstructure:"dns_server"`
	IdempotencyKeys       bool          `mapstructure:"idempotency_keys"`
}

// Load reads configuration from environment variables, configs/.env and the
// optional config file at path.
func Load(path string) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "turnstile-verify")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("turnstile_secret_key", "")
	v.SetDefault("sites_file", "")
	v.SetDefault("request_timeout_seconds", 10)
	v.SetDefault("tls_roots", string(httpclient.RootsSystem))
	v.SetDefault("ca_file", "")
	v.SetDefault("dns_server", "")
	v.SetDefault("idempotency_keys", false)

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.RequestTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid request_timeout_seconds (must be positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	roots, err := httpclient.ParseRoots(cfg.TLSRoots)
	if err != nil {
		return nil, fmt.Errorf("invalid tls_roots: %w", err)
	}
	cfg.TLSRoots = string(roots)
	if roots == httpclient.RootsBundle && strings.TrimSpace(cfg.CAFile) == "" {
		return nil, fmt.Errorf("tls_roots=bundle requires ca_file")
	}

	return &cfg, nil
}

// Secret returns the default site secret.
func (c *Config) Secret() turnstile.Secret {
	return turnstile.NewSecret(strings.TrimSpace(c.SecretKey))
}

// Transport returns the connection settings for the siteverify client.
func (c *Config) Transport() httpclient.TransportOptions {
	return httpclient.TransportOptions{
		Roots:     httpclient.Roots(c.TLSRoots),
		CAFile:    c.CAFile,
		DNSServer: c.DNSServer,
	}
}

// MarshalLogObject logs the configuration without the secret key.
func (c *Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("app_name", c.AppName)
	enc.AddString("app_env", c.Env)
	enc.AddString("log_level", c.LogLevel)
	enc.AddBool("secret_key_set", strings.TrimSpace(c.SecretKey) != "")
	enc.AddString("sites_file", c.SitesFile)
	enc.AddDuration("request_timeout", c.RequestTimeout)
	enc.AddString("tls_roots", c.TLSRoots)
	enc.AddString("ca_file", c.CAFile)
	enc.AddString("dns_server", c.DNSServer)
	enc.AddBool("idempotency_keys", c.IdempotencyKeys)
	return nil
}

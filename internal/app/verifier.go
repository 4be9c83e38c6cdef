package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samvad-hq/turnstile-verifier/internal/config"
	"github.com/samvad-hq/turnstile-verifier/internal/logger"
	"github.com/samvad-hq/turnstile-verifier/internal/sites"
	"github.com/samvad-hq/turnstile-verifier/pkg/turnstile"
)

// ExpectationError reports a verified token whose hostname or action does not
// match what the site expects.
type ExpectationError struct {
	Site  string
	Field string
	Want  string
	Got   string
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("site %q: %s mismatch: want %q, got %q", e.Site, e.Field, e.Want, e.Got)
}

// Outcome is the result of a successful verification.
type Outcome struct {
	Site     string                       `json:"site"`
	Response turnstile.SiteVerifyResponse `json:"response"`
}

// Verifier checks tokens for the configured sites using one shared client.
type Verifier struct {
	client *turnstile.Client
	sites  *sites.Registry
	log    logger.Logger
}

// NewVerifier builds a verifier from config. Extra client options are applied
// after the ones derived from config.
func NewVerifier(cfg *config.Config, log logger.Logger, opts ...turnstile.Option) (*Verifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	reg, err := loadSites(cfg)
	if err != nil {
		return nil, err
	}
	enabled := reg.Enabled()
	ids := make([]string, 0, len(enabled))
	for _, s := range enabled {
		ids = append(ids, s.ID)
	}
	log.InfoObj("sites registry loaded", "sites_meta", map[string]any{
		"count": len(ids),
		"ids":   ids,
	})

	clientOpts := []turnstile.Option{
		turnstile.WithTimeout(cfg.RequestTimeout),
		turnstile.WithTransport(cfg.Transport()),
		turnstile.WithLogger(log),
	}
	if cfg.IdempotencyKeys {
		clientOpts = append(clientOpts, turnstile.WithIdempotencyKeys())
	}
	client, err := turnstile.New(cfg.Secret(), append(clientOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("init turnstile client: %w", err)
	}

	return &Verifier{client: client, sites: reg, log: log}, nil
}

// loadSites reads the sites file, or falls back to a single default site
// backed by the configured secret key.
func loadSites(cfg *config.Config) (*sites.Registry, error) {
	if strings.TrimSpace(cfg.SitesFile) != "" {
		reg, err := sites.LoadRegistry(cfg.SitesFile)
		if err != nil {
			return nil, fmt.Errorf("load sites registry: %w", err)
		}
		return reg, nil
	}
	if cfg.Secret().IsZero() {
		return sites.NewRegistry()
	}
	return sites.NewRegistry(sites.Site{ID: sites.DefaultID, Secret: cfg.Secret(), Enabled: true})
}

// Request is one token to verify.
type Request struct {
	// Site selects a configured site; empty uses the only enabled site, or the
	// default secret key when there is none.
	Site           string
	Token          string
	RemoteIP       string
	IdempotencyKey bool
}

// Verify checks req.Token and applies the site's hostname and action expectations.
func (v *Verifier) Verify(ctx context.Context, req Request) (Outcome, error) {
	site, err := v.resolveSite(req.Site)
	if err != nil {
		return Outcome{}, err
	}

	svReq := turnstile.SiteVerifyRequest{
		Response: req.Token,
		Secret:   site.Secret,
		RemoteIP: strings.TrimSpace(req.RemoteIP),
	}
	if req.IdempotencyKey {
		svReq.IdempotencyKey = turnstile.NewIdempotencyKey()
	}

	resp, err := v.client.SiteVerify(ctx, svReq)
	if err != nil {
		v.logFailure(site.ID, err)
		return Outcome{}, fmt.Errorf("verify token for site %q: %w", site.ID, err)
	}

	if err := checkExpectations(site, resp); err != nil {
		v.log.WarnObj("token verified for unexpected origin", "verify_mismatch", map[string]any{
			"site":  site.ID,
			"error": err.Error(),
		})
		return Outcome{Site: site.ID, Response: resp}, err
	}

	v.log.InfoObj("token verified", "verify_result", map[string]any{
		"site":     site.ID,
		"success":  resp.Success,
		"hostname": resp.Hostname,
		"action":   resp.Action,
	})
	return Outcome{Site: site.ID, Response: resp}, nil
}

func (v *Verifier) resolveSite(id string) (sites.Site, error) {
	id = strings.TrimSpace(id)
	if id != "" {
		site, ok := v.sites.ByID(id)
		if !ok {
			return sites.Site{}, fmt.Errorf("unknown site %q", id)
		}
		if !site.Enabled {
			return sites.Site{}, fmt.Errorf("site %q is disabled", id)
		}
		return site, nil
	}

	enabled := v.sites.Enabled()
	switch len(enabled) {
	case 0:
		// The client's own secret is used; siteverify reports it if missing.
		return sites.Site{ID: sites.DefaultID, Enabled: true}, nil
	case 1:
		return enabled[0], nil
	default:
		return sites.Site{}, fmt.Errorf("%d sites configured; choose one", len(enabled))
	}
}

func checkExpectations(site sites.Site, resp turnstile.SiteVerifyResponse) error {
	var errs []error
	if site.ExpectedHostname != "" && !strings.EqualFold(site.ExpectedHostname, resp.Hostname) {
		errs = append(errs, &ExpectationError{Site: site.ID, Field: "hostname", Want: site.ExpectedHostname, Got: resp.Hostname})
	}
	if site.ExpectedAction != "" && site.ExpectedAction != resp.Action {
		errs = append(errs, &ExpectationError{Site: site.ID, Field: "action", Want: site.ExpectedAction, Got: resp.Action})
	}
	return errors.Join(errs...)
}

func (v *Verifier) logFailure(site string, err error) {
	fields := map[string]any{"site": site, "error": err.Error()}

	var verr *turnstile.VerificationError
	switch {
	case errors.As(err, &verr):
		fields["error_codes"] = verr.Codes
		fields["retryable"] = verr.Retryable()
		v.log.WarnObj("token rejected", "verify_result", fields)
	default:
		v.log.ErrorObj("siteverify call failed", "verify_error", fields)
	}
}

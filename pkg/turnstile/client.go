// Package turnstile is a client for the Cloudflare Turnstile siteverify API.
//
// Basic usage:
//
//	client, err := turnstile.New(turnstile.NewSecret(os.Getenv("TURNSTILE_SECRET_KEY")))
//	if err != nil {
//	    return err
//	}
//	resp, err := client.SiteVerify(ctx, turnstile.SiteVerifyRequest{Response: token})
//	var verr *turnstile.VerificationError
//	if errors.As(err, &verr) && verr.Has(turnstile.TimeoutOrDuplicate) {
//	    // token was already redeemed
//	}
package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/samvad-hq/turnstile-verifier/pkg/httpclient"
)

const (
	// SiteVerifyURL is the siteverify endpoint.
	SiteVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

	// Version is the library version reported in the User-Agent header.
	Version = "0.1.0"
	// Homepage is the project URL reported in the User-Agent header.
	Homepage = "https://github.com/samvad-hq/turnstile-verifier"

	// UserAgent is sent with every siteverify call.
	UserAgent = "cf-turnstile (" + Homepage + ", " + Version + ")"

	defaultTimeout = 10 * time.Second
)

// Client verifies Turnstile tokens. It is safe for concurrent use.
type Client struct {
	secret          Secret
	http            httpclient.Client
	endpoint        string
	idempotencyKeys bool
	log             Logger
}

// Option configures a Client.
type Option func(*options) error

type options struct {
	http            httpclient.Client
	transport       *httpclient.TransportOptions
	timeout         time.Duration
	idempotencyKeys bool
	log             Logger
}

// WithHTTPClient replaces the default resty-backed transport.
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *options) error {
		if c == nil {
			return errors.New("http client must not be nil")
		}
		o.http = c
		return nil
	}
}

// WithTransport selects TLS roots and DNS resolution for the default transport.
// It is ignored when WithHTTPClient is also given.
func WithTransport(t httpclient.TransportOptions) Option {
	return func(o *options) error {
		o.transport = &t
		return nil
	}
}

// WithTimeout bounds each call, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		o.timeout = d
		return nil
	}
}

// WithIdempotencyKeys attaches a random idempotency key to every request that
// does not already carry one.
func WithIdempotencyKeys() Option {
	return func(o *options) error {
		o.idempotencyKeys = true
		return nil
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l Logger) Option {
	return func(o *options) error {
		o.log = l
		return nil
	}
}

// New creates a Client that uses secret when a request does not carry its own.
func New(secret Secret, opts ...Option) (*Client, error) {
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	if o.http == nil {
		if o.transport != nil {
			rc, err := httpclient.NewRestyClientWithTransport(o.timeout, *o.transport)
			if err != nil {
				return nil, err
			}
			o.http = rc
		} else {
			o.http = httpclient.NewRestyClient(o.timeout)
		}
	}

	return &Client{
		secret:          secret,
		http:            o.http,
		endpoint:        SiteVerifyURL,
		idempotencyKeys: o.idempotencyKeys,
		log:             ensureLogger(o.log),
	}, nil
}

// SiteVerify verifies req.Response with siteverify.
//
// A non-empty "error-codes" list yields a *VerificationError even if the
// service also reported success. Network failures yield *TransportError and
// undecodable bodies *SerializationError. No retries are attempted.
func (c *Client) SiteVerify(ctx context.Context, req SiteVerifyRequest) (SiteVerifyResponse, error) {
	if c.idempotencyKeys && req.IdempotencyKey == nil {
		req.IdempotencyKey = NewIdempotencyKey()
	}

	body, err := json.Marshal(req.payload(c.secret))
	if err != nil {
		return SiteVerifyResponse{}, &SerializationError{Op: "encode request", Err: err}
	}

	headers := map[string]string{
		"User-Agent":   UserAgent,
		"Content-Type": "application/json",
	}

	resp, err := c.http.Post(ctx, c.endpoint, headers, body)
	if err != nil {
		c.log.DebugObj("siteverify transport failed", "siteverify_error", map[string]any{
			"error": err.Error(),
		})
		return SiteVerifyResponse{}, &TransportError{Err: err}
	}

	raw, err := decodeResponse(resp.Body())
	if err != nil {
		return SiteVerifyResponse{}, &SerializationError{Op: "decode response", Status: resp.StatusCode(), Err: err}
	}

	if codes := raw.codes(); len(codes) > 0 {
		c.log.DebugObj("siteverify rejected token", "siteverify_result", map[string]any{
			"status":      resp.StatusCode(),
			"error_codes": codes,
		})
		return SiteVerifyResponse{}, &VerificationError{Codes: codes}
	}

	out := raw.normalize()
	c.log.DebugObj("siteverify accepted token", "siteverify_result", map[string]any{
		"success":  out.Success,
		"hostname": out.Hostname,
		"action":   out.Action,
	})
	return out, nil
}

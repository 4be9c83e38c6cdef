package turnstile

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SiteVerifyRequest is a request to siteverify.
//
// https://developers.cloudflare.com/turnstile/get-started/server-side-validation/#accepted-parameters
type SiteVerifyRequest struct {
	// Response is the token produced by the client-side widget.
	Response string `json:"response"`
	// Secret overrides the client's secret for this call when set.
	Secret Secret `json:"-"`
	// RemoteIP is the visitor's IP address.
	RemoteIP string `json:"remote_ip,omitempty"`
	// IdempotencyKey lets the service deduplicate retried calls.
	IdempotencyKey *uuid.UUID `json:"idempotency_key,omitempty"`
}

// sitePayload is the request body as sent on the wire.
type sitePayload struct {
	Secret         string     `json:"secret,omitempty"`
	Response       string     `json:"response"`
	RemoteIP       string     `json:"remote_ip,omitempty"`
	IdempotencyKey *uuid.UUID `json:"idempotency_key,omitempty"`
}

// payload builds the wire body, falling back to def when no secret is set on r.
func (r SiteVerifyRequest) payload(def Secret) sitePayload {
	secret := r.Secret
	if secret.IsZero() {
		secret = def
	}
	return sitePayload{
		Secret:         secret.Expose(),
		Response:       r.Response,
		RemoteIP:       r.RemoteIP,
		IdempotencyKey: r.IdempotencyKey,
	}
}

// SiteVerifyResponse is a successful siteverify result.
type SiteVerifyResponse struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"challenge_ts"`
	Hostname  string `json:"hostname"`
	Action    string `json:"action"`
	CData     string `json:"cdata"`
}

// ChallengeTime parses Timestamp, the ISO 8601 time the challenge was solved.
func (r SiteVerifyResponse) ChallengeTime() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Timestamp)
}

// rawSiteVerifyResponse is the wire shape. Success and ErrorCodes are
// required; pointers tell an absent field from a zero one.
type rawSiteVerifyResponse struct {
	Success    *bool        `json:"success"`
	Timestamp  *string      `json:"challenge_ts"`
	Hostname   *string      `json:"hostname"`
	ErrorCodes *[]ErrorCode `json:"error-codes"`
	Action     *string      `json:"action"`
	CData      *string      `json:"cdata"`
}

// decodeResponse parses body, rejecting bodies that lack a required field.
func decodeResponse(body []byte) (rawSiteVerifyResponse, error) {
	var raw rawSiteVerifyResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return rawSiteVerifyResponse{}, err
	}
	if raw.Success == nil {
		return rawSiteVerifyResponse{}, errors.New(`missing required field "success"`)
	}
	if raw.ErrorCodes == nil {
		return rawSiteVerifyResponse{}, errors.New(`missing required field "error-codes"`)
	}
	return raw, nil
}

func (raw rawSiteVerifyResponse) codes() []ErrorCode {
	if raw.ErrorCodes == nil {
		return nil
	}
	return *raw.ErrorCodes
}

func (raw rawSiteVerifyResponse) normalize() SiteVerifyResponse {
	return SiteVerifyResponse{
		Success:   raw.Success != nil && *raw.Success,
		Timestamp: deref(raw.Timestamp),
		Hostname:  deref(raw.Hostname),
		Action:    deref(raw.Action),
		CData:     deref(raw.CData),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NewIdempotencyKey returns a fresh random key for SiteVerifyRequest.IdempotencyKey.
func NewIdempotencyKey() *uuid.UUID {
	k := uuid.New()
	return &k
}

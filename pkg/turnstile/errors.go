package turnstile

import (
	"fmt"
	"strings"
)

// ErrorCode is an error code reported by siteverify in "error-codes".
// Codes outside the documented set are kept as-is rather than rejected, so a
// new server code still surfaces as a VerificationError; Known tells them apart.
//
// https://developers.cloudflare.com/turnstile/get-started/server-side-validation/#error-codes
type ErrorCode string

const (
	MissingInputSecret   ErrorCode = "missing-input-secret"
	InvalidInputSecret   ErrorCode = "invalid-input-secret"
	MissingInputResponse ErrorCode = "missing-input-response"
	InvalidInputResponse ErrorCode = "invalid-input-response"
	InvalidWidgetID      ErrorCode = "invalid-widget-id"
	InvalidParsedSecret  ErrorCode = "invalid-parsed-secret"
	BadRequest           ErrorCode = "bad-request"
	TimeoutOrDuplicate   ErrorCode = "timeout-or-duplicate"
	InternalError        ErrorCode = "internal-error"
)

var codeDescriptions = map[ErrorCode]string{
	MissingInputSecret:   "The secret parameter was not passed.",
	InvalidInputSecret:   "The secret parameter was invalid or did not exist.",
	MissingInputResponse: "The response parameter was not passed.",
	InvalidInputResponse: "The response parameter is invalid or has expired.",
	InvalidWidgetID:      "The widget ID extracted from the parsed site secret key was invalid or did not exist.",
	InvalidParsedSecret:  "The secret extracted from the parsed site secret key was invalid.",
	BadRequest:           "The request was rejected because it was malformed.",
	TimeoutOrDuplicate:   "The response parameter has already been validated before.",
	InternalError:        "An internal error happened while validating the response. The request can be retried.",
}

// ErrorCodes lists every documented code in documentation order.
func ErrorCodes() []ErrorCode {
	return []ErrorCode{
		MissingInputSecret,
		InvalidInputSecret,
		MissingInputResponse,
		InvalidInputResponse,
		InvalidWidgetID,
		InvalidParsedSecret,
		BadRequest,
		TimeoutOrDuplicate,
		InternalError,
	}
}

// Known reports whether c is one of the documented codes.
func (c ErrorCode) Known() bool {
	_, ok := codeDescriptions[c]
	return ok
}

// Description returns the documented meaning of c.
func (c ErrorCode) Description() string {
	if d, ok := codeDescriptions[c]; ok {
		return d
	}
	return "Unrecognized error code."
}

// Retryable reports whether the same request may succeed if sent again.
func (c ErrorCode) Retryable() bool { return c == InternalError }

// Error lets codes be matched with errors.Is against a VerificationError.
func (c ErrorCode) Error() string { return string(c) }

// TransportError wraps a network, TLS or timeout failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "turnstile transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// SerializationError reports a request or response body that could not be
// encoded or decoded as the expected JSON.
type SerializationError struct {
	Op string
	// Status is the HTTP status of the undecodable response, zero when encoding.
	Status int
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("turnstile %s (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("turnstile %s: %v", e.Op, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// VerificationError carries the error codes returned by siteverify, in the
// order they were received.
type VerificationError struct {
	Codes []ErrorCode
}

func (e *VerificationError) Error() string {
	parts := make([]string, len(e.Codes))
	for i, c := range e.Codes {
		parts[i] = string(c)
	}
	return "turnstile verification failed: " + strings.Join(parts, ", ")
}

// Unwrap exposes each code so errors.Is(err, TimeoutOrDuplicate) works.
func (e *VerificationError) Unwrap() []error {
	out := make([]error, len(e.Codes))
	for i, c := range e.Codes {
		out[i] = c
	}
	return out
}

// Has reports whether code is among the returned codes.
func (e *VerificationError) Has(code ErrorCode) bool {
	for _, c := range e.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// Retryable is true when every returned code is retryable.
func (e *VerificationError) Retryable() bool {
	if len(e.Codes) == 0 {
		return false
	}
	for _, c := range e.Codes {
		if !c.Retryable() {
			return false
		}
	}
	return true
}

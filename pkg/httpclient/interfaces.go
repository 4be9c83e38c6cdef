package httpclient

import "context"

// Response exposes the fully read body and status of a call.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client sends a POST whose body the caller has already encoded, so encoding
// failures stay with the caller and never reach the transport. Tests inject
// fakes; RestyClient is the default.
type Client interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) (Response, error)
}

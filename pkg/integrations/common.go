package integrations

import (
	"errors"
	"net/http"
	"time"
)

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when the service answers 404.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned when the service cannot be reached or keeps
	// failing with 5xx responses.
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with the standard timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// Response is a completed HTTP exchange. Non-2xx responses are returned as
// Responses, not errors, since their bodies carry service messages.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

package store

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated is returned for 401 responses. Callers must force a
	// re-login instead of showing a generic error.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUpstreamUnavailable covers network failures and every other non-2xx
	// response.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrBatchTooLarge       = errors.New("batch exceeds store write limit")
)

// Classify turns a non-2xx status into one of the sentinel errors above.
func Classify(status int, body []byte) error {
	if len(body) > 512 {
		body = body[:512]
	}
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: status %d: %s", ErrUnauthenticated, status, body)
	}
	return fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, status, body)
}

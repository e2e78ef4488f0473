package catalog

import (
	"errors"
	"fmt"
)

// ErrUnconfigured means the POS API credential is missing. It is terminal:
// no amount of re-polling fixes it.
var ErrUnconfigured = errors.New("POS API token not configured")

// TransportError is a network-level failure. The client never retries;
// the polling caller re-drives the fetch.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response from the POS service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API request failed: %d - %s", e.StatusCode, e.Body)
}

// DecodeError is a malformed or invalid payload.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

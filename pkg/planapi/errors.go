package planapi

import (
	"errors"
	"fmt"
)

var (
	ErrMissingBaseURL     = errors.New("plan api: base URL is required")
	ErrMissingToken       = errors.New("plan api: auth token is required")
	ErrRequestFailed      = errors.New("plan api: request failed")
	ErrUnexpectedStatus   = errors.New("plan api: unexpected status")
	ErrDecodeResponse     = errors.New("plan api: failed to decode response")
	ErrSessionExpired     = errors.New("plan api: session expired")
	ErrTokenNotFound      = errors.New("plan api: setup token not found")
	ErrProfileUnavailable = errors.New("plan api: profile unavailable")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("plan api: %s returned status %d", e.Path, e.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

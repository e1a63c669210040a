package subsync

import "errors"

var (
	ErrFetchFailed        = errors.New("subsync: failed to fetch subscription record")
	ErrInvalidRecord      = errors.New("subsync: invalid subscription record")
	ErrNotInitialized     = errors.New("subsync: manager is not initialized")
	ErrAlreadyInitialized = errors.New("subsync: manager is already initialized")
	ErrMissingUser        = errors.New("subsync: user id is required")
	ErrMissingSession     = errors.New("subsync: session id is required")
	ErrSessionExpired     = errors.New("subsync: session token has expired")
	ErrInvalidNudge       = errors.New("subsync: invalid nudge payload")
)

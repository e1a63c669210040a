package identity

import "errors"

var (
	ErrMissingSecret  = errors.New("identity: signing secret is required")
	ErrMissingBaseURL = errors.New("identity: api base url is required")
	ErrInvalidToken   = errors.New("identity: invalid session token")
	ErrNoToken        = errors.New("identity: no session token in request")
	ErrUserNotFound   = errors.New("identity: user not found")
	ErrFetchFailed    = errors.New("identity: failed to fetch user")
)

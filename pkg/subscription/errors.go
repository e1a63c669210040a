package subscription

import "errors"

var (
	ErrInvalidRecord   = errors.New("subscription record violates invariant")
	ErrInvalidMetadata = errors.New("invalid subscription metadata")
)

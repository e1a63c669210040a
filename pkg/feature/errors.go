package feature

import "errors"

var (
	// ErrUnknownFeature indicates an identifier outside the closed feature set.
	ErrUnknownFeature = errors.New("unknown feature identifier")
)

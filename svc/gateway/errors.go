package gateway

import "errors"

var (
	ErrUnknownFeature     = errors.New("unknown feature")
	ErrNoSyncer           = errors.New("subscription sync unavailable for this session")
	ErrNoSubscription     = errors.New("no active subscription")
	ErrHistoryDisabled    = errors.New("subscription history is disabled")
	ErrMissingSignature   = errors.New("missing webhook signature")
	ErrInvalidRequestBody = errors.New("invalid request body")
	ErrCrossOrigin        = errors.New("cross-origin request rejected")
)

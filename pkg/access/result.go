package access

// Reason explains an access decision.
type Reason string

const (
	ReasonAllowed            Reason = "allowed"
	ReasonNoSubscription     Reason = "no-subscription"
	ReasonFeatureNotIncluded Reason = "feature-not-included"
	ReasonProfileIncomplete  Reason = "profile-incomplete"
)

// Result is the outcome of an access check. HasAccess is true exactly when
// Reason is ReasonAllowed; use Allowed and Denied to build one.
type Result struct {
	HasAccess bool   `json:"hasAccess"`
	Reason    Reason `json:"reason"`
}

func Allowed() Result {
	return Result{HasAccess: true, Reason: ReasonAllowed}
}

// Denied builds a negative result. Passing ReasonAllowed is a programming error and panics.
func Denied(reason Reason) Result {
	if reason == ReasonAllowed {
		panic("access: Denied called with ReasonAllowed")
	}
	return Result{Reason: reason}
}

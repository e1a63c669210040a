package subscription

import "strings"

// Status represents the current state of a user's subscription as mirrored from the
// identity provider's metadata.
type Status string

const (
	StatusFree      Status = "free"
	StatusTrial     Status = "trial"
	StatusPremium   Status = "premium"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
)

// ParseStatus normalises provider spellings into a Status.
// Unknown and empty values map to StatusFree so that an unexpected value never grants access.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trial", "trialing":
		return StatusTrial
	case "premium", "active":
		return StatusPremium
	case "past_due", "pastdue", "past-due", "unpaid":
		return StatusPastDue
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return StatusFree
	}
}

func (s Status) String() string {
	return string(s)
}

// AccessControl carries the access flags computed by the Plan API for the current user.
type AccessControl struct {
	CanAccessPremiumFeatures bool `json:"canAccessPremiumFeatures"`
	RedirectToEditInfo       bool `json:"redirectToEditInfo"`
}

// Plan is the user's current plan as reported by the Plan API.
type Plan struct {
	Plan          string        `json:"plan"`
	AccessControl AccessControl `json:"accessControl"`
}

// Metadata keys used by the identity provider to store subscription data.
const (
	MetaStatus            = "subscriptionStatus"
	MetaCustomerID        = "stripeCustomerId"
	MetaSubscriptionID    = "stripeSubscriptionId"
	MetaPeriodEnd         = "subscriptionPeriodEnd"
	MetaCancelAtPeriodEnd = "cancelAtPeriodEnd"
	MetaPlanID            = "planId"
	MetaGracePeriod       = "gracePeriod"
)

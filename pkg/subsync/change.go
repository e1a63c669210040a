package subsync

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/accessgate/pkg/subscription"
)

// Category classifies a status change for the user-facing notification.
type Category string

const (
	CategoryUpgradeSuccess    Category = "upgrade-success"
	CategoryPaymentRecovered  Category = "payment-recovered"
	CategoryTrialStarted      Category = "trial-started"
	CategoryPaymentIssue      Category = "payment-issue"
	CategorySubscriptionEnded Category = "subscription-ended"
	CategoryNoop              Category = "no-op"
)

// Notify reports whether the category is shown to the user.
func (c Category) Notify() bool {
	return c != CategoryNoop
}

// Source is what triggered the check that observed a change.
type Source string

const (
	SourcePoll   Source = "poll"
	SourceManual Source = "manual"
	SourcePush   Source = "push"
)

// Change is a detected subscription status transition.
type Change struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	SessionID      string              `json:"session_id"`
	From           subscription.Status `json:"from"`
	To             subscription.Status `json:"to"`
	Category       Category            `json:"category"`
	ReloadRequired bool                `json:"reload_required"`
	Source         Source              `json:"source"`
	DetectedAt     time.Time           `json:"detected_at"`
}

func newChange(userID, sessionID string, from, to subscription.Status, src Source, at time.Time) Change {
	return Change{
		ID:             uuid.NewString(),
		UserID:         userID,
		SessionID:      sessionID,
		From:           from,
		To:             to,
		Category:       Classify(from, to),
		ReloadRequired: ReloadRequired(from, to),
		Source:         src,
		DetectedAt:     at,
	}
}

type transition struct {
	from, to subscription.Status
}

var categories = map[transition]Category{
	{subscription.StatusTrial, subscription.StatusPremium}:   CategoryUpgradeSuccess,
	{subscription.StatusFree, subscription.StatusPremium}:    CategoryUpgradeSuccess,
	{subscription.StatusPastDue, subscription.StatusPremium}: CategoryPaymentRecovered,
	{subscription.StatusFree, subscription.StatusTrial}:      CategoryTrialStarted,
}

// Classify returns the category of a from → to transition. Unchanged
// statuses and transitions outside the table are no-ops.
func Classify(from, to subscription.Status) Category {
	if from == to {
		return CategoryNoop
	}
	if c, ok := categories[transition{from, to}]; ok {
		return c
	}
	switch to {
	case subscription.StatusPastDue:
		return CategoryPaymentIssue
	case subscription.StatusCancelled:
		return CategorySubscriptionEnded
	case subscription.StatusFree:
		switch from {
		case subscription.StatusPremium, subscription.StatusTrial,
			subscription.StatusCancelled, subscription.StatusPastDue:
			return CategorySubscriptionEnded
		}
	}
	return CategoryNoop
}

var reloadRequired = map[transition]struct{}{
	{subscription.StatusFree, subscription.StatusTrial}:      {},
	{subscription.StatusTrial, subscription.StatusFree}:      {},
	{subscription.StatusFree, subscription.StatusPremium}:    {},
	{subscription.StatusPremium, subscription.StatusFree}:    {},
	{subscription.StatusTrial, subscription.StatusPremium}:   {},
	{subscription.StatusPremium, subscription.StatusTrial}:   {},
	{subscription.StatusPremium, subscription.StatusPastDue}: {},
	{subscription.StatusPastDue, subscription.StatusPremium}: {},
}

// ReloadRequired reports whether the transition changes the access level
// enough that dependent page data must be reloaded.
func ReloadRequired(from, to subscription.Status) bool {
	_, ok := reloadRequired[transition{from, to}]
	return ok
}

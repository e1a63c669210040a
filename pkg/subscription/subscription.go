package subscription

import (
	"time"
)

// Record is the locally cached copy of a user's subscription.
// The identity/billing provider owns the data; a Record is a read-mostly snapshot of it.
type Record struct {
	Status            Status
	PlanID            string     // empty when no plan was purchased
	PeriodEnd         *time.Time // end of the current paid period
	CancelAtPeriodEnd bool
	CustomerRef       string // billing provider customer id
	SubscriptionRef   string // billing provider subscription id
	GracePeriod       bool   // premium access kept while the provider retries payment
}

// Free returns the record used before anything is known about a user.
func Free() Record {
	return Record{Status: StatusFree}
}

func (r Record) IsPremium() bool {
	return r.Status == StatusPremium
}

// Validate checks the record invariant at the given time:
// a premium record must have a future period end or an active grace period.
func (r Record) Validate(now time.Time) error {
	if r.Status != StatusPremium || r.GracePeriod {
		return nil
	}
	if r.PeriodEnd == nil || !r.PeriodEnd.After(now) {
		return ErrInvalidRecord
	}
	return nil
}

// DaysRemainingAt returns the whole days left in the current period at now.
// Returns 0 when there is no period end or it already passed.
func (r Record) DaysRemainingAt(now time.Time) int {
	if r.PeriodEnd == nil {
		return 0
	}
	remaining := r.PeriodEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	// Round partial days for display
	days := remaining.Hours() / 24
	return int(days + 0.5)
}

// Equal reports whether two records carry the same data.
func (r Record) Equal(o Record) bool {
	if r.Status != o.Status ||
		r.PlanID != o.PlanID ||
		r.CancelAtPeriodEnd != o.CancelAtPeriodEnd ||
		r.CustomerRef != o.CustomerRef ||
		r.SubscriptionRef != o.SubscriptionRef ||
		r.GracePeriod != o.GracePeriod {
		return false
	}
	switch {
	case r.PeriodEnd == nil && o.PeriodEnd == nil:
		return true
	case r.PeriodEnd == nil || o.PeriodEnd == nil:
		return false
	default:
		return r.PeriodEnd.Equal(*o.PeriodEnd)
	}
}

package billing

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultConfirmTimeout  = 5 * time.Second
	defaultConfirmInterval = 500 * time.Millisecond
)

// errNoChangeYet marks an attempt that saw no status change.
var errNoChangeYet = errors.New("billing: subscription change not observed yet")

// Checker runs an on-demand subscription check. *subsync.Syncer implements it.
type Checker interface {
	CheckNow(ctx context.Context) (bool, error)
}

// Confirmation is the outcome of ConfirmCheckout.
type Confirmation struct {
	SessionID string
	Changed   bool
	Attempts  int
	Err       error // last check error, if the change was never observed
}

// ConfirmCheckout checks the subscription until a change is observed or
// timeout elapses. It never fails: the caller redirects to the dashboard
// whatever the outcome.
func ConfirmCheckout(ctx context.Context, checker Checker, sessionID string, timeout, interval time.Duration) Confirmation {
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}
	if interval <= 0 {
		interval = defaultConfirmInterval
	}
	res := Confirmation{SessionID: sessionID}
	if checker == nil {
		res.Err = ErrMissingUser
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_ = retry.Do(ctx, retry.NewConstant(interval), func(ctx context.Context) error {
		res.Attempts++
		changed, err := checker.CheckNow(ctx)
		if err != nil {
			res.Err = err
			return retry.RetryableError(err)
		}
		if !changed {
			return retry.RetryableError(errNoChangeYet)
		}
		res.Changed = true
		res.Err = nil
		return nil
	})
	return res
}

package gate

import "github.com/dmitrymomot/accessgate/pkg/access"

// Decision is what a gate currently shows.
type Decision string

const (
	Loading           Decision = "loading"
	SignInRequired    Decision = "sign-in-required"
	ProfileIncomplete Decision = "profile-incomplete"
	UpgradeRequired   Decision = "upgrade-required"
	Granted           Decision = "granted"
)

// Terminal reports whether d is a resolved decision.
func (d Decision) Terminal() bool {
	return d != Loading
}

type event string

const (
	evNoUser    event = "no-user"
	evNoProfile event = "profile-incomplete"
	evDenied    event = "denied"
	evAllowed   event = "allowed"
)

// decide maps an access result onto the event that resolves the gate.
// The incomplete profile takes precedence over any other denial.
func decide(res access.Result) event {
	switch {
	case res.Reason == access.ReasonProfileIncomplete:
		return evNoProfile
	case res.HasAccess:
		return evAllowed
	default:
		return evDenied
	}
}

// Chrome is the presentational frame around a gate panel.
type Chrome string

const (
	ChromeCompact Chrome = "compact"
	ChromeFull    Chrome = "full"
)

// Breakpoint is the viewport width at which the chrome switches to full.
const Breakpoint = 768

// ChromeFor returns the chrome for a viewport width.
func ChromeFor(width int) Chrome {
	if width < Breakpoint {
		return ChromeCompact
	}
	return ChromeFull
}

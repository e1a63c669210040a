package gate

import (
	"github.com/a-h/templ"

	"github.com/dmitrymomot/accessgate/pkg/feature"
)

//go:generate templ generate

// View holds what a gate renders besides its decision.
type View struct {
	SignInURL   string
	EditInfoURL string
	CheckoutURL string // form action of the purchase modal
	PriceID     string

	// Content is rendered verbatim when access is granted. Without it the
	// gate renders an empty granted panel for the page to fill in.
	Content templ.Component
	// Fallback replaces the marketing panel when access is denied.
	Fallback templ.Component
}

// PanelID is the DOM id of the element wrapping every gate panel.
const PanelID = "access-gate"

func (v View) component(d Decision, id *feature.ID, chrome Chrome) templ.Component {
	switch d {
	case Granted:
		if v.Content != nil {
			return v.Content
		}
		return panel(d, chrome, templ.NopComponent)
	case SignInRequired:
		return panel(d, chrome, signInPanel(v.SignInURL))
	case ProfileIncomplete:
		return panel(d, chrome, profilePanel(v.EditInfoURL))
	case UpgradeRequired:
		if v.Fallback != nil {
			return v.Fallback
		}
		c := feature.Premium
		if id != nil {
			c = feature.Benefits(*id)
		}
		return panel(d, chrome, upgradePanel(c, v.CheckoutURL, v.PriceID, id))
	default:
		return panel(Loading, chrome, loadingPanel())
	}
}

package feature

import "fmt"

// Copy is the marketing content shown on the upgrade panel for a feature.
type Copy struct {
	Title    string
	Tagline  string
	Benefits []string
}

// Premium is shown when a gate protects premium content without a specific feature.
var Premium = Copy{
	Title:   "Upgrade to Premium",
	Tagline: "Unlock the full privacy and security suite.",
	Benefits: []string{
		"Block ads and trackers on every device",
		"Browse privately with unlimited VPN",
		"Real-time breach and exposure reports",
		"Automated removal from data broker sites",
	},
}

// Benefits returns the upgrade copy for id.
// It panics for identifiers outside the closed set; callers obtain IDs through Parse.
func Benefits(id ID) Copy {
	switch id {
	case AdBlocker:
		return Copy{
			Title:   "Ad Blocker",
			Tagline: "Stop ads and trackers before they load.",
			Benefits: []string{
				"Block ads, pop-ups and malicious domains",
				"Stop cross-site tracking and fingerprinting",
				"Faster page loads and lower data usage",
			},
		}
	case VPN:
		return Copy{
			Title:   "Secure VPN",
			Tagline: "Encrypt your connection on any network.",
			Benefits: []string{
				"Military-grade encryption on public Wi-Fi",
				"Hide your IP address and location",
				"Unlimited bandwidth with no activity logs",
			},
		}
	case LiveReports:
		return Copy{
			Title:   "Live Reports",
			Tagline: "Know the moment your data is exposed.",
			Benefits: []string{
				"Real-time alerts for new data breaches",
				"Dark web monitoring for your email and phone",
				"Weekly privacy score with actionable steps",
			},
		}
	case DataRemoval:
		return Copy{
			Title:   "Data Removal",
			Tagline: "Get your personal data off broker sites.",
			Benefits: []string{
				"Automatic opt-out requests to data brokers",
				"Continuous re-scans to catch re-listings",
				"Progress tracking for every removal request",
			},
		}
	}
	panic(fmt.Sprintf("feature: no benefit copy for %q", string(id)))
}

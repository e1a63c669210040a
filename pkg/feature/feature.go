package feature

import (
	"slices"
	"strings"
)

// ID identifies a premium capability that can be gated.
// The set is closed: every value must be handled by Benefits and by the access evaluator.
type ID string

const (
	AdBlocker   ID = "adBlocker"
	VPN         ID = "vpn"
	LiveReports ID = "liveReports"
	DataRemoval ID = "dataRemoval"
)

// All returns every known feature in display order.
func All() []ID {
	return []ID{AdBlocker, VPN, LiveReports, DataRemoval}
}

// Parse converts a raw identifier into an ID.
// Matching is case-insensitive so that "VPN" and "vpn" resolve to the same feature.
func Parse(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	for _, id := range All() {
		if strings.EqualFold(raw, string(id)) {
			return id, nil
		}
	}
	return "", ErrUnknownFeature
}

// Valid reports whether id belongs to the closed set.
func (id ID) Valid() bool {
	return slices.Contains(All(), id)
}

func (id ID) String() string {
	return string(id)
}

// Ptr is a helper for optional feature arguments.
func Ptr(id ID) *ID {
	return &id
}

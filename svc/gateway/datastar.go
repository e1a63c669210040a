package gateway

import (
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/dmitrymomot/accessgate/pkg/gate"
)

const (
	// dataStarAccept is the Accept header value sent by datastar fetches.
	dataStarAccept = "text/event-stream"
	// dataStarQueryParam carries datastar signals on GET requests.
	dataStarQueryParam = "datastar"
)

// isDataStar reports whether r was issued by datastar and expects SSE.
func isDataStar(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), dataStarAccept) {
		return true
	}
	if r.URL.Query().Has(dataStarQueryParam) {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/x-datastar")
}

// gatePatch targets the gate panel and morphs it in place.
func gatePatch() []datastar.PatchElementOption {
	return []datastar.PatchElementOption{
		datastar.WithSelector("#" + gate.PanelID),
		datastar.WithMode(datastar.ElementPatchModeOuter),
	}
}

package billing

import (
	"net/url"
	"strings"
)

const (
	querySuccess   = "success"
	querySessionID = "session_id"
)

// SuccessURL appends success=true&session_id=<sessionID> to base. The session
// id is left unescaped so that provider placeholders such as
// {CHECKOUT_SESSION_ID} survive.
func SuccessURL(base, sessionID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + querySuccess + "=true&" + querySessionID + "=" + sessionID
}

// ParseReturn recognises a checkout return query and extracts the session id.
func ParseReturn(q url.Values) (sessionID string, ok bool) {
	if q.Get(querySuccess) != "true" {
		return "", false
	}
	sessionID = strings.TrimSpace(q.Get(querySessionID))
	if sessionID == "" {
		return "", false
	}
	return sessionID, true
}

package gateway

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/dmitrymomot/accessgate/pkg/logger"
	"github.com/dmitrymomot/accessgate/pkg/planapi"
)

// profile returns the edit-info form profile. An expired session sends
// datastar clients to the sign-in page with reason=session_expired.
func (g *Gateway) profile(r *http.Request) Response {
	if g.profiles == nil {
		return JSONError(http.StatusNotFound, "profile_disabled", planapi.ErrProfileUnavailable.Error())
	}
	sess, _ := sessionFrom(r)

	p, err := g.profiles.Profile(r.Context(), sess.Token, r.URL.Query().Get("setup_token"))
	switch {
	case err == nil:
		return JSON(map[string]any{"profile": p, "complete": p.Complete()})
	case errors.Is(err, planapi.ErrSessionExpired):
		if isDataStar(r) {
			return Redirect(signInExpired(g.view.SignInURL))
		}
		return JSONError(http.StatusUnauthorized, "session_expired", err.Error())
	case errors.Is(err, planapi.ErrTokenNotFound):
		return JSONError(http.StatusNotFound, "token_not_found", err.Error())
	default:
		g.log.WarnContext(r.Context(), "profile fetch failed", logger.UserID(sess.UserID), logger.Error(err))
		return JSONError(http.StatusServiceUnavailable, "profile_unavailable", planapi.ErrProfileUnavailable.Error())
	}
}

func signInExpired(base string) string {
	if base == "" {
		base = "/sign-in"
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("reason", "session_expired")
	u.RawQuery = q.Encode()
	return u.String()
}

// endSession stops the session's syncer, drops its cache and forgets cached
// access results for the user.
func (g *Gateway) endSession(r *http.Request) Response {
	sess, _ := sessionFrom(r)
	if g.sessions.Detach(sessionKey(sess)) {
		g.log.InfoContext(r.Context(), "session ended",
			logger.UserID(sess.UserID),
			logger.SessionID(sess.SessionID),
		)
	}
	g.evaluator.Invalidate(sess.UserID)
	return NoContent()
}

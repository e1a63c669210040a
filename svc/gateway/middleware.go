package gateway

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrymomot/accessgate/pkg/access"
	"github.com/dmitrymomot/accessgate/pkg/identity"
	"github.com/dmitrymomot/accessgate/pkg/logger"
	"github.com/dmitrymomot/accessgate/pkg/subsync"
)

// sessionKey identifies the syncer of a session. Tokens without a session
// id fall back to one syncer per user.
func sessionKey(s identity.Session) string {
	if s.SessionID != "" {
		return s.SessionID
	}
	return s.UserID
}

// attachSession makes sure every signed-in request has a running syncer that
// lives no longer than the session token. A failed attach is logged and the
// request continues without one.
func (g *Gateway) attachSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := identity.SessionFromContext(r.Context()); ok {
			if _, err := g.sessions.Attach(r.Context(), sessionKey(sess), sess.UserID, subsync.WithExpiry(sess.ExpiresAt)); err != nil {
				g.log.WarnContext(r.Context(), "failed to attach subscription sync",
					logger.UserID(sess.UserID),
					logger.SessionID(sess.SessionID),
					logger.Error(err),
				)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// userFrom returns the caller as seen by the evaluator; anonymous callers
// yield the zero User.
func userFrom(r *http.Request) access.User {
	sess, ok := identity.SessionFromContext(r.Context())
	if !ok {
		return access.User{}
	}
	return access.User{ID: sess.UserID, Token: sess.Token}
}

func (g *Gateway) syncerFor(r *http.Request) (*subsync.Syncer, identity.Session, bool) {
	sess, ok := identity.SessionFromContext(r.Context())
	if !ok {
		return nil, sess, false
	}
	s, ok := g.sessions.Syncer(sessionKey(sess))
	if !ok || s.UserID() != sess.UserID {
		return nil, sess, false
	}
	return s, sess, true
}

func sessionFrom(r *http.Request) (identity.Session, bool) {
	return identity.SessionFromContext(r.Context())
}

// userKey buckets rate limits per signed-in user.
func userKey(r *http.Request) string {
	sess, _ := identity.SessionFromContext(r.Context())
	return sess.UserID
}

// sameOrigin rejects state-changing requests made by pages of another site.
// Browsers attach the session cookie to cross-site form posts, so such a
// request must come from this origin or a trusted one. Requests that carry
// an Authorization header cannot be forged that way and pass.
func (g *Gateway) sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "" || g.fromTrustedOrigin(r) {
			next.ServeHTTP(w, r)
			return
		}
		g.log.WarnContext(r.Context(), "rejected cross-origin request",
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("sec_fetch_site", r.Header.Get("Sec-Fetch-Site")),
			slog.String("path", r.URL.Path),
		)
		_ = JSONError(http.StatusForbidden, "cross_origin", ErrCrossOrigin.Error()).Render(w, r)
	})
}

func (g *Gateway) fromTrustedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin != "" {
		if _, ok := g.origins[normalizeOrigin(origin)]; ok {
			return true
		}
	}

	switch r.Header.Get("Sec-Fetch-Site") {
	case "same-origin", "none":
		return true
	case "":
	default:
		return false
	}

	// Older browsers: fall back to comparing Origin with the request host.
	// Clients that send neither header are not browsers.
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host != "" && strings.EqualFold(u.Host, r.Host)
}

// normalizeOrigin reduces an origin to lower-case scheme://host[:port].
func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

package identity

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/accessgate/pkg/logger"
)

// TokenExtractor pulls a raw session token out of a request.
type TokenExtractor func(r *http.Request) (string, error)

// BearerToken reads "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// CookieToken reads the session token from the named cookie.
func CookieToken(name string) TokenExtractor {
	return func(r *http.Request) (string, error) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return "", ErrNoToken
		}
		return c.Value, nil
	}
}

// Middleware attaches a Session to requests carrying a valid token.
// Requests without a valid token pass through anonymously. The first
// extractor that finds a token wins; Bearer is used when none are given.
func Middleware(v *Verifier, log *slog.Logger, extractors ...TokenExtractor) func(http.Handler) http.Handler {
	if v == nil {
		panic("identity: verifier is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	if len(extractors) == 0 {
		extractors = []TokenExtractor{BearerToken}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			for _, ex := range extractors {
				if t, err := ex(r); err == nil {
					token = t
					break
				}
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := v.Verify(token)
			if err != nil {
				log.DebugContext(r.Context(), "rejected session token",
					logger.Component("identity"),
					logger.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			sess := Session{
				UserID:    claims.Subject,
				SessionID: claims.SessionID,
				Token:     token,
			}
			if claims.ExpiresAt != nil {
				sess.ExpiresAt = claims.ExpiresAt.Time
			}
			ctx := WithSession(r.Context(), sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession answers 401 to requests without a session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

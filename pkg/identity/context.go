package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/accessgate/pkg/logger"
)

// Session is the authenticated caller of a request.
type Session struct {
	UserID    string
	SessionID string
	Token     string
	ExpiresAt time.Time // token expiry
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the request's session, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s.UserID != ""
}

// UserID returns the authenticated user id or an empty string.
func UserID(ctx context.Context) string {
	s, _ := SessionFromContext(ctx)
	return s.UserID
}

// LoggerExtractor adds the signed-in user id to records logged with a request context.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := UserID(ctx); id != "" {
			return logger.UserID(id), true
		}
		return slog.Attr{}, false
	}
}

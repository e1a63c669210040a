package logger

import (
	"log/slog"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// SessionID records the session identifier under the key "session_id".
func SessionID(id string) slog.Attr {
	return slog.String("session_id", id)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Feature records the gated feature under the key "feature".
// An empty feature is logged as "premium" to mark a coarse premium check.
func Feature(id string) slog.Attr {
	if id == "" {
		id = "premium"
	}
	return slog.String("feature", id)
}

// Decision records a gate decision under the key "decision".
func Decision(d string) slog.Attr {
	return slog.String("decision", d)
}

// Transition records a subscription status change as a group of from/to.
func Transition(from, to string) slog.Attr {
	return slog.Group("transition", slog.String("from", from), slog.String("to", to))
}

// Category records a status change category under the key "category".
func Category(c string) slog.Attr {
	return slog.String("category", c)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Status records a subscription status under the key "status".
func Status(s string) slog.Attr {
	return slog.String("status", s)
}

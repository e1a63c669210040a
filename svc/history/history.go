package history

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/dmitrymomot/accessgate/pkg/logger"
	"github.com/dmitrymomot/accessgate/pkg/subsync"
)

const defaultListLimit = 50

// ErrInvalidChange is returned for changes without an id or user.
var ErrInvalidChange = errors.New("history: change id and user id are required")

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the goose migrations for the history tables.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Store persists subscription status changes for the admin console.
type Store interface {
	Append(ctx context.Context, c subsync.Change) error
	// List returns the user's most recent changes, newest first.
	List(ctx context.Context, userID string, limit int) ([]subsync.Change, error)
}

// Recorder returns a subsync.Hook that appends every change to store.
// Failures are logged and never reach the syncer.
func Recorder(store Store, log *slog.Logger) subsync.Hook {
	if store == nil {
		panic("history: store is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	log = log.With(logger.Component("history"))

	return func(ctx context.Context, c subsync.Change) {
		if err := store.Append(ctx, c); err != nil {
			log.ErrorContext(ctx, "failed to record subscription change",
				logger.UserID(c.UserID),
				logger.Transition(string(c.From), string(c.To)),
				logger.Error(err),
			)
		}
	}
}

func validate(c subsync.Change) error {
	if c.ID == "" || c.UserID == "" {
		return ErrInvalidChange
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > defaultListLimit {
		return defaultListLimit
	}
	return limit
}

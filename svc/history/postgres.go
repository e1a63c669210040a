package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/accessgate/pkg/subscription"
	"github.com/dmitrymomot/accessgate/pkg/subsync"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps changes in the subscription_changes table.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("history: db is required")
	}
	return &PostgresStore{db: db}
}

const insertChange = `
	INSERT INTO subscription_changes
		(id, user_id, session_id, from_status, to_status, category, reload_required, source, detected_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

// Append stores c. Appending the same change twice is a no-op.
func (s *PostgresStore) Append(ctx context.Context, c subsync.Change) error {
	if err := validate(c); err != nil {
		return err
	}
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChange, err)
	}

	_, err = s.db.Exec(ctx, insertChange,
		id, c.UserID, c.SessionID, string(c.From), string(c.To),
		string(c.Category), c.ReloadRequired, string(c.Source), c.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription change: %w", err)
	}
	return nil
}

const listChanges = `
	SELECT id, user_id, session_id, from_status, to_status, category, reload_required, source, detected_at
	FROM subscription_changes
	WHERE user_id = $1
	ORDER BY detected_at DESC
	LIMIT $2
`

// List returns up to limit changes for userID, newest first.
func (s *PostgresStore) List(ctx context.Context, userID string, limit int) ([]subsync.Change, error) {
	rows, err := s.db.Query(ctx, listChanges, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription changes: %w", err)
	}

	changes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (subsync.Change, error) {
		var (
			c                          subsync.Change
			id                         uuid.UUID
			from, to, category, source string
		)
		if err := row.Scan(&id, &c.UserID, &c.SessionID, &from, &to, &category, &c.ReloadRequired, &source, &c.DetectedAt); err != nil {
			return subsync.Change{}, err
		}
		c.ID = id.String()
		c.From = subscription.Status(from)
		c.To = subscription.Status(to)
		c.Category = subsync.Category(category)
		c.Source = subsync.Source(source)
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription changes: %w", err)
	}
	return changes, nil
}

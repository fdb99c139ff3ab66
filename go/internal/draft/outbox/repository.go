package outbox

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
)

// SQLRepository is the Postgres Repository over the draft_outbox table.
type SQLRepository struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewSQLRepository creates a new SQLRepository.
func NewSQLRepository(db *sql.DB, clock clockwork.Clock) *SQLRepository {
	return &SQLRepository{db: db, clock: clock}
}

func (r *SQLRepository) FetchUnsent(ctx context.Context, limit int) ([]events.ChangeEvent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, draft_id, entity, change, payload, created_at
		FROM draft_outbox WHERE sent_at IS NULL ORDER BY seq LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []events.ChangeEvent
	for rows.Next() {
		var (
			id uuid.UUID
			ev events.ChangeEvent
		)
		if err := rows.Scan(&id, &ev.DraftID, &ev.Entity, &ev.Change, &ev.Payload, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		ev.EventID = id.String()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *SQLRepository) MarkSent(ctx context.Context, eventID string) error {
	id, err := uuid.Parse(eventID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", eventID, err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE draft_outbox SET sent_at = $2 WHERE id = $1`, id, r.clock.Now()); err != nil {
		return fmt.Errorf("failed to mark outbox event %s as sent: %w", eventID, err)
	}
	return nil
}

func (r *SQLRepository) CountUnsent(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM draft_outbox WHERE sent_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unsent outbox events: %w", err)
	}
	return n, nil
}

package outbox

import (
	"context"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
)

// Repository reads and settles outbox rows.
type Repository interface {
	// FetchUnsent returns up to limit unsent events in commit order.
	FetchUnsent(ctx context.Context, limit int) ([]events.ChangeEvent, error)
	MarkSent(ctx context.Context, eventID string) error
	CountUnsent(ctx context.Context) (int, error)
}

// Publisher delivers one change event to the bus.
type Publisher interface {
	Publish(ctx context.Context, ev events.ChangeEvent) error
}

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/draftcoord/go/internal/models"
)

// EntityKind names the entity a change event carries.
type EntityKind string

const (
	EntityDraft       EntityKind = "draft"
	EntityTeam        EntityKind = "team"
	EntityPick        EntityKind = "pick"
	EntityParticipant EntityKind = "participant"
	EntityAuction     EntityKind = "auction"
	EntityBid         EntityKind = "bid"
)

// ChangeType is what happened to the entity.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ChangeEvent is the envelope pushed to clients for every committed change.
// Events for one draft are delivered in commit order, at least once.
type ChangeEvent struct {
	EventID   string          `json:"event_id"`
	DraftID   string          `json:"draft_id"`
	Entity    EntityKind      `json:"entity"`
	Change    ChangeType      `json:"change"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Change is a decoded change event. Exactly one entity field is set,
// matching Entity.
type Change struct {
	Entity      EntityKind
	Type        ChangeType
	Draft       *models.Draft
	Team        *models.Team
	Pick        *models.Pick
	Participant *models.Participant
	Auction     *models.Auction
	Bid         *models.BidHistory
}

// NewChangeEvent wraps entity in an envelope with a fresh event id.
func NewChangeEvent(draftID string, kind EntityKind, change ChangeType, entity any, at time.Time) (ChangeEvent, error) {
	payload, err := json.Marshal(entity)
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return ChangeEvent{
		EventID:   uuid.NewString(),
		DraftID:   draftID,
		Entity:    kind,
		Change:    change,
		Payload:   payload,
		Timestamp: at,
	}, nil
}

// Subject returns the NATS subject the event is published on.
func (e ChangeEvent) Subject() string {
	return fmt.Sprintf("draft.%s.%s", e.DraftID, e.Entity)
}

// Decode parses the payload into the entity type named by Entity.
func (e ChangeEvent) Decode() (Change, error) {
	c := Change{Entity: e.Entity, Type: e.Change}

	var target any
	switch e.Entity {
	case EntityDraft:
		c.Draft = &models.Draft{}
		target = c.Draft
	case EntityTeam:
		c.Team = &models.Team{}
		target = c.Team
	case EntityPick:
		c.Pick = &models.Pick{}
		target = c.Pick
	case EntityParticipant:
		c.Participant = &models.Participant{}
		target = c.Participant
	case EntityAuction:
		c.Auction = &models.Auction{}
		target = c.Auction
	case EntityBid:
		c.Bid = &models.BidHistory{}
		target = c.Bid
	default:
		return Change{}, fmt.Errorf("unknown entity kind: %q", e.Entity)
	}

	switch e.Change {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
	default:
		return Change{}, fmt.Errorf("unknown change type: %q", e.Change)
	}

	if err := json.Unmarshal(e.Payload, target); err != nil {
		return Change{}, fmt.Errorf("failed to unmarshal %s payload: %w", e.Entity, err)
	}
	return c, nil
}

package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// SubmitJoin seats a participant. A caller-chosen participant id makes
// retries idempotent from the caller's side: a second join with the same
// id is rejected rather than seating a duplicate.
func (a *App) SubmitJoin(ctx context.Context, req SubmitJoinRequest) (models.Participant, error) {
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return models.Participant{}, invalid("display name is required")
	}

	var p models.Participant
	err := a.store.InTx(ctx, func(q Queries) error {
		d, err := q.GetDraftForUpdate(ctx, req.DraftID)
		if err != nil {
			return err
		}
		if d.Status == models.DraftStatusCompleted {
			return precondition("draft is %s", d.Status)
		}
		existing, err := q.ListParticipants(ctx, d.ID)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if (req.ParticipantID != "" && other.ID == req.ParticipantID) || strings.EqualFold(other.DisplayName, name) {
				return precondition("%s has already joined", name)
			}
		}

		p = models.Participant{
			ID:          req.ParticipantID,
			DraftID:     d.ID,
			DisplayName: name,
			JoinedAt:    a.clock.Now(),
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if err := q.InsertParticipant(ctx, p); err != nil {
			return err
		}
		return a.emit(ctx, q, d.ID, events.EntityParticipant, events.ChangeInsert, p)
	})
	if err != nil {
		return models.Participant{}, fmt.Errorf("failed to join draft: %w", err)
	}

	log.Info().Str("draft_id", p.DraftID).Str("participant_id", p.ID).Msg("participant joined")
	return p, nil
}

// SubmitLeave removes a participant from the draft.
func (a *App) SubmitLeave(ctx context.Context, req SubmitLeaveRequest) error {
	err := a.store.InTx(ctx, func(q Queries) error {
		p, err := q.GetParticipant(ctx, req.ParticipantID)
		if err != nil {
			return err
		}
		if p.DraftID != req.DraftID {
			return fmt.Errorf("%w: participant %s is not in draft %s", ErrNotFound, p.ID, req.DraftID)
		}
		if err := q.DeleteParticipant(ctx, p.ID); err != nil {
			return err
		}
		return a.emit(ctx, q, p.DraftID, events.EntityParticipant, events.ChangeDelete, p)
	})
	if err != nil {
		return fmt.Errorf("failed to leave draft: %w", err)
	}

	log.Info().Str("draft_id", req.DraftID).Str("participant_id", req.ParticipantID).Msg("participant left")
	return nil
}

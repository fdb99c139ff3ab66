package backend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
	"github.com/mcdev12/draftcoord/go/internal/draft/order"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// SubmitPick records a pick in a sequential draft. The pick, the team's
// budget and the advanced turn are committed together.
func (a *App) SubmitPick(ctx context.Context, req SubmitPickRequest) (models.Pick, error) {
	item, err := a.item(req.ItemID)
	if err != nil {
		return models.Pick{}, err
	}

	var pick models.Pick
	err = a.store.InTx(ctx, func(q Queries) error {
		d, err := q.GetDraftForUpdate(ctx, req.DraftID)
		if err != nil {
			return err
		}
		if !d.IsSequential() {
			return precondition("items are acquired by winning auctions in this draft")
		}
		if err := requireActive(d); err != nil {
			return err
		}
		if !teamInDraft(d, req.TeamID) {
			return fmt.Errorf("%w: team %s is not in draft %s", ErrNotFound, req.TeamID, d.ID)
		}

		engine, err := a.engineFor(d)
		if err != nil {
			return err
		}
		v := engine.Validate(item)
		if !v.Legal {
			return invalid("%s", v.Reason)
		}
		if req.Cost != v.Cost {
			return precondition("%s costs %d, not %d", item.Name, v.Cost, req.Cost)
		}

		onClock, ok := order.TeamForTurn(d.TeamIDs, d.Rounds, d.CurrentTurn)
		if !ok {
			return precondition("every pick in the draft has been made")
		}
		if onClock != req.TeamID {
			return precondition("team %s is not on the clock", req.TeamID)
		}

		team, err := q.GetTeamForUpdate(ctx, req.TeamID)
		if err != nil {
			return err
		}
		if rosterFull(engine.Format(), team) {
			return precondition("roster is full")
		}
		if v.Cost > team.Budget {
			return precondition("%s costs %d but %s only has %d left", item.Name, v.Cost, team.Name, team.Budget)
		}
		picks, err := q.ListPicks(ctx, d.ID)
		if err != nil {
			return err
		}
		if engine.Format().UniquenessClause && itemTaken(picks, item.ID) {
			return precondition("%s has already been drafted", item.Name)
		}

		pick = models.Pick{
			ID:        uuid.NewString(),
			DraftID:   d.ID,
			TeamID:    team.ID,
			ItemID:    item.ID,
			ItemName:  item.Name,
			Cost:      v.Cost,
			Overall:   d.CurrentTurn,
			Round:     order.RoundForTurn(len(d.TeamIDs), d.CurrentTurn),
			CreatedAt: a.clock.Now(),
		}
		return a.award(ctx, q, &d, team, pick, item, func(d *models.Draft) bool {
			d.CurrentTurn++
			d.CurrentRound = order.RoundForTurn(len(d.TeamIDs), d.CurrentTurn)
			return order.IsComplete(order.Snake(len(d.TeamIDs), d.Rounds), d.CurrentTurn)
		})
	})
	if err != nil {
		return models.Pick{}, fmt.Errorf("failed to submit pick: %w", err)
	}

	log.Info().
		Str("draft_id", pick.DraftID).
		Str("team_id", pick.TeamID).
		Str("item_id", pick.ItemID).
		Int("overall", pick.Overall).
		Msg("pick made")
	return pick, nil
}

// award writes a pick, charges the team and advances the draft. Events are
// emitted pick, then team, then draft so that a client reconciling them
// in order never sees a budget without the pick that explains it.
func (a *App) award(ctx context.Context, q Queries, d *models.Draft, team models.Team, pick models.Pick, item models.Item, advance func(*models.Draft) bool) error {
	if err := q.InsertPick(ctx, pick, item); err != nil {
		return err
	}
	if err := a.emit(ctx, q, d.ID, events.EntityPick, events.ChangeInsert, pick); err != nil {
		return err
	}

	team.Budget -= pick.Cost
	team.PickIDs = append(team.PickIDs, pick.ID)
	if err := q.UpdateTeam(ctx, team); err != nil {
		return err
	}
	if err := a.emit(ctx, q, d.ID, events.EntityTeam, events.ChangeUpdate, team); err != nil {
		return err
	}

	complete := advance(d)
	if complete {
		now := a.clock.Now()
		d.Status = models.DraftStatusCompleted
		d.CompletedAt = &now
	}
	d.UpdatedAt = a.clock.Now()
	if err := q.UpdateDraft(ctx, *d); err != nil {
		return err
	}
	return a.emit(ctx, q, d.ID, events.EntityDraft, events.ChangeUpdate, *d)
}

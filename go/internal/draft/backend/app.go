package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
	"github.com/mcdev12/draftcoord/go/internal/draft/rules"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// App is the authoritative draft server. Every mutation runs in one
// transaction that also writes the change events for the outbox relay.
type App struct {
	store   Store
	formats *rules.Registry
	items   ItemCatalog
	clock   clockwork.Clock
	timer   AuctionTimer
}

// NewApp creates a new App.
func NewApp(store Store, formats *rules.Registry, items ItemCatalog, clock clockwork.Clock) *App {
	return &App{
		store:   store,
		formats: formats,
		items:   items,
		clock:   clock,
	}
}

// SetAuctionTimer registers the scheduler that closes auctions.
func (a *App) SetAuctionTimer(t AuctionTimer) {
	a.timer = t
}

// CreateDraft creates a pending draft and seats its teams in order.
func (a *App) CreateDraft(ctx context.Context, req CreateDraftRequest) (models.Draft, []models.Team, error) {
	engine, err := a.formats.Engine(req.FormatID)
	if err != nil {
		return models.Draft{}, nil, invalid("%v", err)
	}
	if err := validateCreateDraftRequest(req); err != nil {
		return models.Draft{}, nil, err
	}

	now := a.clock.Now()
	d := models.Draft{
		ID:              uuid.NewString(),
		FormatID:        req.FormatID,
		Kind:            engine.Format().Kind,
		Status:          models.DraftStatusPending,
		Rounds:          req.Rounds,
		BudgetPerTeam:   req.BudgetPerTeam,
		MinBidIncrement: req.MinBidIncrement,
		NominationSec:   req.NominationSec,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if d.MinBidIncrement <= 0 {
		d.MinBidIncrement = 1
	}
	if d.Rounds == 0 {
		d.Rounds = engine.Format().MaxItemsPerTeam
	}
	if d.IsSequential() && d.Rounds <= 0 {
		return models.Draft{}, nil, invalid("sequential drafts need a number of rounds")
	}

	teams := make([]models.Team, len(req.Teams))
	for i, nt := range req.Teams {
		teams[i] = models.Team{
			ID:            uuid.NewString(),
			DraftID:       d.ID,
			Name:          strings.TrimSpace(nt.Name),
			OwnerID:       nt.OwnerID,
			Position:      i + 1,
			InitialBudget: req.BudgetPerTeam,
			Budget:        req.BudgetPerTeam,
			PickIDs:       []string{},
			CreatedAt:     now,
		}
		d.TeamIDs = append(d.TeamIDs, teams[i].ID)
	}

	err = a.store.InTx(ctx, func(q Queries) error {
		if err := q.InsertDraft(ctx, d); err != nil {
			return err
		}
		if err := a.emit(ctx, q, d.ID, events.EntityDraft, events.ChangeInsert, d); err != nil {
			return err
		}
		for _, t := range teams {
			if err := q.InsertTeam(ctx, t); err != nil {
				return err
			}
			if err := a.emit(ctx, q, d.ID, events.EntityTeam, events.ChangeInsert, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Draft{}, nil, fmt.Errorf("failed to create draft: %w", err)
	}

	log.Info().
		Str("draft_id", d.ID).
		Str("format_id", d.FormatID).
		Int("teams", len(teams)).
		Msg("created draft")
	return d, teams, nil
}

func validateCreateDraftRequest(req CreateDraftRequest) error {
	if len(req.Teams) == 0 {
		return invalid("a draft needs at least one team")
	}
	if req.Rounds < 0 {
		return invalid("rounds must not be negative")
	}
	if req.BudgetPerTeam < 0 {
		return invalid("budget_per_team must not be negative")
	}
	for i, t := range req.Teams {
		if strings.TrimSpace(t.Name) == "" {
			return invalid("team %d has no name", i+1)
		}
	}
	return nil
}

// StartDraft moves a pending draft to active and puts the first team on the clock.
func (a *App) StartDraft(ctx context.Context, draftID string) (models.Draft, error) {
	return a.transition(ctx, draftID, models.DraftStatusActive, func(d *models.Draft) {
		now := a.clock.Now()
		d.StartedAt = &now
		d.CurrentTurn = 1
		d.CurrentRound = 1
	})
}

// PauseDraft stops an active draft from accepting picks, bids and nominations.
func (a *App) PauseDraft(ctx context.Context, draftID string) (models.Draft, error) {
	return a.transition(ctx, draftID, models.DraftStatusPaused, nil)
}

// ResumeDraft reactivates a paused draft.
func (a *App) ResumeDraft(ctx context.Context, draftID string) (models.Draft, error) {
	return a.transition(ctx, draftID, models.DraftStatusActive, nil)
}

func (a *App) transition(ctx context.Context, draftID string, next models.DraftStatus, mutate func(*models.Draft)) (models.Draft, error) {
	var updated models.Draft
	err := a.store.InTx(ctx, func(q Queries) error {
		d, err := q.GetDraftForUpdate(ctx, draftID)
		if err != nil {
			return err
		}
		if d.Status == models.DraftStatusPending && next == models.DraftStatusActive && len(d.TeamIDs) == 0 {
			return precondition("draft %s has no teams", draftID)
		}
		if !d.Status.CanTransition(next) {
			return precondition("cannot move draft from %s to %s", d.Status, next)
		}
		prev := d.Status
		d.Status = next
		if prev == models.DraftStatusPending && mutate != nil {
			mutate(&d)
		}
		d.UpdatedAt = a.clock.Now()
		if err := q.UpdateDraft(ctx, d); err != nil {
			return err
		}
		updated = d
		return a.emit(ctx, q, d.ID, events.EntityDraft, events.ChangeUpdate, d)
	})
	if err != nil {
		return models.Draft{}, fmt.Errorf("failed to update draft status: %w", err)
	}

	log.Info().
		Str("draft_id", draftID).
		Str("status", string(updated.Status)).
		Msg("draft status changed")
	return updated, nil
}

// GetDraft fetches the draft record.
func (a *App) GetDraft(ctx context.Context, draftID string) (models.Draft, error) {
	d, err := a.store.GetDraft(ctx, draftID)
	if err != nil {
		return models.Draft{}, fmt.Errorf("failed to get draft: %w", err)
	}
	return d, nil
}

// ListTeams fetches every team in the draft in draft order.
func (a *App) ListTeams(ctx context.Context, draftID string) ([]models.Team, error) {
	teams, err := a.store.ListTeams(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

// ListPicks fetches every pick in the draft ordered by overall pick.
func (a *App) ListPicks(ctx context.Context, draftID string) ([]models.Pick, error) {
	picks, err := a.store.ListPicks(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	return picks, nil
}

// ListParticipants fetches everyone seated in the draft.
func (a *App) ListParticipants(ctx context.Context, draftID string) ([]models.Participant, error) {
	ps, err := a.store.ListParticipants(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return ps, nil
}

// ActiveAuction fetches the open auction of the draft, or nil if none is open.
func (a *App) ActiveAuction(ctx context.Context, draftID string) (*models.Auction, error) {
	auction, err := a.store.GetActiveAuction(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active auction: %w", err)
	}
	return auction, nil
}

// emit records a change event in the same transaction as the change.
func (a *App) emit(ctx context.Context, q Queries, draftID string, kind events.EntityKind, change events.ChangeType, entity any) error {
	ev, err := events.NewChangeEvent(draftID, kind, change, entity, a.clock.Now())
	if err != nil {
		return err
	}
	if err := q.InsertOutbox(ctx, ev); err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", kind, err)
	}
	return nil
}

func (a *App) engineFor(d models.Draft) (*rules.Engine, error) {
	engine, err := a.formats.Engine(d.FormatID)
	if err != nil {
		return nil, fmt.Errorf("draft %s: %w", d.ID, err)
	}
	return engine, nil
}

func (a *App) item(id string) (models.Item, error) {
	item, err := a.items.Item(id)
	if errors.Is(err, rules.ErrUnknownItem) {
		return models.Item{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return item, err
}

func requireActive(d models.Draft) error {
	if d.Status != models.DraftStatusActive {
		return precondition("draft is %s", d.Status)
	}
	return nil
}

func teamInDraft(d models.Draft, teamID string) bool {
	for _, id := range d.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}

func itemTaken(picks []models.Pick, itemID string) bool {
	for _, p := range picks {
		if p.ItemID == itemID {
			return true
		}
	}
	return false
}

func rosterFull(format models.Format, team models.Team) bool {
	return format.MaxItemsPerTeam > 0 && len(team.PickIDs) >= format.MaxItemsPerTeam
}

package optimistic

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftcoord/go/internal/draft/rules"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// Config controls how long settled actions stay visible and how often a
// failed action may be retried.
type Config struct {
	ConfirmGrace time.Duration
	FailGrace    time.Duration
	// StaleGrace bounds how long a confirmed action whose entity never
	// arrived keeps its projection.
	StaleGrace         time.Duration
	MaxRetries         int
	NominationDuration time.Duration // used when a nomination has none
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		ConfirmGrace:       2 * time.Second,
		FailGrace:          10 * time.Second,
		StaleGrace:         30 * time.Second,
		MaxRetries:         3,
		NominationDuration: 30 * time.Second,
	}
}

// Engine holds one client's view of a draft: the last authoritative state
// plus speculative projections of the client's own actions. It is owned by
// a single goroutine and is not safe for concurrent use.
type Engine struct {
	draftID string
	rules   *rules.Engine
	clock   clockwork.Clock
	cfg     Config

	// authoritative
	draft        *models.Draft
	teams        map[string]models.Team
	picks        map[string]models.Pick
	auctions     map[string]models.Auction
	bids         []models.BidHistory
	participants map[string]models.Participant

	// speculative, keyed by action id
	actions          map[string]*PendingAction
	actionOrder      []string
	tempPicks        map[string]models.Pick
	tempBids         map[string]models.BidHistory
	tempAuctions     map[string]models.Auction
	tempParticipants map[string]models.Participant
	leaving          map[string]string // participant id -> action id

	revision uint64
	cache    *View
}

// New creates an engine for draftID governed by the given rules.
func New(draftID string, ruleset *rules.Engine, clock clockwork.Clock, cfg Config) *Engine {
	return &Engine{
		draftID:          draftID,
		rules:            ruleset,
		clock:            clock,
		cfg:              cfg,
		teams:            make(map[string]models.Team),
		picks:            make(map[string]models.Pick),
		auctions:         make(map[string]models.Auction),
		participants:     make(map[string]models.Participant),
		actions:          make(map[string]*PendingAction),
		tempPicks:        make(map[string]models.Pick),
		tempBids:         make(map[string]models.BidHistory),
		tempAuctions:     make(map[string]models.Auction),
		tempParticipants: make(map[string]models.Participant),
		leaving:          make(map[string]string),
	}
}

// NewFromRegistry resolves formatID in reg and creates an engine. An
// unknown format is fatal.
func NewFromRegistry(draftID, formatID string, reg *rules.Registry, clock clockwork.Clock, cfg Config) (*Engine, error) {
	ruleset, err := reg.Engine(formatID)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine for draft %s: %w", draftID, err)
	}
	return New(draftID, ruleset, clock, cfg), nil
}

// DraftID returns the draft the engine tracks.
func (e *Engine) DraftID() string {
	return e.draftID
}

// Revision increments on every observable state change.
func (e *Engine) Revision() uint64 {
	return e.revision
}

func (e *Engine) bump() {
	e.revision++
}

// ApplyPick projects a pick of item by teamID and returns the action id.
func (e *Engine) ApplyPick(item models.Item, teamID string) (string, error) {
	return e.apply(PickAction{Item: item, TeamID: teamID, Cost: e.rules.Cost(item)})
}

// ApplyBid projects a bid on an active auction.
func (e *Engine) ApplyBid(auctionID, teamID string, amount int) (string, error) {
	return e.apply(BidAction{AuctionID: auctionID, TeamID: teamID, Amount: amount})
}

// ApplyNomination projects a new auction for item nominated by teamID.
func (e *Engine) ApplyNomination(item models.Item, teamID string, startingBid int, duration time.Duration) (string, error) {
	if duration <= 0 {
		duration = e.cfg.NominationDuration
		if e.draft != nil && e.draft.NominationSec > 0 {
			duration = time.Duration(e.draft.NominationSec) * time.Second
		}
	}
	return e.apply(NominateAction{Item: item, TeamID: teamID, StartingBid: startingBid, Duration: duration})
}

// ApplyJoin projects a participant joining. participantID may be empty.
func (e *Engine) ApplyJoin(displayName, participantID string) (string, error) {
	return e.apply(JoinAction{ParticipantID: participantID, DisplayName: displayName})
}

// ApplyLeave projects a participant leaving.
func (e *Engine) ApplyLeave(participantID string) (string, error) {
	return e.apply(LeaveAction{ParticipantID: participantID})
}

func (e *Engine) apply(action Action) (string, error) {
	e.sweep()

	pa := &PendingAction{
		ID:        uuid.NewString(),
		Action:    action,
		Status:    StatusPending,
		TempID:    models.TempIDPrefix + uuid.NewString(),
		CreatedAt: e.clock.Now(),
	}
	if err := e.project(pa); err != nil {
		return "", err
	}

	e.actions[pa.ID] = pa
	e.actionOrder = append(e.actionOrder, pa.ID)
	e.bump()
	return pa.ID, nil
}

// Action returns a copy of the tracked action.
func (e *Engine) Action(id string) (PendingAction, bool) {
	pa, ok := e.actions[id]
	if !ok {
		return PendingAction{}, false
	}
	return *pa, true
}

// Confirm records that the server accepted the action. The projection
// stays until the confirmed entity arrives.
func (e *Engine) Confirm(id string) error {
	pa, ok := e.actions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, id)
	}
	if pa.Status != StatusPending {
		return fmt.Errorf("%w: cannot confirm %s action", ErrInvalidTransition, pa.Status)
	}
	pa.Status = StatusConfirmed
	pa.SettledAt = e.clock.Now()
	e.bump()
	return nil
}

// Fail records that the action did not take effect and rolls back its
// projection. A bid's effect on the auction is left for the next snapshot
// to correct.
func (e *Engine) Fail(id, reason string) error {
	pa, ok := e.actions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, id)
	}
	if pa.Status != StatusPending {
		return fmt.Errorf("%w: cannot fail %s action", ErrInvalidTransition, pa.Status)
	}
	e.settleFailed(pa, reason, false)
	return nil
}

func (e *Engine) settleFailed(pa *PendingAction, reason string, conflict bool) {
	pa.Status = StatusFailed
	pa.Reason = reason
	pa.Conflict = conflict
	pa.SettledAt = e.clock.Now()
	e.rollback(pa)
	e.bump()

	log.Debug().
		Str("draft_id", e.draftID).
		Str("action_id", pa.ID).
		Str("kind", string(pa.Kind())).
		Bool("conflict", conflict).
		Str("reason", reason).
		Msg("optimistic action failed")
}

// Retry re-validates a failed action against current state and, if it is
// still valid, projects it again.
func (e *Engine) Retry(id string) error {
	e.sweep()

	pa, ok := e.actions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, id)
	}
	if pa.Status != StatusFailed {
		return fmt.Errorf("%w: cannot retry %s action", ErrInvalidTransition, pa.Status)
	}
	if pa.Retries >= e.cfg.MaxRetries {
		return fmt.Errorf("%w: action %s retried %d times", ErrRetryLimit, id, pa.Retries)
	}
	if err := e.project(pa); err != nil {
		return err
	}

	pa.Status = StatusPending
	pa.Retries++
	pa.Reason = ""
	pa.Conflict = false
	pa.SettledAt = time.Time{}
	e.bump()
	return nil
}

// sweep drops settled actions whose display grace has elapsed.
func (e *Engine) sweep() {
	now := e.clock.Now()
	kept := e.actionOrder[:0]
	removed := false
	for _, id := range e.actionOrder {
		pa := e.actions[id]
		if e.expired(pa, now) {
			e.rollback(pa)
			delete(e.actions, id)
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	e.actionOrder = kept
	if removed {
		e.bump()
	}
}

func (e *Engine) expired(pa *PendingAction, now time.Time) bool {
	switch pa.Status {
	case StatusFailed:
		return !now.Before(pa.SettledAt.Add(e.cfg.FailGrace))
	case StatusConfirmed:
		if pa.matched {
			return !now.Before(pa.SettledAt.Add(e.cfg.ConfirmGrace))
		}
		return !now.Before(pa.SettledAt.Add(e.cfg.StaleGrace))
	}
	return false
}

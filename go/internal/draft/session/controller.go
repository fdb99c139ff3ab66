package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/smallnest/chanx"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
	"github.com/mcdev12/draftcoord/go/internal/draft/optimistic"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// Controller owns one draft's optimistic engine. All engine access happens
// on the goroutine running Run; other goroutines talk to it through an
// unbounded, ordered inbox.
type Controller struct {
	engine *optimistic.Engine
	submit Submitter
	fetch  Fetcher
	clock  clockwork.Clock
	cfg    Config

	inbox       *chanx.UnboundedChan[msg]
	cancelInbox context.CancelFunc
	done        chan struct{}

	stalls     map[string]stall
	refreshing bool
	// applied counts pushed changes merged into the engine. A snapshot
	// requested before the latest of them is stale.
	applied uint64
	// overtaken counts consecutive snapshots discarded as stale.
	overtaken int
	wg        sync.WaitGroup
}

// maxOvertakenRefreshes bounds how many stale snapshots in a row are
// refetched at once. Past it the next trigger starts a refresh.
const maxOvertakenRefreshes = 3

// stall tracks the timeout of one submission attempt.
type stall struct {
	timer   clockwork.Timer
	attempt int
}

// NewController creates a controller. Call Run to start processing.
func NewController(engine *optimistic.Engine, submit Submitter, fetch Fetcher, clock clockwork.Clock, cfg Config) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		engine:      engine,
		submit:      submit,
		fetch:       fetch,
		clock:       clock,
		cfg:         cfg,
		inbox:       chanx.NewUnboundedChan[msg](ctx, 16),
		cancelInbox: cancel,
		done:        make(chan struct{}),
		stalls:      make(map[string]stall),
	}
}

// Run processes local calls, RPC results and pushed change events until
// ctx is cancelled. A closed feed triggers a pull refresh; pass nil to run
// on pull refreshes alone. Run must be called once.
func (c *Controller) Run(ctx context.Context, feed <-chan events.ChangeEvent) error {
	draftID := c.engine.DraftID()
	log.Info().Str("draft_id", draftID).Msg("session controller started")

	defer func() {
		for id, s := range c.stalls {
			s.timer.Stop()
			delete(c.stalls, id)
		}
		close(c.done)
		c.wg.Wait()
		c.cancelInbox()
		log.Info().Str("draft_id", draftID).Msg("session controller stopped")
	}()

	var tick <-chan time.Time
	if c.cfg.RefreshInterval > 0 {
		ticker := c.clock.NewTicker(c.cfg.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}

	c.startRefresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-feed:
			if !ok {
				log.Warn().Str("draft_id", draftID).Msg("change feed closed, falling back to pull refresh")
				feed = nil
				c.startRefresh(ctx)
				continue
			}
			c.handleEvent(ev)
		case m := <-c.inbox.Out:
			c.handle(ctx, m)
		case <-tick:
			c.startRefresh(ctx)
		}
	}
}

func (c *Controller) handle(ctx context.Context, m msg) {
	switch m := m.(type) {
	case applyMsg:
		id, err := m.apply(c.engine)
		m.reply <- applyResult{actionID: id, err: err}
		if err == nil {
			c.dispatch(ctx, id)
		}
	case retryMsg:
		err := c.engine.Retry(m.actionID)
		m.reply <- err
		if err == nil {
			c.dispatch(ctx, m.actionID)
		}
	case stateMsg:
		m.reply <- c.engine.CurrentState()
	case settleMsg:
		c.settle(ctx, m.actionID, m.attempt, m.err)
	case stallMsg:
		if s, waiting := c.stalls[m.actionID]; waiting && s.attempt == m.attempt {
			c.settle(ctx, m.actionID, m.attempt, fmt.Errorf("%w: request timed out", ErrNetwork))
		}
	case refreshMsg:
		c.startRefresh(ctx)
	case snapshotMsg:
		c.refreshing = false
		if m.err != nil {
			log.Warn().Err(m.err).Str("draft_id", c.engine.DraftID()).Msg("pull refresh failed")
			return
		}
		if m.since != c.applied {
			c.overtaken++
			log.Debug().
				Str("draft_id", c.engine.DraftID()).
				Uint64("changes", c.applied-m.since).
				Msg("discarding snapshot overtaken by pushed changes")
			if c.overtaken < maxOvertakenRefreshes {
				c.startRefresh(ctx)
			}
			return
		}
		c.overtaken = 0
		c.engine.Reconcile(m.snapshot)
	}
}

func (c *Controller) handleEvent(ev events.ChangeEvent) {
	if ev.DraftID != c.engine.DraftID() {
		return
	}
	change, err := ev.Decode()
	if err != nil {
		log.Warn().Err(err).Str("event_id", ev.EventID).Msg("dropping undecodable change event")
		return
	}
	c.applied++
	if err := c.engine.ReconcileChange(change); err != nil {
		log.Warn().Err(err).Str("event_id", ev.EventID).Msg("failed to reconcile change event")
	}
}

// dispatch submits an accepted action off the loop and arms its stall timer.
func (c *Controller) dispatch(ctx context.Context, actionID string) {
	pa, ok := c.engine.Action(actionID)
	if !ok {
		return
	}
	attempt := pa.Retries
	if c.cfg.RPCTimeout > 0 {
		if prev, ok := c.stalls[actionID]; ok {
			prev.timer.Stop()
		}
		c.stalls[actionID] = stall{
			timer: c.clock.AfterFunc(c.cfg.RPCTimeout, func() {
				c.post(stallMsg{actionID: actionID, attempt: attempt})
			}),
			attempt: attempt,
		}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.call(ctx, pa.Action)
		c.post(settleMsg{actionID: actionID, attempt: attempt, err: err})
	}()
}

func (c *Controller) call(ctx context.Context, action optimistic.Action) error {
	draftID := c.engine.DraftID()
	switch a := action.(type) {
	case optimistic.PickAction:
		return c.submit.SubmitPick(ctx, draftID, a.TeamID, a.Item.ID, a.Cost)
	case optimistic.BidAction:
		return c.submit.SubmitBid(ctx, a.AuctionID, a.TeamID, a.Amount)
	case optimistic.NominateAction:
		return c.submit.SubmitNomination(ctx, draftID, a.TeamID, a.Item.ID, a.StartingBid, a.Duration)
	case optimistic.JoinAction:
		return c.submit.SubmitJoin(ctx, draftID, a.DisplayName, a.ParticipantID)
	case optimistic.LeaveAction:
		return c.submit.SubmitLeave(ctx, draftID, a.ParticipantID)
	}
	return fmt.Errorf("unsupported action %T", action)
}

// settle applies the outcome of one submission attempt. Outcomes of
// attempts superseded by a retry are dropped.
func (c *Controller) settle(ctx context.Context, actionID string, attempt int, err error) {
	pa, ok := c.engine.Action(actionID)
	if !ok || pa.Retries != attempt {
		log.Debug().Str("action_id", actionID).Int("attempt", attempt).Msg("ignoring outcome of stale attempt")
		return
	}
	if s, ok := c.stalls[actionID]; ok && s.attempt == attempt {
		s.timer.Stop()
		delete(c.stalls, actionID)
	}

	if err == nil {
		if cerr := c.engine.Confirm(actionID); cerr != nil {
			// already settled by a snapshot or the stall timer
			log.Debug().Err(cerr).Str("action_id", actionID).Msg("ignoring late confirmation")
		}
		return
	}

	if ferr := c.engine.Fail(actionID, err.Error()); ferr != nil {
		log.Debug().Err(ferr).Str("action_id", actionID).Msg("ignoring late failure")
		return
	}
	log.Info().
		Err(err).
		Str("draft_id", c.engine.DraftID()).
		Str("action_id", actionID).
		Bool("network", errors.Is(err, ErrNetwork)).
		Msg("action failed")

	if c.cfg.RefreshOnFailure {
		c.startRefresh(ctx)
	}
}

// startRefresh fetches a full snapshot off the loop. Only one refresh runs
// at a time.
func (c *Controller) startRefresh(ctx context.Context) {
	if c.fetch == nil || c.refreshing {
		return
	}
	c.refreshing = true
	draftID := c.engine.DraftID()
	since := c.applied

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		snap, err := c.pull(ctx, draftID)
		c.post(snapshotMsg{snapshot: snap, since: since, err: err})
	}()
}

func (c *Controller) pull(ctx context.Context, draftID string) (optimistic.Snapshot, error) {
	draft, err := c.fetch.FetchDraft(ctx, draftID)
	if err != nil {
		return optimistic.Snapshot{}, fmt.Errorf("failed to fetch draft: %w", err)
	}
	teams, err := c.fetch.FetchTeams(ctx, draftID)
	if err != nil {
		return optimistic.Snapshot{}, fmt.Errorf("failed to fetch teams: %w", err)
	}
	picks, err := c.fetch.FetchPicks(ctx, draftID)
	if err != nil {
		return optimistic.Snapshot{}, fmt.Errorf("failed to fetch picks: %w", err)
	}
	participants, err := c.fetch.FetchParticipants(ctx, draftID)
	if err != nil {
		return optimistic.Snapshot{}, fmt.Errorf("failed to fetch participants: %w", err)
	}
	auction, err := c.fetch.FetchActiveAuction(ctx, draftID)
	if err != nil {
		return optimistic.Snapshot{}, fmt.Errorf("failed to fetch active auction: %w", err)
	}

	snap := optimistic.Snapshot{
		Draft:            &draft,
		Teams:            teams,
		Picks:            picks,
		Participants:     participants,
		AuctionsComplete: true,
	}
	if snap.Participants == nil {
		snap.Participants = []models.Participant{}
	}
	if auction != nil {
		snap.Auctions = []models.Auction{*auction}
	}
	return snap, nil
}

// post delivers m to the loop unless the controller has stopped.
func (c *Controller) post(m msg) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.inbox.In <- m:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) request(m msg) error {
	if !c.post(m) {
		return ErrStopped
	}
	return nil
}

func (c *Controller) apply(ctx context.Context, fn func(*optimistic.Engine) (string, error)) (string, error) {
	reply := make(chan applyResult, 1)
	if err := c.request(applyMsg{apply: fn, reply: reply}); err != nil {
		return "", err
	}
	select {
	case res := <-reply:
		return res.actionID, res.err
	case <-c.done:
		return "", ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ApplyPick projects a pick and submits it. Local validation errors are
// returned before anything is sent.
func (c *Controller) ApplyPick(ctx context.Context, item models.Item, teamID string) (string, error) {
	return c.apply(ctx, func(e *optimistic.Engine) (string, error) {
		return e.ApplyPick(item, teamID)
	})
}

// ApplyBid projects a bid and submits it.
func (c *Controller) ApplyBid(ctx context.Context, auctionID, teamID string, amount int) (string, error) {
	return c.apply(ctx, func(e *optimistic.Engine) (string, error) {
		return e.ApplyBid(auctionID, teamID, amount)
	})
}

// ApplyNomination projects a nomination and submits it.
func (c *Controller) ApplyNomination(ctx context.Context, item models.Item, teamID string, startingBid int, duration time.Duration) (string, error) {
	return c.apply(ctx, func(e *optimistic.Engine) (string, error) {
		return e.ApplyNomination(item, teamID, startingBid, duration)
	})
}

// Join projects a participant joining and submits it.
func (c *Controller) Join(ctx context.Context, displayName, participantID string) (string, error) {
	return c.apply(ctx, func(e *optimistic.Engine) (string, error) {
		return e.ApplyJoin(displayName, participantID)
	})
}

// Leave projects a participant leaving and submits it.
func (c *Controller) Leave(ctx context.Context, participantID string) (string, error) {
	return c.apply(ctx, func(e *optimistic.Engine) (string, error) {
		return e.ApplyLeave(participantID)
	})
}

// Retry re-projects and resubmits a failed action.
func (c *Controller) Retry(ctx context.Context, actionID string) error {
	reply := make(chan error, 1)
	if err := c.request(retryMsg{actionID: actionID, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current speculative view.
func (c *Controller) State(ctx context.Context) (optimistic.View, error) {
	reply := make(chan optimistic.View, 1)
	if err := c.request(stateMsg{reply: reply}); err != nil {
		return optimistic.View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-c.done:
		return optimistic.View{}, ErrStopped
	case <-ctx.Done():
		return optimistic.View{}, ctx.Err()
	}
}

// Refresh asks the controller to pull authoritative state.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.request(refreshMsg{})
}

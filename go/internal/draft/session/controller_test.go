package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
	"github.com/mcdev12/draftcoord/go/internal/draft/optimistic"
	"github.com/mcdev12/draftcoord/go/internal/draft/rules"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

const draftID = "draft-1"

var (
	epoch   = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	pikachu = models.Item{ID: "pikachu", Name: "Pikachu", Generation: 1, Strength: 320}
	mewtwo  = models.Item{ID: "mewtwo", Name: "Mewtwo", Generation: 1, Strength: 680}
)

type fakeSubmitter struct {
	mu    sync.Mutex
	picks []string
	// pickFn overrides the result of SubmitPick when set.
	pickFn func(ctx context.Context) error
}

func (f *fakeSubmitter) SubmitPick(ctx context.Context, draftID, teamID, itemID string, cost int) error {
	f.mu.Lock()
	f.picks = append(f.picks, fmt.Sprintf("%s:%s:%d", teamID, itemID, cost))
	fn := f.pickFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (f *fakeSubmitter) SubmitBid(ctx context.Context, auctionID, teamID string, amount int) error {
	return nil
}

func (f *fakeSubmitter) SubmitNomination(ctx context.Context, draftID, teamID, itemID string, startingBid int, duration time.Duration) error {
	return nil
}

func (f *fakeSubmitter) SubmitJoin(ctx context.Context, draftID, displayName, participantID string) error {
	return nil
}

func (f *fakeSubmitter) SubmitLeave(ctx context.Context, draftID, participantID string) error {
	return nil
}

func (f *fakeSubmitter) pickCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.picks...)
}

type fakeFetcher struct {
	mu      sync.Mutex
	fetches int
	picks   []models.Pick
	auction *models.Auction
	// when set, FetchActiveAuction reports on entered and waits on gate
	// after reading the auction.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeFetcher) FetchDraft(ctx context.Context, id string) (models.Draft, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	return models.Draft{
		ID:          id,
		FormatID:    "gen1",
		Kind:        models.DraftKindSequential,
		Status:      models.DraftStatusActive,
		TeamIDs:     []string{"t1", "t2"},
		Rounds:      2,
		CurrentTurn: 1,
	}, nil
}

func (f *fakeFetcher) FetchTeams(ctx context.Context, id string) ([]models.Team, error) {
	return []models.Team{
		{ID: "t1", DraftID: id, Name: "Pallet", Position: 1, InitialBudget: 100, Budget: 100},
		{ID: "t2", DraftID: id, Name: "Cerulean", Position: 2, InitialBudget: 100, Budget: 100},
	}, nil
}

func (f *fakeFetcher) FetchPicks(ctx context.Context, id string) ([]models.Pick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Pick(nil), f.picks...), nil
}

func (f *fakeFetcher) FetchParticipants(ctx context.Context, id string) ([]models.Participant, error) {
	return nil, nil
}

func (f *fakeFetcher) FetchActiveAuction(ctx context.Context, id string) (*models.Auction, error) {
	f.mu.Lock()
	auction, gate, entered := f.auction, f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	return auction, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type harness struct {
	ctrl   *Controller
	submit *fakeSubmitter
	fetch  *fakeFetcher
	clock  *clockwork.FakeClock
	feed   chan events.ChangeEvent
	cancel context.CancelFunc
	errCh  chan error
}

func startController(t *testing.T, submit *fakeSubmitter) *harness {
	t.Helper()
	ruleset, err := rules.NewEngine(models.Format{
		ID:               "gen1",
		Kind:             models.DraftKindSequential,
		BannedItems:      []string{"mewtwo"},
		UniquenessClause: true,
		Cost: models.CostModel{
			Thresholds: []models.CostThreshold{{Min: 300, Cost: 10}},
			MinCost:    1,
		},
	})
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(epoch)
	engine := optimistic.New(draftID, ruleset, clock, optimistic.DefaultConfig())
	h := &harness{
		submit: submit,
		fetch:  &fakeFetcher{},
		clock:  clock,
		feed:   make(chan events.ChangeEvent),
		errCh:  make(chan error, 1),
	}
	cfg := Config{RPCTimeout: 5 * time.Second, RefreshOnFailure: true}
	h.ctrl = NewController(engine, submit, h.fetch, clock, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.errCh <- h.ctrl.Run(ctx, h.feed) }()

	h.eventually(t, func(v optimistic.View) bool { return len(v.Teams) == 2 })
	return h
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop")
	}
}

func (h *harness) eventually(t *testing.T, cond func(optimistic.View) bool) optimistic.View {
	t.Helper()
	var last optimistic.View
	require.Eventually(t, func() bool {
		v, err := h.ctrl.State(context.Background())
		if err != nil {
			return false
		}
		last = v
		return cond(v)
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func actionStatus(v optimistic.View, id string) optimistic.Status {
	for _, pa := range v.PendingActions {
		if pa.ID == id {
			return pa.Status
		}
	}
	return ""
}

func TestController_PickConfirmedAndReconciled(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := startController(t, &fakeSubmitter{})
	defer h.stop(t)

	ctx := context.Background()
	id, err := h.ctrl.ApplyPick(ctx, pikachu, "t1")
	require.NoError(t, err)

	h.eventually(t, func(v optimistic.View) bool { return actionStatus(v, id) == optimistic.StatusConfirmed })
	assert.Equal(t, []string{"t1:pikachu:10"}, h.submit.pickCalls())

	ev, err := events.NewChangeEvent(draftID, events.EntityPick, events.ChangeInsert, models.Pick{
		ID: "p-1", DraftID: draftID, TeamID: "t1", ItemID: "pikachu", ItemName: "Pikachu", Cost: 10, Overall: 1, Round: 1, CreatedAt: epoch,
	}, epoch)
	require.NoError(t, err)
	h.feed <- ev
	// redelivery is harmless
	h.feed <- ev

	v := h.eventually(t, func(v optimistic.View) bool { return len(v.Picks) == 1 && v.Picks[0].ID == "p-1" })
	assert.Len(t, v.Teams[0].Picks, 1)
}

func TestController_LocalValidationSkipsNetwork(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := startController(t, &fakeSubmitter{})
	defer h.stop(t)

	_, err := h.ctrl.ApplyPick(context.Background(), mewtwo, "t1")
	assert.ErrorIs(t, err, optimistic.ErrIllegalItem)

	_, err = h.ctrl.ApplyPick(context.Background(), pikachu, "t2")
	assert.ErrorIs(t, err, optimistic.ErrNotYourTurn)

	assert.Empty(t, h.submit.pickCalls())
}

func TestController_RejectedActionFailsAndRefreshes(t *testing.T) {
	defer goleak.VerifyNone(t)
	submit := &fakeSubmitter{pickFn: func(context.Context) error {
		return fmt.Errorf("%w: Pikachu has already been drafted", ErrRejected)
	}}
	h := startController(t, submit)
	defer h.stop(t)

	before := h.fetch.count()
	id, err := h.ctrl.ApplyPick(context.Background(), pikachu, "t1")
	require.NoError(t, err)

	v := h.eventually(t, func(v optimistic.View) bool { return actionStatus(v, id) == optimistic.StatusFailed })
	assert.Empty(t, v.Picks)
	assert.Contains(t, v.PendingActions[0].Reason, "already been drafted")

	require.Eventually(t, func() bool { return h.fetch.count() > before }, 2*time.Second, 5*time.Millisecond)
}

func TestController_StalledRPCFailsAndRetries(t *testing.T) {
	defer goleak.VerifyNone(t)
	release := make(chan struct{})
	var calls sync.WaitGroup
	calls.Add(1)
	first := true
	var mu sync.Mutex
	submit := &fakeSubmitter{pickFn: func(ctx context.Context) error {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			calls.Done()
			select {
			case <-release:
				return fmt.Errorf("%w: connection reset", ErrNetwork)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}}
	h := startController(t, submit)
	defer h.stop(t)

	ctx := context.Background()
	id, err := h.ctrl.ApplyPick(ctx, pikachu, "t1")
	require.NoError(t, err)
	calls.Wait()

	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(5 * time.Second)

	v := h.eventually(t, func(v optimistic.View) bool { return actionStatus(v, id) == optimistic.StatusFailed })
	assert.Contains(t, v.PendingActions[0].Reason, "timed out")
	assert.Empty(t, v.Picks)

	// the late answer from the stalled call is ignored
	close(release)

	require.NoError(t, h.ctrl.Retry(ctx, id))
	h.eventually(t, func(v optimistic.View) bool { return actionStatus(v, id) == optimistic.StatusConfirmed })
	assert.Len(t, h.submit.pickCalls(), 2)
}

func TestController_FeedClosedFallsBackToPull(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := startController(t, &fakeSubmitter{})
	defer h.stop(t)

	h.fetch.mu.Lock()
	h.fetch.picks = []models.Pick{{ID: "p-9", DraftID: draftID, TeamID: "t1", ItemID: "eevee", Cost: 1, Overall: 1, CreatedAt: epoch}}
	h.fetch.mu.Unlock()

	close(h.feed)
	h.eventually(t, func(v optimistic.View) bool { return len(v.Picks) == 1 && v.Picks[0].ID == "p-9" })
}

func liveAuction() models.Auction {
	return models.Auction{
		ID:              "a-1",
		DraftID:         draftID,
		ItemID:          pikachu.ID,
		ItemName:        pikachu.Name,
		NominatorID:     "t1",
		CurrentBid:      5,
		CurrentBidderID: "t1",
		EndsAt:          epoch.Add(time.Minute),
		Status:          models.AuctionStatusActive,
		CreatedAt:       epoch,
	}
}

func (h *harness) push(t *testing.T, change events.ChangeType, entity any) {
	t.Helper()
	ev, err := events.NewChangeEvent(draftID, events.EntityAuction, change, entity, epoch)
	require.NoError(t, err)
	select {
	case h.feed <- ev:
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not take the change event")
	}
}

func TestController_PullRetiresMissedAuction(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := startController(t, &fakeSubmitter{})
	defer h.stop(t)

	h.push(t, events.ChangeInsert, liveAuction())
	h.eventually(t, func(v optimistic.View) bool { return v.ActiveAuction != nil })

	// the close was never pushed; the pull finds nothing running
	close(h.feed)
	v := h.eventually(t, func(v optimistic.View) bool { return v.ActiveAuction == nil })
	require.Len(t, v.Auctions, 1)
	assert.Equal(t, models.AuctionStatusCancelled, v.Auctions[0].Status)
}

func TestController_StaleSnapshotDiscarded(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := startController(t, &fakeSubmitter{})
	defer h.stop(t)

	h.push(t, events.ChangeInsert, liveAuction())
	h.eventually(t, func(v optimistic.View) bool { return v.ActiveAuction != nil })

	active := liveAuction()
	gate := make(chan struct{})
	h.fetch.mu.Lock()
	h.fetch.auction = &active
	h.fetch.gate = gate
	h.fetch.entered = make(chan struct{}, 1)
	entered := h.fetch.entered
	h.fetch.mu.Unlock()

	before := h.fetch.count()
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	<-entered

	// the auction closes while the refresh is in flight
	h.fetch.mu.Lock()
	h.fetch.auction = nil
	h.fetch.gate = nil
	h.fetch.mu.Unlock()
	ended := liveAuction()
	ended.Status = models.AuctionStatusEnded
	h.push(t, events.ChangeUpdate, ended)
	h.eventually(t, func(v optimistic.View) bool { return v.ActiveAuction == nil })

	close(gate)
	require.Eventually(t, func() bool { return h.fetch.count() == before+2 }, 2*time.Second, 5*time.Millisecond)
	require.Never(t, func() bool {
		v, err := h.ctrl.State(context.Background())
		return err == nil && v.ActiveAuction != nil
	}, 200*time.Millisecond, 5*time.Millisecond)

	v, err := h.ctrl.State(context.Background())
	require.NoError(t, err)
	require.Len(t, v.Auctions, 1)
	assert.Equal(t, models.AuctionStatusEnded, v.Auctions[0].Status)
}

func TestController_StoppedRejectsCalls(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := startController(t, &fakeSubmitter{})
	h.stop(t)

	_, err := h.ctrl.ApplyPick(context.Background(), pikachu, "t1")
	assert.ErrorIs(t, err, ErrStopped)
	_, err = h.ctrl.State(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, h.ctrl.Refresh(context.Background()), ErrStopped)
}

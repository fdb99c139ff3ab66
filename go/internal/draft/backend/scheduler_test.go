package backend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mcdev12/draftcoord/go/internal/models"
)

type fakeCloser struct {
	mu     sync.Mutex
	open   []models.Auction
	errs   []error // returned by successive CloseAuction calls
	closed chan string
}

func newFakeCloser(open ...models.Auction) *fakeCloser {
	return &fakeCloser{open: open, closed: make(chan string, 16)}
}

func (f *fakeCloser) CloseAuction(ctx context.Context, auctionID string) error {
	f.mu.Lock()
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	f.mu.Unlock()
	f.closed <- auctionID
	return err
}

func (f *fakeCloser) OpenAuctions(ctx context.Context) ([]models.Auction, error) {
	return f.open, nil
}

func activeAuction(id string, endsAt time.Time) models.Auction {
	return models.Auction{ID: id, DraftID: "d1", EndsAt: endsAt, Status: models.AuctionStatusActive}
}

func runScheduler(t *testing.T, closer *fakeCloser, clock *clockwork.FakeClock) (*Scheduler, func()) {
	t.Helper()
	s := NewScheduler(closer, clock, SchedulerConfig{Workers: 2, RetryDelay: time.Second, MaxAttempts: 2})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return s, func() {
		cancel()
		assert.NoError(t, <-done)
	}
}

func waitClosed(t *testing.T, closer *fakeCloser) string {
	t.Helper()
	select {
	case id := <-closer.closed:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("auction was not closed")
		return ""
	}
}

func assertNotClosed(t *testing.T, closer *fakeCloser) {
	t.Helper()
	select {
	case id := <-closer.closed:
		t.Fatalf("unexpected close of %s", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_ClosesWhenTimerFires(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := clockwork.NewFakeClockAt(epoch)
	closer := newFakeCloser()
	s, stop := runScheduler(t, closer, clock)
	defer stop()

	s.Schedule(activeAuction("a1", epoch.Add(30*time.Second)))
	s.Schedule(activeAuction("a1", epoch.Add(30*time.Second)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(29 * time.Second)
	assertNotClosed(t, closer)

	clock.Advance(time.Second)
	assert.Equal(t, "a1", waitClosed(t, closer))
	assertNotClosed(t, closer)
}

func TestScheduler_RecoversOpenAuctions(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := clockwork.NewFakeClockAt(epoch)
	closer := newFakeCloser(activeAuction("overdue", epoch.Add(-time.Minute)))
	_, stop := runScheduler(t, closer, clock)
	defer stop()

	assert.Equal(t, "overdue", waitClosed(t, closer))
}

func TestScheduler_RetriesFailedClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := clockwork.NewFakeClockAt(epoch)
	closer := newFakeCloser()
	closer.errs = []error{errors.New("connection reset"), ErrAuctionNotDue}
	s, stop := runScheduler(t, closer, clock)
	defer stop()

	s.Schedule(activeAuction("a1", epoch))
	assert.Equal(t, "a1", waitClosed(t, closer))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	assert.Equal(t, "a1", waitClosed(t, closer), "retried after a failure")

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	assert.Equal(t, "a1", waitClosed(t, closer), "early closes do not use up attempts")
	assertNotClosed(t, closer)
}

func TestScheduler_GivesUpAfterMaxAttempts(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := clockwork.NewFakeClockAt(epoch)
	closer := newFakeCloser()
	closer.errs = []error{errors.New("boom"), errors.New("boom")}
	s, stop := runScheduler(t, closer, clock)
	defer stop()

	s.Schedule(activeAuction("a1", epoch))
	waitClosed(t, closer)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	waitClosed(t, closer)

	clock.Advance(time.Minute)
	assertNotClosed(t, closer)
}

func TestScheduler_CancelAndInactive(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := clockwork.NewFakeClockAt(epoch)
	closer := newFakeCloser()
	s, stop := runScheduler(t, closer, clock)
	defer stop()

	s.Schedule(models.Auction{ID: "ended", EndsAt: epoch, Status: models.AuctionStatusEnded})
	s.Schedule(activeAuction("a1", epoch.Add(time.Minute)))
	s.Cancel("a1")

	clock.Advance(2 * time.Minute)
	assertNotClosed(t, closer)
}

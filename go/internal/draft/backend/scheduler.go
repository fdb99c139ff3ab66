package backend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftcoord/go/internal/models"
)

// AuctionCloser is what the scheduler needs from the App.
type AuctionCloser interface {
	CloseAuction(ctx context.Context, auctionID string) error
	OpenAuctions(ctx context.Context) ([]models.Auction, error)
}

// SchedulerConfig tunes the auction close scheduler.
type SchedulerConfig struct {
	Workers     int
	RetryDelay  time.Duration // before retrying a failed or early close
	MaxAttempts int
}

// DefaultSchedulerConfig returns the production defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:     4,
		RetryDelay:  500 * time.Millisecond,
		MaxAttempts: 5,
	}
}

// Scheduler closes auctions when their timers run out. It keeps one timer
// per open auction; a worker pool performs the closes.
type Scheduler struct {
	closer     AuctionCloser
	clock      clockwork.Clock
	cfg        SchedulerConfig
	instanceID string

	workCh chan closeJob

	mu        sync.Mutex
	timers    map[string]clockwork.Timer
	scheduled map[string]time.Time // auction id -> ends at
	stopped   bool
}

type closeJob struct {
	auctionID string
	attempt   int
}

// NewScheduler creates a new Scheduler.
func NewScheduler(closer AuctionCloser, clock clockwork.Clock, cfg SchedulerConfig) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Scheduler{
		closer:     closer,
		clock:      clock,
		cfg:        cfg,
		instanceID: uuid.New().String()[:8],
		workCh:     make(chan closeJob, cfg.Workers*16),
		timers:     make(map[string]clockwork.Timer),
		scheduled:  make(map[string]time.Time),
	}
}

// Schedule arms a close timer for the auction. Scheduling the same auction
// with the same end time twice is a no-op.
func (s *Scheduler) Schedule(auction models.Auction) {
	if !auction.IsActive() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if endsAt, ok := s.scheduled[auction.ID]; ok && endsAt.Equal(auction.EndsAt) {
		log.Debug().
			Str("auction_id", auction.ID).
			Time("ends_at", auction.EndsAt).
			Msg("skipping duplicate schedule")
		return
	}
	s.scheduled[auction.ID] = auction.EndsAt
	s.armLocked(closeJob{auctionID: auction.ID, attempt: 1}, auction.EndsAt.Sub(s.clock.Now()))
}

// Cancel stops the timer for an auction, if any.
func (s *Scheduler) Cancel(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[auctionID]; ok {
		t.Stop()
		delete(s.timers, auctionID)
	}
	delete(s.scheduled, auctionID)
}

func (s *Scheduler) armLocked(job closeJob, d time.Duration) {
	if existing, ok := s.timers[job.auctionID]; ok {
		existing.Stop()
	}
	s.timers[job.auctionID] = s.clock.AfterFunc(max(d, 0), func() {
		s.fire(job)
	})
	log.Debug().
		Str("auction_id", job.auctionID).
		Dur("duration", d).
		Int("attempt", job.attempt).
		Msg("scheduled auction close")
}

func (s *Scheduler) fire(job closeJob) {
	s.mu.Lock()
	delete(s.timers, job.auctionID)
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	select {
	case s.workCh <- job:
	default:
		log.Warn().Str("auction_id", job.auctionID).Msg("timer fired but work channel full")
		s.retry(job, false)
	}
}

// retry re-arms a job after RetryDelay. counted reports whether the
// previous run consumed an attempt.
func (s *Scheduler) retry(job closeJob, counted bool) {
	if counted {
		job.attempt++
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.armLocked(job, s.cfg.RetryDelay)
}

// Run recovers timers for auctions that are already open, then closes
// auctions as their timers fire until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	open, err := s.closer.OpenAuctions(ctx)
	if err != nil {
		return err
	}
	for _, a := range open {
		s.Schedule(a)
	}
	log.Info().
		Str("instance", s.instanceID).
		Int("workers", s.cfg.Workers).
		Int("recovered", len(open)).
		Msg("auction scheduler started")

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, i)
	}

	<-ctx.Done()

	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	wg.Wait()

	log.Info().Str("instance", s.instanceID).Msg("auction scheduler stopped")
	return nil
}

func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.workCh:
			s.handle(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, job closeJob, workerID int) {
	err := s.closer.CloseAuction(ctx, job.auctionID)
	switch {
	case err == nil:
		s.mu.Lock()
		delete(s.scheduled, job.auctionID)
		s.mu.Unlock()
		log.Debug().
			Str("auction_id", job.auctionID).
			Int("worker_id", workerID).
			Msg("auction close handled")
	case errors.Is(err, ErrAuctionNotDue):
		// Clock skew between the timer and the database; try again shortly.
		s.retry(job, false)
	case ctx.Err() != nil:
		return
	case job.attempt >= s.cfg.MaxAttempts:
		log.Error().
			Err(err).
			Str("auction_id", job.auctionID).
			Int("attempt", job.attempt).
			Msg("giving up on auction close")
		s.mu.Lock()
		delete(s.scheduled, job.auctionID)
		s.mu.Unlock()
	default:
		log.Warn().
			Err(err).
			Str("auction_id", job.auctionID).
			Int("attempt", job.attempt).
			Msg("auction close failed, retrying")
		s.retry(job, true)
	}
}

package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
)

type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // channel name to LISTEN on
	FallbackInterval time.Duration // how often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int // max events to fetch per batch
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:    "draft_outbox_events",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// notifier is the part of *pq.Listener the relay loop uses.
type notifier interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Listener relays outbox rows to the bus. Notifications wake it as rows
// commit; a fallback poll catches anything a dropped connection missed.
type Listener struct {
	repo      Repository
	notes     notifier
	publisher Publisher
	clock     clockwork.Clock
	cfg       ListenerConfig

	mu        sync.Mutex
	running   bool
	published uint64
	lastSent  time.Time
}

func NewListener(repo Repository, publisher Publisher, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")
	return newListener(repo, l, publisher, clockwork.NewRealClock(), cfg), nil
}

func newListener(repo Repository, notes notifier, publisher Publisher, clock clockwork.Clock, cfg ListenerConfig) *Listener {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Listener{
		repo:      repo,
		notes:     notes,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
	}
}

// Start relays until ctx is cancelled. Anything left unsent from before
// the relay started goes out first.
func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	l.setRunning(true)
	defer l.setRunning(false)

	pingTicker := l.clock.NewTicker(l.cfg.PingInterval)
	fallbackTicker := l.clock.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	if err := l.drain(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.notes.Close()
		case note := <-l.notes.NotificationChannel():
			// A nil notification means the connection was re-established
			// and notifications may have been lost.
			extra := ""
			if note != nil {
				extra = note.Extra
			}
			if err := l.handleNotification(ctx, extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.Chan():
			if err := l.drain(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.Chan():
			if err := l.notes.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// handleNotification drains the outbox rather than publishing only the
// notified row, so events always leave in commit order.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	if extra != "" {
		if _, err := uuid.Parse(extra); err != nil {
			log.Warn().Str("extra", extra).Msg("invalid event ID in notification")
		}
	}
	return l.drain(ctx)
}

// drain publishes unsent events in order, batch by batch. It stops at the
// first event that cannot be published so later events for the same draft
// never overtake it.
func (l *Listener) drain(ctx context.Context) error {
	for {
		unsent, err := l.repo.FetchUnsent(ctx, l.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, ev := range unsent {
			if err := l.publishWithRetry(ctx, ev); err != nil {
				return fmt.Errorf("event %s: %w", ev.EventID, err)
			}
		}
		if len(unsent) < l.cfg.BatchSize {
			return nil
		}
	}
}

// publishWithRetry publishes an event with a linear backoff and marks it sent.
func (l *Listener) publishWithRetry(ctx context.Context, ev events.ChangeEvent) error {
	var lastErr error

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.clock.After(delay):
			}
		}

		if err := l.publisher.Publish(ctx, ev); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", ev.EventID).
				Msg("failed to publish, retrying")
			continue
		}

		if err := l.repo.MarkSent(ctx, ev.EventID); err != nil {
			return err
		}
		l.recordSent()

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", ev.EventID).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}

func (l *Listener) setRunning(v bool) {
	l.mu.Lock()
	l.running = v
	l.mu.Unlock()
}

func (l *Listener) recordSent() {
	l.mu.Lock()
	l.published++
	l.lastSent = l.clock.Now()
	l.mu.Unlock()
}

// Stats reports how many events were relayed and when the last one went out.
func (l *Listener) Stats() (running bool, published uint64, lastSent time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running, l.published, l.lastSent
}

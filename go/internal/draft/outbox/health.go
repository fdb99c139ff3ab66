package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	EventsPublished   uint64    `json:"events_published"`
	LastEventTime     time.Time `json:"last_event_time"`
	PendingEvents     int       `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	NATSConnected     bool      `json:"nats_connected"`
	ListenerActive    bool      `json:"listener_active"`
	Errors            []string  `json:"errors"`
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ConnStatus reports whether the bus connection is up.
type ConnStatus interface {
	IsConnected() bool
}

// HealthChecker reports on the relay and its dependencies.
type HealthChecker struct {
	listener  *Listener
	repo      Repository
	db        Pinger
	nats      ConnStatus
	clock     clockwork.Clock
	threshold time.Duration // how long pending events may wait before unhealthy
}

func NewHealthChecker(listener *Listener, repo Repository, db Pinger, nats ConnStatus, clock clockwork.Clock, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		listener:  listener,
		repo:      repo,
		db:        db,
		nats:      nats,
		clock:     clock,
		threshold: threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true, Errors: []string{}}

	status.ListenerActive, status.EventsPublished, status.LastEventTime = h.listener.Stats()
	if !status.ListenerActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "listener not active")
	}

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.nats != nil {
		status.NATSConnected = h.nats.IsConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if status.DatabaseConnected {
		pending, err := h.repo.CountUnsent(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
		}
	}

	// Pending events with nothing published for a while means the relay is stuck.
	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		if idle := h.clock.Since(status.LastEventTime); idle > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events published for %s", idle))
		}
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health status")
	}
}

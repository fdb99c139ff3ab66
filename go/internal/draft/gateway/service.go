package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/draftcoord/go/internal/draft/session"
)

// Service is the draft gateway: JetStream in, WebSocket fan-out and REST
// snapshots out.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	stateHandler      *StateHandler
}

// Config holds configuration for the draft gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for the draft gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService connects the gateway to JetStream. ctx bounds the lifetime of
// the broadcast queue and should be the same context passed to Start.
func NewService(ctx context.Context, config Config, fetcher session.Fetcher) (*Service, error) {
	connectionManager := NewConnectionManager(ctx, config.ConnectionConfig)

	eventConsumer, err := NewEventConsumer(ctx, connectionManager, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		eventConsumer:     eventConsumer,
		stateHandler:      NewStateHandler(fetcher, clockwork.NewRealClock()),
	}, nil
}

// Start runs the connection manager and the event consumer until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting draft gateway service")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.connectionManager.Start(ctx)
		return nil
	})
	g.Go(func() error {
		return s.eventConsumer.Start(ctx)
	})
	err := g.Wait()

	log.Info().Msg("draft gateway service shutting down")
	if stopErr := s.eventConsumer.Stop(); stopErr != nil {
		log.Error().Err(stopErr).Msg("failed to stop event consumer")
	}
	return err
}

// RegisterRoutes registers the WebSocket and state routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("draft gateway routes registered")
}

// Stats returns connection counts.
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}

// NATSConnected reports whether the consumer's NATS connection is up.
func (s *Service) NATSConnected() bool {
	return s.eventConsumer.IsConnected()
}

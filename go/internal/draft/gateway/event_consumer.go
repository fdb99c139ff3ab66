package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
)

// JetStreamConsumerConfig holds configuration for the JetStream consumer
type JetStreamConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string // e.g., "draft.>"
	MaxDeliver    int
	AckWait       time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultJetStreamConsumerConfig returns default JetStream consumer configuration
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "DRAFT_EVENTS",
		ConsumerName:  "draft-gateway",
		SubjectFilter: "draft.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// errMalformed marks messages that can never be delivered and are terminated.
var errMalformed = errors.New("malformed change event")

// Broadcaster fans a change event out to the clients watching its draft.
type Broadcaster interface {
	BroadcastToDraft(ev events.ChangeEvent)
}

// EventConsumer consumes change events from JetStream and hands them to the
// broadcaster in stream order.
type EventConsumer struct {
	broadcaster Broadcaster
	nc          *nats.Conn
	js          jetstream.JetStream
	consumer    jetstream.Consumer
	config      JetStreamConsumerConfig
}

// NewEventConsumer connects to NATS and creates or updates the durable consumer.
func NewEventConsumer(ctx context.Context, b Broadcaster, config JetStreamConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{
		broadcaster: b,
		nc:          nc,
		js:          js,
		config:      config,
	}
	if err := ec.ensureConsumer(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	// One message in flight at a time keeps per-draft order intact
	// across redeliveries.
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ec.config.ConsumerName,
		Durable:       ec.config.ConsumerName,
		Description:   "Draft gateway WebSocket fan-out",
		FilterSubject: ec.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		MaxAckPending: 1,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Str("filter", ec.config.SubjectFilter).
		Msg("JetStream consumer ready")
	ec.consumer = consumer
	return nil
}

// Start consumes until ctx is cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 1)
	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			if err := msg.Nak(); err != nil {
				log.Error().Err(err).Msg("failed to NAK message")
			}
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			ec.settle(msg, ec.handle(msg.Subject(), msg.Data()))
		}
	}
}

func (ec *EventConsumer) settle(msg jetstream.Msg, err error) {
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	case errors.Is(err, errMalformed):
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping malformed message")
		if termErr := msg.TermWithReason(err.Error()); termErr != nil {
			log.Error().Err(termErr).Msg("failed to TERM message")
		}
	default:
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error().Err(nakErr).Msg("failed to NAK message")
		}
	}
}

// handle decodes one message and broadcasts it. The subject must match the
// envelope so a misrouted event never reaches the wrong draft.
func (ec *EventConsumer) handle(subject string, data []byte) error {
	var ev events.ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if ev.DraftID == "" || ev.EventID == "" {
		return fmt.Errorf("%w: missing draft or event id", errMalformed)
	}
	if want := ev.Subject(); subject != want {
		return fmt.Errorf("%w: subject %s does not match %s", errMalformed, subject, want)
	}

	log.Debug().
		Str("event_id", ev.EventID).
		Str("draft_id", ev.DraftID).
		Str("entity", string(ev.Entity)).
		Str("change", string(ev.Change)).
		Msg("processing JetStream event")

	ec.broadcaster.BroadcastToDraft(ev)
	return nil
}

// Stop closes the NATS connection.
func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}

// IsConnected reports whether the NATS connection is up.
func (ec *EventConsumer) IsConnected() bool {
	return ec.nc != nil && ec.nc.IsConnected()
}

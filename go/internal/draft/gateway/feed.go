package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/smallnest/chanx"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
)

// FeedConfig controls the client side of the push channel.
type FeedConfig struct {
	Dialer *websocket.Dialer
	// ReadTimeout must exceed the gateway's ping interval.
	ReadTimeout time.Duration
}

// DefaultFeedConfig returns settings matching DefaultConnectionConfig.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		Dialer:      websocket.DefaultDialer,
		ReadTimeout: 60 * time.Second,
	}
}

// Feed is a client subscription to one draft's change events. Events are
// buffered without bound so a slow reader never makes the gateway drop the
// connection.
type Feed struct {
	conn    *websocket.Conn
	out     *chanx.UnboundedChan[events.ChangeEvent]
	cancel  context.CancelFunc
	done    chan struct{}
	draftID string
	timeout time.Duration

	mu  sync.Mutex
	err error
}

// DialFeed subscribes to draftID through the gateway at baseURL
// (ws:// or wss://).
func DialFeed(ctx context.Context, baseURL, draftID, participantID string, cfg FeedConfig) (*Feed, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	u.Path = "/ws/draft"
	q := url.Values{"draft_id": {draftID}}
	if participantID != "" {
		q.Set("participant_id", participantID)
	}
	u.RawQuery = q.Encode()

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", u.Redacted(), resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}

	bufCtx, cancel := context.WithCancel(context.Background())
	f := &Feed{
		conn:    conn,
		out:     chanx.NewUnboundedChan[events.ChangeEvent](bufCtx, 64),
		cancel:  cancel,
		done:    make(chan struct{}),
		draftID: draftID,
		timeout: cfg.ReadTimeout,
	}
	go f.readLoop()
	return f, nil
}

// Events yields change events in arrival order. It is closed when the
// connection ends; Err then reports why.
func (f *Feed) Events() <-chan events.ChangeEvent {
	return f.out.Out
}

// Err returns the error that ended the feed, or nil while it is running.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close disconnects and releases the buffer. Events not yet read are discarded.
func (f *Feed) Close() error {
	err := f.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	closeErr := f.conn.Close()
	<-f.done
	f.cancel()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return closeErr
}

func (f *Feed) readLoop() {
	defer close(f.done)
	defer close(f.out.In)

	f.extendDeadline()
	f.conn.SetPingHandler(func(data string) error {
		f.extendDeadline()
		err := f.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("draft_id", f.draftID).Msg("change feed disconnected")
			}
			return
		}
		f.extendDeadline()

		var ev events.ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			// A gap is repaired by the next pull refresh.
			log.Warn().Err(err).Str("draft_id", f.draftID).Msg("skipping malformed change event")
			continue
		}
		f.out.In <- ev
	}
}

func (f *Feed) extendDeadline() {
	if f.timeout > 0 {
		f.conn.SetReadDeadline(time.Now().Add(f.timeout))
	}
}

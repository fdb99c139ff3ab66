package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/smallnest/chanx"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
)

// ConnectionManager manages WebSocket connections grouped by draft.
type ConnectionManager struct {
	draftConnections map[string]map[*Connection]bool
	mu               sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	// broadcasts is unbounded so the consumer never drops an event while
	// a fan-out is in progress.
	broadcasts *chanx.UnboundedChan[events.ChangeEvent]
}

// Connection is one client watching one draft.
type Connection struct {
	ID            string
	ParticipantID string
	DraftID       string
	Conn          *websocket.Conn
	Send          chan []byte
	Manager       *ConnectionManager

	ConnectedAt time.Time
	closeOnce   sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// ConnectionStats summarizes the open connections.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveDrafts     int            `json:"active_drafts"`
	DraftConnections map[string]int `json:"draft_connections"`
}

// NewConnectionManager creates a connection manager. Broadcasts are queued
// until Start runs and stop being accepted once ctx is cancelled.
func NewConnectionManager(ctx context.Context, config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		draftConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:     config,
		broadcasts: chanx.NewUnboundedChan[events.ChangeEvent](ctx, 64),
	}
}

// Start delivers queued broadcasts until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager shutting down")
			return
		case ev, ok := <-cm.broadcasts.Out:
			if !ok {
				cm.closeAll()
				return
			}
			cm.handleBroadcast(ev)
		}
	}
}

// UpgradeConnection upgrades the request and starts the connection pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, participantID, draftID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		DraftID:       draftID,
		Conn:          conn,
		Send:          make(chan []byte, cm.config.SendBuffer),
		Manager:       cm,
		ConnectedAt:   time.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("participant_id", participantID).
		Str("draft_id", draftID).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.draftConnections[conn.DraftID] == nil {
		cm.draftConnections[conn.DraftID] = make(map[*Connection]bool)
	}
	cm.draftConnections[conn.DraftID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("draft_id", conn.DraftID).
		Int("total_connections", len(cm.draftConnections[conn.DraftID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.draftConnections[conn.DraftID]
	if !exists || !connections[conn] {
		return
	}
	delete(connections, conn)
	close(conn.Send)
	if len(connections) == 0 {
		delete(cm.draftConnections, conn.DraftID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("participant_id", conn.ParticipantID).
		Str("draft_id", conn.DraftID).
		Msg("connection unregistered")
}

// BroadcastToDraft queues ev for every connection watching its draft.
func (cm *ConnectionManager) BroadcastToDraft(ev events.ChangeEvent) {
	cm.broadcasts.In <- ev
}

// handleBroadcast sends one event. A client whose buffer is full has fallen
// behind; it is disconnected so it reconnects and pulls a fresh snapshot
// instead of silently missing an event.
func (cm *ConnectionManager) handleBroadcast(ev events.ChangeEvent) {
	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.draftConnections[ev.DraftID]))
	for conn := range cm.draftConnections[ev.DraftID] {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event_id", ev.EventID).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		if !cm.trySend(conn, data) {
			log.Warn().
				Str("connection_id", conn.ID).
				Str("draft_id", conn.DraftID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.close()
		}
	}

	log.Debug().
		Str("event_id", ev.EventID).
		Str("draft_id", ev.DraftID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// trySend reports false when the buffer is full. A connection that was
// unregistered concurrently counts as delivered.
func (cm *ConnectionManager) trySend(conn *Connection, data []byte) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if !cm.draftConnections[conn.DraftID][conn] {
		return true
	}
	select {
	case conn.Send <- data:
		return true
	default:
		return false
	}
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.draftConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()
	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// Stats returns counts of open connections.
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveDrafts:     len(cm.draftConnections),
		DraftConnections: make(map[string]int, len(cm.draftConnections)),
	}
	for draftID, connections := range cm.draftConnections {
		stats.TotalConnections += len(connections)
		stats.DraftConnections[draftID] = len(connections)
	}
	return stats
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.Conn.Close()
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump keeps the read deadline fresh and notices disconnects. Clients
// never send commands over the socket; intents go through the RPC service.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

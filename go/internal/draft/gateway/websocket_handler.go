package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for draft connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleDraftConnection serves GET /ws/draft?draft_id=...&participant_id=...
func (h *WebSocketHandler) HandleDraftConnection(w http.ResponseWriter, r *http.Request) {
	draftID := r.URL.Query().Get("draft_id")
	if draftID == "" {
		http.Error(w, "draft_id is required", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(draftID); err != nil {
		http.Error(w, "invalid draft_id format", http.StatusBadRequest)
		return
	}

	// Identity is not verified here; the participant id only labels logs.
	participantID := r.URL.Query().Get("participant_id")
	if participantID == "" {
		participantID = "anonymous"
	}

	if err := h.connectionManager.UpgradeConnection(w, r, participantID, draftID); err != nil {
		// The upgrader has already written an error response.
		log.Error().
			Err(err).
			Str("draft_id", draftID).
			Str("participant_id", participantID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats serves GET /ws/stats.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/draft", h.HandleDraftConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}

package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/draftcoord/go/internal/draft/session"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// DraftStateResponse is the full authoritative state of one draft, for
// clients that connect mid-draft or lost their push connection.
type DraftStateResponse struct {
	Draft         models.Draft         `json:"draft"`
	Teams         []models.Team        `json:"teams"`
	Picks         []models.Pick        `json:"picks"`
	Participants  []models.Participant `json:"participants"`
	ActiveAuction *models.Auction      `json:"active_auction,omitempty"`
	// TimeRemaining is the whole seconds left on the active auction.
	TimeRemaining *int      `json:"time_remaining_sec,omitempty"`
	ServerTime    time.Time `json:"server_time"`
}

// StateHandler serves draft snapshots from the authoritative service.
type StateHandler struct {
	fetcher session.Fetcher
	clock   clockwork.Clock
}

// NewStateHandler creates a new state handler
func NewStateHandler(fetcher session.Fetcher, clock clockwork.Clock) *StateHandler {
	return &StateHandler{
		fetcher: fetcher,
		clock:   clock,
	}
}

// HandleGetDraftState serves GET /api/drafts/{id}/state.
func (h *StateHandler) HandleGetDraftState(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")
	if _, err := uuid.Parse(draftID); err != nil {
		http.Error(w, "invalid draft id format", http.StatusBadRequest)
		return
	}

	var state DraftStateResponse
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		state.Draft, err = h.fetcher.FetchDraft(ctx, draftID)
		return err
	})
	g.Go(func() (err error) {
		state.Teams, err = h.fetcher.FetchTeams(ctx, draftID)
		return err
	})
	g.Go(func() (err error) {
		state.Picks, err = h.fetcher.FetchPicks(ctx, draftID)
		return err
	})
	g.Go(func() (err error) {
		state.Participants, err = h.fetcher.FetchParticipants(ctx, draftID)
		return err
	})
	g.Go(func() (err error) {
		state.ActiveAuction, err = h.fetcher.FetchActiveAuction(ctx, draftID)
		return err
	})
	if err := g.Wait(); err != nil {
		if connect.CodeOf(err) == connect.CodeNotFound {
			http.Error(w, "draft not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("draft_id", draftID).Msg("failed to get draft state")
		http.Error(w, "failed to get draft state", http.StatusBadGateway)
		return
	}

	state.ServerTime = h.clock.Now()
	if a := state.ActiveAuction; a != nil {
		remaining := max(int(a.EndsAt.Sub(state.ServerTime).Seconds()), 0)
		state.TimeRemaining = &remaining
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode draft state response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/drafts/{id}/state", h.HandleGetDraftState)
}

package session

import (
	"context"
	"errors"
	"time"

	"github.com/mcdev12/draftcoord/go/internal/models"
)

var (
	// ErrNetwork marks failures to reach the server or get an answer in time.
	ErrNetwork = errors.New("network error")
	// ErrRejected marks actions the server refused after its own checks.
	ErrRejected = errors.New("rejected by server")
	// ErrStopped is returned by calls made after the controller stopped.
	ErrStopped = errors.New("session controller stopped")
)

// Submitter sends intents to the authoritative server.
type Submitter interface {
	SubmitPick(ctx context.Context, draftID, teamID, itemID string, cost int) error
	SubmitBid(ctx context.Context, auctionID, teamID string, amount int) error
	SubmitNomination(ctx context.Context, draftID, teamID, itemID string, startingBid int, duration time.Duration) error
	SubmitJoin(ctx context.Context, draftID, displayName, participantID string) error
	SubmitLeave(ctx context.Context, draftID, participantID string) error
}

// Fetcher pulls authoritative state when push delivery may have gaps.
type Fetcher interface {
	FetchDraft(ctx context.Context, draftID string) (models.Draft, error)
	FetchTeams(ctx context.Context, draftID string) ([]models.Team, error)
	FetchPicks(ctx context.Context, draftID string) ([]models.Pick, error)
	FetchParticipants(ctx context.Context, draftID string) ([]models.Participant, error)
	// FetchActiveAuction returns nil when no auction is running.
	FetchActiveAuction(ctx context.Context, draftID string) (*models.Auction, error)
}

// Config controls the controller's timeouts.
type Config struct {
	// RPCTimeout is how long an action may wait for the server before it
	// is failed locally.
	RPCTimeout time.Duration
	// RefreshInterval triggers a periodic pull refresh. Zero disables it.
	RefreshInterval time.Duration
	// RefreshOnFailure pulls fresh state after any failed action.
	RefreshOnFailure bool
}

// DefaultConfig returns the standard controller settings.
func DefaultConfig() Config {
	return Config{
		RPCTimeout:       10 * time.Second,
		RefreshInterval:  time.Minute,
		RefreshOnFailure: true,
	}
}

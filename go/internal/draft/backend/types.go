package backend

import (
	"context"
	"time"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// NewTeam seats a team when a draft is created.
type NewTeam struct {
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// CreateDraftRequest describes a new draft. Team order follows the slice.
type CreateDraftRequest struct {
	FormatID        string    `json:"format_id"`
	Rounds          int       `json:"rounds"`
	BudgetPerTeam   int       `json:"budget_per_team"`
	MinBidIncrement int       `json:"min_bid_increment"`
	NominationSec   int       `json:"nomination_sec"`
	Teams           []NewTeam `json:"teams"`
}

type SubmitPickRequest struct {
	DraftID string `json:"draft_id"`
	TeamID  string `json:"team_id"`
	ItemID  string `json:"item_id"`
	Cost    int    `json:"cost"`
}

type SubmitBidRequest struct {
	AuctionID string `json:"auction_id"`
	TeamID    string `json:"team_id"`
	Amount    int    `json:"amount"`
}

type SubmitNominationRequest struct {
	DraftID     string        `json:"draft_id"`
	TeamID      string        `json:"team_id"`
	ItemID      string        `json:"item_id"`
	StartingBid int           `json:"starting_bid"`
	Duration    time.Duration `json:"duration"`
}

type SubmitJoinRequest struct {
	DraftID       string `json:"draft_id"`
	DisplayName   string `json:"display_name"`
	ParticipantID string `json:"participant_id,omitempty"`
}

type SubmitLeaveRequest struct {
	DraftID       string `json:"draft_id"`
	ParticipantID string `json:"participant_id"`
}

// Queries is the data access the App needs. The Postgres Repository
// implements it both on the pool and bound to a transaction.
type Queries interface {
	InsertDraft(ctx context.Context, d models.Draft) error
	GetDraft(ctx context.Context, id string) (models.Draft, error)
	GetDraftForUpdate(ctx context.Context, id string) (models.Draft, error)
	UpdateDraft(ctx context.Context, d models.Draft) error

	InsertTeam(ctx context.Context, t models.Team) error
	GetTeamForUpdate(ctx context.Context, id string) (models.Team, error)
	ListTeams(ctx context.Context, draftID string) ([]models.Team, error)
	UpdateTeam(ctx context.Context, t models.Team) error

	InsertPick(ctx context.Context, p models.Pick, item models.Item) error
	ListPicks(ctx context.Context, draftID string) ([]models.Pick, error)

	InsertAuction(ctx context.Context, a models.Auction) error
	GetAuction(ctx context.Context, id string) (models.Auction, error)
	GetAuctionForUpdate(ctx context.Context, id string) (models.Auction, error)
	UpdateAuction(ctx context.Context, a models.Auction) error
	GetActiveAuction(ctx context.Context, draftID string) (*models.Auction, error)
	ListActiveAuctions(ctx context.Context) ([]models.Auction, error)
	CountAuctions(ctx context.Context, draftID string) (int, error)
	InsertBid(ctx context.Context, b models.BidHistory) error

	InsertParticipant(ctx context.Context, p models.Participant) error
	GetParticipant(ctx context.Context, id string) (models.Participant, error)
	ListParticipants(ctx context.Context, draftID string) ([]models.Participant, error)
	DeleteParticipant(ctx context.Context, id string) error

	InsertOutbox(ctx context.Context, ev events.ChangeEvent) error
}

// Store is Queries plus transactions. fn's Queries are bound to one
// transaction that commits only if fn returns nil.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// ItemCatalog resolves item ids to items.
type ItemCatalog interface {
	Item(id string) (models.Item, error)
}

// AuctionTimer is told about every auction that opens.
type AuctionTimer interface {
	Schedule(auction models.Auction)
}

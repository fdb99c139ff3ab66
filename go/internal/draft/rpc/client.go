package rpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mcdev12/draftcoord/go/internal/draft/session"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// Client calls the DraftService. It satisfies session.Submitter and
// session.Fetcher.
type Client struct {
	createDraft      *connect.Client[CreateDraftRequest, CreateDraftResponse]
	startDraft       *connect.Client[DraftRequest, DraftResponse]
	pauseDraft       *connect.Client[DraftRequest, DraftResponse]
	resumeDraft      *connect.Client[DraftRequest, DraftResponse]
	submitPick       *connect.Client[SubmitPickRequest, PickResponse]
	submitBid        *connect.Client[SubmitBidRequest, BidResponse]
	submitNomination *connect.Client[SubmitNominationRequest, AuctionResponse]
	submitJoin       *connect.Client[SubmitJoinRequest, ParticipantResponse]
	submitLeave      *connect.Client[SubmitLeaveRequest, Empty]
	getDraft         *connect.Client[DraftRequest, DraftResponse]
	listTeams        *connect.Client[DraftRequest, TeamsResponse]
	listPicks        *connect.Client[DraftRequest, PicksResponse]
	listParticipants *connect.Client[DraftRequest, ParticipantsResponse]
	getActiveAuction *connect.Client[DraftRequest, AuctionResponse]
}

var (
	_ session.Submitter = (*Client)(nil)
	_ session.Fetcher   = (*Client)(nil)
)

// NewClient creates a DraftService client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		createDraft:      connect.NewClient[CreateDraftRequest, CreateDraftResponse](httpClient, baseURL+CreateDraftProcedure, opts...),
		startDraft:       connect.NewClient[DraftRequest, DraftResponse](httpClient, baseURL+StartDraftProcedure, opts...),
		pauseDraft:       connect.NewClient[DraftRequest, DraftResponse](httpClient, baseURL+PauseDraftProcedure, opts...),
		resumeDraft:      connect.NewClient[DraftRequest, DraftResponse](httpClient, baseURL+ResumeDraftProcedure, opts...),
		submitPick:       connect.NewClient[SubmitPickRequest, PickResponse](httpClient, baseURL+SubmitPickProcedure, opts...),
		submitBid:        connect.NewClient[SubmitBidRequest, BidResponse](httpClient, baseURL+SubmitBidProcedure, opts...),
		submitNomination: connect.NewClient[SubmitNominationRequest, AuctionResponse](httpClient, baseURL+SubmitNominationProcedure, opts...),
		submitJoin:       connect.NewClient[SubmitJoinRequest, ParticipantResponse](httpClient, baseURL+SubmitJoinProcedure, opts...),
		submitLeave:      connect.NewClient[SubmitLeaveRequest, Empty](httpClient, baseURL+SubmitLeaveProcedure, opts...),
		getDraft:         connect.NewClient[DraftRequest, DraftResponse](httpClient, baseURL+GetDraftProcedure, opts...),
		listTeams:        connect.NewClient[DraftRequest, TeamsResponse](httpClient, baseURL+ListTeamsProcedure, opts...),
		listPicks:        connect.NewClient[DraftRequest, PicksResponse](httpClient, baseURL+ListPicksProcedure, opts...),
		listParticipants: connect.NewClient[DraftRequest, ParticipantsResponse](httpClient, baseURL+ListParticipantsProcedure, opts...),
		getActiveAuction: connect.NewClient[DraftRequest, AuctionResponse](httpClient, baseURL+GetActiveAuctionProcedure, opts...),
	}
}

func call[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Res, error) {
	res, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, classify(err)
	}
	return res.Msg, nil
}

// classify sorts failures into refusals, which retrying will not fix,
// and transport problems, which it might.
func classify(err error) error {
	switch connect.CodeOf(err) {
	case connect.CodeInvalidArgument, connect.CodeFailedPrecondition, connect.CodeNotFound,
		connect.CodeAlreadyExists, connect.CodePermissionDenied, connect.CodeOutOfRange:
		return fmt.Errorf("%w: %w", session.ErrRejected, err)
	default:
		return fmt.Errorf("%w: %w", session.ErrNetwork, err)
	}
}

// CreateDraft creates a pending draft.
func (c *Client) CreateDraft(ctx context.Context, req CreateDraftRequest) (models.Draft, []models.Team, error) {
	res, err := call(ctx, c.createDraft, &req)
	if err != nil {
		return models.Draft{}, nil, err
	}
	return res.Draft, res.Teams, nil
}

func (c *Client) StartDraft(ctx context.Context, draftID string) (models.Draft, error) {
	res, err := call(ctx, c.startDraft, &DraftRequest{DraftID: draftID})
	if err != nil {
		return models.Draft{}, err
	}
	return res.Draft, nil
}

func (c *Client) PauseDraft(ctx context.Context, draftID string) (models.Draft, error) {
	res, err := call(ctx, c.pauseDraft, &DraftRequest{DraftID: draftID})
	if err != nil {
		return models.Draft{}, err
	}
	return res.Draft, nil
}

func (c *Client) ResumeDraft(ctx context.Context, draftID string) (models.Draft, error) {
	res, err := call(ctx, c.resumeDraft, &DraftRequest{DraftID: draftID})
	if err != nil {
		return models.Draft{}, err
	}
	return res.Draft, nil
}

func (c *Client) SubmitPick(ctx context.Context, draftID, teamID, itemID string, cost int) error {
	_, err := call(ctx, c.submitPick, &SubmitPickRequest{DraftID: draftID, TeamID: teamID, ItemID: itemID, Cost: cost})
	return err
}

func (c *Client) SubmitBid(ctx context.Context, auctionID, teamID string, amount int) error {
	_, err := call(ctx, c.submitBid, &SubmitBidRequest{AuctionID: auctionID, TeamID: teamID, Amount: amount})
	return err
}

func (c *Client) SubmitNomination(ctx context.Context, draftID, teamID, itemID string, startingBid int, duration time.Duration) error {
	_, err := call(ctx, c.submitNomination, &SubmitNominationRequest{
		DraftID:     draftID,
		TeamID:      teamID,
		ItemID:      itemID,
		StartingBid: startingBid,
		Duration:    duration,
	})
	return err
}

func (c *Client) SubmitJoin(ctx context.Context, draftID, displayName, participantID string) error {
	_, err := call(ctx, c.submitJoin, &SubmitJoinRequest{DraftID: draftID, DisplayName: displayName, ParticipantID: participantID})
	return err
}

func (c *Client) SubmitLeave(ctx context.Context, draftID, participantID string) error {
	_, err := call(ctx, c.submitLeave, &SubmitLeaveRequest{DraftID: draftID, ParticipantID: participantID})
	return err
}

func (c *Client) FetchDraft(ctx context.Context, draftID string) (models.Draft, error) {
	res, err := call(ctx, c.getDraft, &DraftRequest{DraftID: draftID})
	if err != nil {
		return models.Draft{}, err
	}
	return res.Draft, nil
}

func (c *Client) FetchTeams(ctx context.Context, draftID string) ([]models.Team, error) {
	res, err := call(ctx, c.listTeams, &DraftRequest{DraftID: draftID})
	if err != nil {
		return nil, err
	}
	return res.Teams, nil
}

func (c *Client) FetchPicks(ctx context.Context, draftID string) ([]models.Pick, error) {
	res, err := call(ctx, c.listPicks, &DraftRequest{DraftID: draftID})
	if err != nil {
		return nil, err
	}
	return res.Picks, nil
}

func (c *Client) FetchParticipants(ctx context.Context, draftID string) ([]models.Participant, error) {
	res, err := call(ctx, c.listParticipants, &DraftRequest{DraftID: draftID})
	if err != nil {
		return nil, err
	}
	return res.Participants, nil
}

func (c *Client) FetchActiveAuction(ctx context.Context, draftID string) (*models.Auction, error) {
	res, err := call(ctx, c.getActiveAuction, &DraftRequest{DraftID: draftID})
	if err != nil {
		return nil, err
	}
	return res.Auction, nil
}

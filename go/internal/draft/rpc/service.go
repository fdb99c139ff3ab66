package rpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftcoord/go/internal/draft/backend"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// DraftApp is what the service needs from the backend.
type DraftApp interface {
	CreateDraft(ctx context.Context, req backend.CreateDraftRequest) (models.Draft, []models.Team, error)
	StartDraft(ctx context.Context, draftID string) (models.Draft, error)
	PauseDraft(ctx context.Context, draftID string) (models.Draft, error)
	ResumeDraft(ctx context.Context, draftID string) (models.Draft, error)

	SubmitPick(ctx context.Context, req backend.SubmitPickRequest) (models.Pick, error)
	SubmitBid(ctx context.Context, req backend.SubmitBidRequest) (models.BidHistory, error)
	SubmitNomination(ctx context.Context, req backend.SubmitNominationRequest) (models.Auction, error)
	SubmitJoin(ctx context.Context, req backend.SubmitJoinRequest) (models.Participant, error)
	SubmitLeave(ctx context.Context, req backend.SubmitLeaveRequest) error

	GetDraft(ctx context.Context, draftID string) (models.Draft, error)
	ListTeams(ctx context.Context, draftID string) ([]models.Team, error)
	ListPicks(ctx context.Context, draftID string) ([]models.Pick, error)
	ListParticipants(ctx context.Context, draftID string) ([]models.Participant, error)
	ActiveAuction(ctx context.Context, draftID string) (*models.Auction, error)
}

// Service implements the DraftService RPCs.
type Service struct {
	app DraftApp
}

// NewService creates a new Service.
func NewService(app DraftApp) *Service {
	return &Service{app: app}
}

// NewHandler mounts every DraftService procedure and returns the path
// prefix to register it under.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateDraftProcedure, unary(CreateDraftProcedure, svc.CreateDraft, opts))
	mux.Handle(StartDraftProcedure, unary(StartDraftProcedure, svc.StartDraft, opts))
	mux.Handle(PauseDraftProcedure, unary(PauseDraftProcedure, svc.PauseDraft, opts))
	mux.Handle(ResumeDraftProcedure, unary(ResumeDraftProcedure, svc.ResumeDraft, opts))
	mux.Handle(SubmitPickProcedure, unary(SubmitPickProcedure, svc.SubmitPick, opts))
	mux.Handle(SubmitBidProcedure, unary(SubmitBidProcedure, svc.SubmitBid, opts))
	mux.Handle(SubmitNominationProcedure, unary(SubmitNominationProcedure, svc.SubmitNomination, opts))
	mux.Handle(SubmitJoinProcedure, unary(SubmitJoinProcedure, svc.SubmitJoin, opts))
	mux.Handle(SubmitLeaveProcedure, unary(SubmitLeaveProcedure, svc.SubmitLeave, opts))
	mux.Handle(GetDraftProcedure, unary(GetDraftProcedure, svc.GetDraft, opts))
	mux.Handle(ListTeamsProcedure, unary(ListTeamsProcedure, svc.ListTeams, opts))
	mux.Handle(ListPicksProcedure, unary(ListPicksProcedure, svc.ListPicks, opts))
	mux.Handle(ListParticipantsProcedure, unary(ListParticipantsProcedure, svc.ListParticipants, opts))
	mux.Handle(GetActiveAuctionProcedure, unary(GetActiveAuctionProcedure, svc.GetActiveAuction, opts))
	return "/" + ServiceName + "/", mux
}

func unary[Req, Res any](procedure string, fn func(context.Context, *Req) (*Res, error), opts []connect.HandlerOption) *connect.Handler {
	return connect.NewUnaryHandler(procedure, func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
		res, err := fn(ctx, req.Msg)
		if err != nil {
			return nil, toConnectError(procedure, err)
		}
		return connect.NewResponse(res), nil
	}, opts...)
}

// toConnectError maps backend errors to Connect codes. Invalid argument,
// failed precondition and not found tell the client its action was refused.
func toConnectError(procedure string, err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return connectErr
	case errors.Is(err, backend.ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, backend.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, backend.ErrPrecondition), errors.Is(err, backend.ErrAuctionNotDue):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	log.Error().Err(err).Str("procedure", procedure).Msg("rpc failed")
	return connect.NewError(connect.CodeInternal, err)
}

func requireDraftID(id string) error {
	if id == "" {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("draft_id is required"))
	}
	return nil
}

func (s *Service) CreateDraft(ctx context.Context, req *CreateDraftRequest) (*CreateDraftResponse, error) {
	d, teams, err := s.app.CreateDraft(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &CreateDraftResponse{Draft: d, Teams: teams}, nil
}

func (s *Service) StartDraft(ctx context.Context, req *DraftRequest) (*DraftResponse, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	d, err := s.app.StartDraft(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	return &DraftResponse{Draft: d}, nil
}

func (s *Service) PauseDraft(ctx context.Context, req *DraftRequest) (*DraftResponse, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	d, err := s.app.PauseDraft(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	return &DraftResponse{Draft: d}, nil
}

func (s *Service) ResumeDraft(ctx context.Context, req *DraftRequest) (*DraftResponse, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	d, err := s.app.ResumeDraft(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	return &DraftResponse{Draft: d}, nil
}

func (s *Service) SubmitPick(ctx context.Context, req *SubmitPickRequest) (*PickResponse, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	if req.TeamID == "" || req.ItemID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("team_id and item_id are required"))
	}
	pick, err := s.app.SubmitPick(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &PickResponse{Pick: pick}, nil
}

func (s *Service) SubmitBid(ctx context.Context, req *SubmitBidRequest) (*BidResponse, error) {
	if req.AuctionID == "" || req.TeamID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("auction_id and team_id are required"))
	}
	bid, err := s.app.SubmitBid(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &BidResponse{Bid: bid}, nil
}

func (s *Service) SubmitNomination(ctx context.Context, req *SubmitNominationRequest) (*AuctionResponse, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	auction, err := s.app.SubmitNomination(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &AuctionResponse{Auction: &auction}, nil
}

func (s *Service) SubmitJoin(ctx context.Context, req *SubmitJoinRequest) (*ParticipantResponse, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	p, err := s.app.SubmitJoin(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &ParticipantResponse{Participant: p}, nil
}

func (s *Service) SubmitLeave(ctx context.Context, req *SubmitLeaveRequest) (*Empty, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	if err := s.app.SubmitLeave(ctx, *req); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *Service) GetDraft(ctx context.Context, req *DraftRequest) (*DraftResponse, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	d, err := s.app.GetDraft(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	return &DraftResponse{Draft: d}, nil
}

func (s *Service) ListTeams(ctx context.Context, req *DraftRequest) (*TeamsResponse, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	teams, err := s.app.ListTeams(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	return &TeamsResponse{Teams: teams}, nil
}

func (s *Service) ListPicks(ctx context.Context, req *DraftRequest) (*PicksResponse, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	picks, err := s.app.ListPicks(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	return &PicksResponse{Picks: picks}, nil
}

func (s *Service) ListParticipants(ctx context.Context, req *DraftRequest) (*ParticipantsResponse, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	ps, err := s.app.ListParticipants(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	return &ParticipantsResponse{Participants: ps}, nil
}

func (s *Service) GetActiveAuction(ctx context.Context, req *DraftRequest) (*AuctionResponse, error) {
	if err := requireDraftID(req.DraftID); err != nil {
		return nil, err
	}
	auction, err := s.app.ActiveAuction(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	return &AuctionResponse{Auction: auction}, nil
}

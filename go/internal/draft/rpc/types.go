package rpc

import (
	"github.com/mcdev12/draftcoord/go/internal/draft/backend"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// ServiceName is the fully-qualified name of the draft service.
const ServiceName = "draftcoord.v1.DraftService"

// Procedure paths, one per RPC.
const (
	CreateDraftProcedure      = "/" + ServiceName + "/CreateDraft"
	StartDraftProcedure       = "/" + ServiceName + "/StartDraft"
	PauseDraftProcedure       = "/" + ServiceName + "/PauseDraft"
	ResumeDraftProcedure      = "/" + ServiceName + "/ResumeDraft"
	SubmitPickProcedure       = "/" + ServiceName + "/SubmitPick"
	SubmitBidProcedure        = "/" + ServiceName + "/SubmitBid"
	SubmitNominationProcedure = "/" + ServiceName + "/SubmitNomination"
	SubmitJoinProcedure       = "/" + ServiceName + "/SubmitJoin"
	SubmitLeaveProcedure      = "/" + ServiceName + "/SubmitLeave"
	GetDraftProcedure         = "/" + ServiceName + "/GetDraft"
	ListTeamsProcedure        = "/" + ServiceName + "/ListTeams"
	ListPicksProcedure        = "/" + ServiceName + "/ListPicks"
	ListParticipantsProcedure = "/" + ServiceName + "/ListParticipants"
	GetActiveAuctionProcedure = "/" + ServiceName + "/GetActiveAuction"
)

// Request messages for the mutations are the backend's own request types.
type (
	CreateDraftRequest      = backend.CreateDraftRequest
	SubmitPickRequest       = backend.SubmitPickRequest
	SubmitBidRequest        = backend.SubmitBidRequest
	SubmitNominationRequest = backend.SubmitNominationRequest
	SubmitJoinRequest       = backend.SubmitJoinRequest
	SubmitLeaveRequest      = backend.SubmitLeaveRequest
)

// DraftRequest addresses a single draft.
type DraftRequest struct {
	DraftID string `json:"draft_id"`
}

type CreateDraftResponse struct {
	Draft models.Draft  `json:"draft"`
	Teams []models.Team `json:"teams"`
}

type DraftResponse struct {
	Draft models.Draft `json:"draft"`
}

type TeamsResponse struct {
	Teams []models.Team `json:"teams"`
}

type PickResponse struct {
	Pick models.Pick `json:"pick"`
}

type PicksResponse struct {
	Picks []models.Pick `json:"picks"`
}

type BidResponse struct {
	Bid models.BidHistory `json:"bid"`
}

type AuctionResponse struct {
	// Auction is nil when no auction is running.
	Auction *models.Auction `json:"auction"`
}

type ParticipantResponse struct {
	Participant models.Participant `json:"participant"`
}

type ParticipantsResponse struct {
	Participants []models.Participant `json:"participants"`
}

type Empty struct{}

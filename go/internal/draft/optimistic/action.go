package optimistic

import (
	"time"

	"github.com/mcdev12/draftcoord/go/internal/models"
)

// Kind names an action variant.
type Kind string

const (
	KindPick     Kind = "pick"
	KindBid      Kind = "bid"
	KindNominate Kind = "nominate"
	KindJoin     Kind = "join"
	KindLeave    Kind = "leave"
)

// Action is the payload of a pending action. The set of implementations is
// closed: PickAction, BidAction, NominateAction, JoinAction, LeaveAction.
type Action interface {
	Kind() Kind
	isAction()
}

// PickAction drafts an item directly in a sequential draft.
type PickAction struct {
	Item   models.Item
	TeamID string
	Cost   int
}

// BidAction raises the bid on an active auction.
type BidAction struct {
	AuctionID string
	TeamID    string
	Amount    int
}

// NominateAction opens an auction for an item.
type NominateAction struct {
	Item        models.Item
	TeamID      string
	StartingBid int
	Duration    time.Duration
}

// JoinAction seats a participant. ParticipantID is empty when the server
// assigns it.
type JoinAction struct {
	ParticipantID string
	DisplayName   string
}

// LeaveAction removes a participant.
type LeaveAction struct {
	ParticipantID string
}

func (PickAction) Kind() Kind     { return KindPick }
func (BidAction) Kind() Kind      { return KindBid }
func (NominateAction) Kind() Kind { return KindNominate }
func (JoinAction) Kind() Kind     { return KindJoin }
func (LeaveAction) Kind() Kind    { return KindLeave }

func (PickAction) isAction()     {}
func (BidAction) isAction()      {}
func (NominateAction) isAction() {}
func (JoinAction) isAction()     {}
func (LeaveAction) isAction()    {}

// Status is the lifecycle state of a pending action.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// PendingAction tracks one local intent until the server settles it.
type PendingAction struct {
	ID        string
	Action    Action
	Status    Status
	Retries   int
	Reason    string // set when failed
	Conflict  bool   // failed because authoritative state won
	TempID    string // id of the projected entity
	CreatedAt time.Time
	SettledAt time.Time

	// matched is set once a confirmed entity has replaced the projection.
	matched bool
}

// Kind returns the variant of the action payload.
func (p PendingAction) Kind() Kind {
	return p.Action.Kind()
}

// Terminal reports whether the action has been settled.
func (p PendingAction) Terminal() bool {
	return p.Status == StatusConfirmed || p.Status == StatusFailed
}

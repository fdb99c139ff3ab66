package models

import (
	"slices"
	"time"
)

// DraftKind defines how turns are taken in a draft.
type DraftKind string

const (
	DraftKindSequential      DraftKind = "sequential"
	DraftKindSimultaneousBid DraftKind = "simultaneous-bid"
)

// DraftStatus defines the lifecycle status of a draft.
type DraftStatus string

const (
	DraftStatusPending   DraftStatus = "pending"
	DraftStatusActive    DraftStatus = "active"
	DraftStatusPaused    DraftStatus = "paused"
	DraftStatusCompleted DraftStatus = "completed"
)

var draftTransitions = map[DraftStatus][]DraftStatus{
	DraftStatusPending: {DraftStatusActive},
	DraftStatusActive:  {DraftStatusPaused, DraftStatusCompleted},
	DraftStatusPaused:  {DraftStatusActive},
}

// CanTransition reports whether a draft may move from s to next.
func (s DraftStatus) CanTransition(next DraftStatus) bool {
	for _, allowed := range draftTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Draft is the root aggregate of a selection event.
type Draft struct {
	ID              string      `json:"id"`
	FormatID        string      `json:"format_id"`
	Kind            DraftKind   `json:"kind"`
	Status          DraftStatus `json:"status"`
	TeamIDs         []string    `json:"team_ids"`
	Rounds          int         `json:"rounds"`
	CurrentTurn     int         `json:"current_turn"` // 1-based
	CurrentRound    int         `json:"current_round"`
	BudgetPerTeam   int         `json:"budget_per_team"`
	MinBidIncrement int         `json:"min_bid_increment,omitempty"` // simultaneous-bid
	NominationSec   int         `json:"nomination_sec,omitempty"`    // simultaneous-bid
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// IsSequential reports whether teams pick in a fixed order.
func (d Draft) IsSequential() bool {
	return d.Kind == DraftKindSequential
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	d.TeamIDs = slices.Clone(d.TeamIDs)
	return d
}

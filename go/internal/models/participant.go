package models

import (
	"time"
)

// Participant is a user seated in a draft.
type Participant struct {
	ID          string    `json:"id"`
	DraftID     string    `json:"draft_id"`
	DisplayName string    `json:"display_name"`
	TeamID      string    `json:"team_id,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

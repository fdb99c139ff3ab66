package models

import (
	"slices"
	"time"
)

// Team is a draft participant's roster and purse.
type Team struct {
	ID            string    `json:"id"`
	DraftID       string    `json:"draft_id"`
	Name          string    `json:"name"`
	OwnerID       string    `json:"owner_id"`
	Position      int       `json:"position"` // 1-based draft order slot
	InitialBudget int       `json:"initial_budget"`
	Budget        int       `json:"budget"` // remaining
	PickIDs       []string  `json:"pick_ids"`
	CreatedAt     time.Time `json:"created_at"`
}

// Clone returns a deep copy of the team.
func (t Team) Clone() Team {
	t.PickIDs = slices.Clone(t.PickIDs)
	return t
}

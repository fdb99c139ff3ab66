package models

import (
	"strings"
	"time"
)

// TempIDPrefix marks ids minted locally before the server has assigned one.
const TempIDPrefix = "tmp-"

// IsTempID reports whether id was minted locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Pick is a budget-charged acquisition of an item by a team.
type Pick struct {
	ID        string    `json:"id"`
	DraftID   string    `json:"draft_id"`
	TeamID    string    `json:"team_id"`
	ItemID    string    `json:"item_id"`
	ItemName  string    `json:"item_name"`
	Cost      int       `json:"cost"`
	Overall   int       `json:"overall"` // pick number overall
	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import (
	"time"
)

// AuctionStatus defines the status of an auction.
type AuctionStatus string

const (
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// Auction is a time-boxed bidding contest for one item.
type Auction struct {
	ID              string        `json:"id"`
	DraftID         string        `json:"draft_id"`
	ItemID          string        `json:"item_id"`
	ItemName        string        `json:"item_name"`
	NominatorID     string        `json:"nominator_id"`
	CurrentBid      int           `json:"current_bid"`
	CurrentBidderID string        `json:"current_bidder_id"`
	EndsAt          time.Time     `json:"ends_at"`
	Status          AuctionStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

// IsActive reports whether bids are still accepted.
func (a Auction) IsActive() bool {
	return a.Status == AuctionStatusActive
}

// BidHistory is an append-only record of one accepted bid.
type BidHistory struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	TeamID    string    `json:"team_id"`
	Amount    int       `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

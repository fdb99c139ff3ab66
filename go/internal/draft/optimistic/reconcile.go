package optimistic

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// Snapshot is authoritative state fetched from the server. Nil fields are
// left untouched. Participants, when non-nil, is the complete membership.
type Snapshot struct {
	Draft        *models.Draft
	Teams        []models.Team
	Picks        []models.Pick
	Participants []models.Participant
	Auctions     []models.Auction
	Bids         []models.BidHistory
	// AuctionsComplete marks Auctions as every auction still running.
	// Auctions the engine holds as active but missing from the list are
	// retired.
	AuctionsComplete bool
}

// Reconcile merges a snapshot. Applying the same snapshot twice leaves the
// state and revision unchanged. The snapshot must not predate changes
// already merged through ReconcileChange.
func (e *Engine) Reconcile(s Snapshot) {
	e.sweep()
	if s.Draft != nil {
		e.upsertDraft(*s.Draft)
	}
	for _, t := range s.Teams {
		e.upsertTeam(t)
	}
	if s.Participants != nil {
		present := make(map[string]struct{}, len(s.Participants))
		for _, p := range s.Participants {
			present[p.ID] = struct{}{}
			e.upsertParticipant(p)
		}
		for id := range e.participants {
			if _, ok := present[id]; !ok {
				e.deleteParticipant(id)
			}
		}
	}
	for _, b := range s.Bids {
		e.upsertBid(b)
	}
	for _, a := range s.Auctions {
		e.upsertAuction(a)
	}
	if s.AuctionsComplete {
		e.retireAuctions(s.Auctions, s.Picks)
	}
	for _, p := range s.Picks {
		e.upsertPick(p)
	}
}

// retireAuctions closes every locally active auction the server no longer
// reports as running. One whose item shows up in picks ended with a winner;
// the rest were cancelled.
func (e *Engine) retireAuctions(running []models.Auction, picks []models.Pick) {
	live := make(map[string]struct{}, len(running))
	for _, a := range running {
		if a.IsActive() {
			live[a.ID] = struct{}{}
		}
	}
	var stale []models.Auction
	for _, a := range e.auctions {
		if _, ok := live[a.ID]; a.IsActive() && !ok {
			stale = append(stale, a)
		}
	}
	for _, a := range stale {
		a.Status = models.AuctionStatusCancelled
		for _, p := range picks {
			if p.ItemID == a.ItemID {
				a.Status = models.AuctionStatusEnded
				break
			}
		}
		e.upsertAuction(a)
	}
}

// ReconcileChange merges one pushed change.
func (e *Engine) ReconcileChange(c events.Change) error {
	e.sweep()
	del := c.Type == events.ChangeDelete
	switch {
	case c.Draft != nil:
		if !del {
			e.upsertDraft(*c.Draft)
		}
	case c.Team != nil:
		if del {
			e.deleteTeam(c.Team.ID)
		} else {
			e.upsertTeam(*c.Team)
		}
	case c.Pick != nil:
		if del {
			e.deletePick(c.Pick.ID)
		} else {
			e.upsertPick(*c.Pick)
		}
	case c.Participant != nil:
		if del {
			e.deleteParticipant(c.Participant.ID)
		} else {
			e.upsertParticipant(*c.Participant)
		}
	case c.Auction != nil:
		if del {
			e.deleteAuction(c.Auction.ID)
		} else {
			e.upsertAuction(*c.Auction)
		}
	case c.Bid != nil:
		if !del {
			e.upsertBid(*c.Bid)
		}
	default:
		return fmt.Errorf("change for %s carries no entity", c.Entity)
	}
	return nil
}

func (e *Engine) upsertDraft(d models.Draft) {
	if d.ID != e.draftID {
		return
	}
	if e.draft != nil && sameEntity(*e.draft, d) {
		return
	}
	d = d.Clone()
	e.draft = &d
	e.bump()
}

func (e *Engine) upsertTeam(t models.Team) {
	if cur, ok := e.teams[t.ID]; ok && sameEntity(cur, t) {
		return
	}
	e.teams[t.ID] = t.Clone()
	e.bump()
}

func (e *Engine) deleteTeam(id string) {
	if _, ok := e.teams[id]; ok {
		delete(e.teams, id)
		e.bump()
	}
}

func (e *Engine) upsertPick(p models.Pick) {
	cur, known := e.picks[p.ID]
	if !known || !sameEntity(cur, p) {
		e.picks[p.ID] = p
		e.bump()
	}

	// a server pick settles at most one action, the oldest unmatched one,
	// and only the first time it is seen
	settled := known
	for _, id := range e.actionOrder {
		pa := e.actions[id]
		a, ok := pa.Action.(PickAction)
		if !ok || a.Item.ID != p.ItemID {
			continue
		}
		switch {
		case a.TeamID == p.TeamID:
			if !settled && !pa.matched {
				e.match(pa)
				settled = true
			}
		case e.rules.Format().UniquenessClause && pa.Status == StatusPending:
			e.conflict(pa, fmt.Sprintf("%s is no longer available", itemName(a.Item)))
		}
	}
}

func (e *Engine) deletePick(id string) {
	if _, ok := e.picks[id]; ok {
		delete(e.picks, id)
		e.bump()
	}
}

func (e *Engine) upsertBid(b models.BidHistory) {
	known := false
	for _, cur := range e.bids {
		if cur.ID == b.ID {
			known = true
			break
		}
	}
	if !known {
		e.bids = append(e.bids, b)
		e.bump()
	}

	for _, id := range e.actionOrder {
		pa := e.actions[id]
		if a, ok := pa.Action.(BidAction); ok && a.AuctionID == b.AuctionID && a.TeamID == b.TeamID && a.Amount == b.Amount {
			e.match(pa)
		}
	}
}

func (e *Engine) upsertAuction(a models.Auction) {
	if cur, ok := e.auctions[a.ID]; !ok || !sameEntity(cur, a) {
		e.auctions[a.ID] = a
		e.bump()
	}

	for _, id := range e.actionOrder {
		pa := e.actions[id]
		switch act := pa.Action.(type) {
		case NominateAction:
			switch {
			case act.Item.ID == a.ItemID && act.TeamID == a.NominatorID:
				e.match(pa)
			case a.IsActive() && pa.Status == StatusPending:
				e.conflict(pa, fmt.Sprintf("%s was nominated first", a.ItemName))
			}
		case BidAction:
			if act.AuctionID != a.ID || pa.Status != StatusPending {
				continue
			}
			switch {
			case !a.IsActive():
				e.conflict(pa, fmt.Sprintf("bidding on %s has closed", a.ItemName))
			case a.CurrentBid >= act.Amount && a.CurrentBidderID != act.TeamID:
				e.conflict(pa, fmt.Sprintf("outbid on %s at %d", a.ItemName, a.CurrentBid))
			}
		}
	}
}

func (e *Engine) deleteAuction(id string) {
	if _, ok := e.auctions[id]; ok {
		delete(e.auctions, id)
		e.bump()
	}
}

func (e *Engine) upsertParticipant(p models.Participant) {
	if cur, ok := e.participants[p.ID]; !ok || !sameEntity(cur, p) {
		e.participants[p.ID] = p
		e.bump()
	}

	for _, id := range e.actionOrder {
		pa := e.actions[id]
		a, ok := pa.Action.(JoinAction)
		if !ok {
			continue
		}
		if a.ParticipantID == p.ID || (a.ParticipantID == "" && strings.EqualFold(strings.TrimSpace(a.DisplayName), p.DisplayName)) {
			e.match(pa)
		}
	}
}

func (e *Engine) deleteParticipant(id string) {
	if _, ok := e.participants[id]; ok {
		delete(e.participants, id)
		e.bump()
	}
	for _, actionID := range e.actionOrder {
		pa := e.actions[actionID]
		if a, ok := pa.Action.(LeaveAction); ok && a.ParticipantID == id {
			e.match(pa)
		}
	}
}

// sameEntity compares server records the way they survive a JSON round
// trip: empty and nil slices are equal and times compare by instant.
func sameEntity[T any](a, b T) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// match settles pa as confirmed now that the server state reflects it and
// drops its projection. A failed action whose effect shows up anyway is
// confirmed too; the server is authoritative.
func (e *Engine) match(pa *PendingAction) {
	if pa.matched {
		return
	}
	e.rollback(pa)
	pa.matched = true
	if pa.Status != StatusConfirmed {
		pa.Status = StatusConfirmed
		pa.Reason = ""
		pa.Conflict = false
		pa.SettledAt = e.clock.Now()
	}
	e.bump()
}

func (e *Engine) conflict(pa *PendingAction, reason string) {
	e.settleFailed(pa, reason, true)
}

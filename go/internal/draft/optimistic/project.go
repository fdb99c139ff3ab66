package optimistic

import (
	"strings"

	"github.com/mcdev12/draftcoord/go/internal/draft/order"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// project validates pa against current local state and, if accepted,
// applies its speculative effect.
func (e *Engine) project(pa *PendingAction) error {
	switch a := pa.Action.(type) {
	case PickAction:
		return e.projectPick(pa, a)
	case BidAction:
		return e.projectBid(pa, a)
	case NominateAction:
		return e.projectNomination(pa, a)
	case JoinAction:
		return e.projectJoin(pa, a)
	case LeaveAction:
		return e.projectLeave(pa, a)
	}
	return reject(ErrInvalidInput, "unsupported action %T", pa.Action)
}

// rollback removes the speculative effect of pa. Bids only lose their
// history entry; the auction is corrected by the next snapshot.
func (e *Engine) rollback(pa *PendingAction) {
	switch a := pa.Action.(type) {
	case PickAction:
		delete(e.tempPicks, pa.ID)
	case BidAction:
		delete(e.tempBids, pa.ID)
	case NominateAction:
		delete(e.tempAuctions, pa.ID)
	case JoinAction:
		delete(e.tempParticipants, pa.ID)
	case LeaveAction:
		if e.leaving[a.ParticipantID] == pa.ID {
			delete(e.leaving, a.ParticipantID)
		}
	}
}

func (e *Engine) projectPick(pa *PendingAction, a PickAction) error {
	team, err := e.team(a.TeamID)
	if err != nil {
		return err
	}
	if e.draft != nil {
		if !e.draft.IsSequential() {
			return reject(ErrWrongDraftKind, "items are acquired by winning auctions in this draft")
		}
		if err := e.requireActive(); err != nil {
			return err
		}
	}
	if err := e.checkItem(a.Item, team.ID); err != nil {
		return err
	}
	if budget := e.speculativeBudget(team.ID); a.Cost > budget {
		return reject(ErrInsufficientBudget, "%s costs %d but %s only has %d left", itemName(a.Item), a.Cost, team.Name, budget)
	}
	if e.draft != nil {
		if err := e.checkTurn(team); err != nil {
			return err
		}
	}

	e.tempPicks[pa.ID] = models.Pick{
		ID:        pa.TempID,
		DraftID:   e.draftID,
		TeamID:    team.ID,
		ItemID:    a.Item.ID,
		ItemName:  a.Item.Name,
		Cost:      a.Cost,
		CreatedAt: e.clock.Now(),
	}
	return nil
}

func (e *Engine) projectBid(pa *PendingAction, a BidAction) error {
	team, err := e.team(a.TeamID)
	if err != nil {
		return err
	}
	if err := e.requireActive(); err != nil {
		return err
	}
	auction, ok := e.auctions[a.AuctionID]
	if !ok {
		return reject(ErrUnknownEntity, "auction %s is not known yet", a.AuctionID)
	}
	if !auction.IsActive() {
		return reject(ErrAuctionClosed, "bidding on %s has closed", auction.ItemName)
	}
	if a.Amount <= auction.CurrentBid {
		return reject(ErrBidTooLow, "bid of %d must exceed the current bid of %d", a.Amount, auction.CurrentBid)
	}
	if inc := e.minIncrement(); a.Amount < auction.CurrentBid+inc {
		return reject(ErrBidTooLow, "bid of %d must be at least %d", a.Amount, auction.CurrentBid+inc)
	}
	if e.rosterFull(team.ID) {
		return reject(ErrRosterFull, "%s has no roster spots left", team.Name)
	}
	if budget := e.speculativeBudget(team.ID); a.Amount > budget {
		return reject(ErrInsufficientBudget, "bid of %d exceeds %s's remaining budget of %d", a.Amount, team.Name, budget)
	}

	now := e.clock.Now()
	auction.CurrentBid = a.Amount
	auction.CurrentBidderID = team.ID
	e.auctions[auction.ID] = auction
	e.tempBids[pa.ID] = models.BidHistory{
		ID:        pa.TempID,
		AuctionID: auction.ID,
		TeamID:    team.ID,
		Amount:    a.Amount,
		CreatedAt: now,
	}
	return nil
}

func (e *Engine) projectNomination(pa *PendingAction, a NominateAction) error {
	team, err := e.team(a.TeamID)
	if err != nil {
		return err
	}
	if e.draft != nil && e.draft.IsSequential() {
		return reject(ErrWrongDraftKind, "nominations are only used in auction drafts")
	}
	if err := e.requireActive(); err != nil {
		return err
	}
	if active, ok := e.activeAuction(); ok {
		return reject(ErrAuctionActive, "%s is already up for auction", active.ItemName)
	}
	if a.StartingBid <= 0 {
		return reject(ErrBidTooLow, "starting bid must be positive")
	}
	if err := e.checkItem(a.Item, team.ID); err != nil {
		return err
	}
	if budget := e.speculativeBudget(team.ID); a.StartingBid > budget {
		return reject(ErrInsufficientBudget, "starting bid of %d exceeds %s's remaining budget of %d", a.StartingBid, team.Name, budget)
	}

	now := e.clock.Now()
	e.tempAuctions[pa.ID] = models.Auction{
		ID:              pa.TempID,
		DraftID:         e.draftID,
		ItemID:          a.Item.ID,
		ItemName:        a.Item.Name,
		NominatorID:     team.ID,
		CurrentBid:      a.StartingBid,
		CurrentBidderID: team.ID,
		EndsAt:          now.Add(a.Duration),
		Status:          models.AuctionStatusActive,
		CreatedAt:       now,
	}
	return nil
}

func (e *Engine) projectJoin(pa *PendingAction, a JoinAction) error {
	name := strings.TrimSpace(a.DisplayName)
	if name == "" {
		return reject(ErrInvalidInput, "display name is required")
	}
	if a.ParticipantID != "" {
		if _, ok := e.participants[a.ParticipantID]; ok {
			return reject(ErrAlreadyJoined, "%s has already joined", name)
		}
	}
	for actionID, p := range e.tempParticipants {
		if actionID != pa.ID && strings.EqualFold(p.DisplayName, name) {
			return reject(ErrAlreadyJoined, "%s is already joining", name)
		}
	}

	id := a.ParticipantID
	if id == "" {
		id = pa.TempID
	}
	e.tempParticipants[pa.ID] = models.Participant{
		ID:          id,
		DraftID:     e.draftID,
		DisplayName: name,
		JoinedAt:    e.clock.Now(),
	}
	return nil
}

func (e *Engine) projectLeave(pa *PendingAction, a LeaveAction) error {
	p, ok := e.participants[a.ParticipantID]
	if !ok {
		return reject(ErrUnknownEntity, "participant %s is not in this draft", a.ParticipantID)
	}
	if _, ok := e.leaving[p.ID]; ok {
		return reject(ErrInvalidInput, "%s is already leaving", p.DisplayName)
	}
	e.leaving[p.ID] = pa.ID
	return nil
}

func (e *Engine) team(id string) (models.Team, error) {
	t, ok := e.teams[id]
	if !ok {
		return models.Team{}, reject(ErrUnknownEntity, "team %s is not in this draft", id)
	}
	return t, nil
}

func (e *Engine) requireActive() error {
	if e.draft != nil && e.draft.Status != models.DraftStatusActive {
		return reject(ErrDraftNotActive, "draft is %s", e.draft.Status)
	}
	return nil
}

// checkItem applies the format rules plus roster and uniqueness limits.
func (e *Engine) checkItem(item models.Item, teamID string) error {
	if v := e.rules.Validate(item); !v.Legal {
		return reject(ErrIllegalItem, "%s", v.Reason)
	}
	if e.rules.Format().UniquenessClause && e.itemTaken(item.ID) {
		return reject(ErrDuplicateItem, "%s has already been drafted", itemName(item))
	}
	if e.rosterFull(teamID) {
		return reject(ErrRosterFull, "roster is full")
	}
	return nil
}

func (e *Engine) checkTurn(team models.Team) error {
	d := e.draft
	turn := max(d.CurrentTurn, len(e.picks)+1) + len(e.tempPicks)
	onClock, ok := order.TeamForTurn(d.TeamIDs, d.Rounds, turn)
	if !ok {
		return reject(ErrDraftNotActive, "every pick in the draft has been made")
	}
	if onClock != team.ID {
		return reject(ErrNotYourTurn, "it is not %s's turn", team.Name)
	}
	return nil
}

func (e *Engine) itemTaken(itemID string) bool {
	for _, p := range e.picks {
		if p.ItemID == itemID {
			return true
		}
	}
	for _, p := range e.tempPicks {
		if p.ItemID == itemID {
			return true
		}
	}
	return false
}

func (e *Engine) rosterFull(teamID string) bool {
	limit := e.rules.Format().MaxItemsPerTeam
	return limit > 0 && e.itemCount(teamID) >= limit
}

func (e *Engine) itemCount(teamID string) int {
	n := 0
	for _, p := range e.picks {
		if p.TeamID == teamID {
			n++
		}
	}
	for _, p := range e.tempPicks {
		if p.TeamID == teamID {
			n++
		}
	}
	return n
}

// speculativeBudget is the team's remaining budget after every pick it
// holds, confirmed or projected. The server's remaining budget and the
// confirmed pick ledger can lag each other, so the lower of the two wins.
func (e *Engine) speculativeBudget(teamID string) int {
	t := e.teams[teamID]
	remaining := t.Budget
	if t.InitialBudget > 0 {
		spent := 0
		for _, p := range e.picks {
			if p.TeamID == teamID {
				spent += p.Cost
			}
		}
		remaining = min(remaining, t.InitialBudget-spent)
	}
	for _, p := range e.tempPicks {
		if p.TeamID == teamID {
			remaining -= p.Cost
		}
	}
	return remaining
}

func (e *Engine) minIncrement() int {
	if e.draft != nil && e.draft.MinBidIncrement > 1 {
		return e.draft.MinBidIncrement
	}
	return 1
}

// activeAuction returns the active auction, confirmed or projected.
func (e *Engine) activeAuction() (models.Auction, bool) {
	for _, a := range e.auctions {
		if a.IsActive() {
			return a, true
		}
	}
	for _, a := range e.tempAuctions {
		if a.IsActive() {
			return a, true
		}
	}
	return models.Auction{}, false
}

func itemName(item models.Item) string {
	if item.Name != "" {
		return item.Name
	}
	return item.ID
}

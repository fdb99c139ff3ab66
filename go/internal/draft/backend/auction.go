package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
	"github.com/mcdev12/draftcoord/go/internal/draft/order"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

const defaultNominationSec = 30

// SubmitNomination opens an auction for an item. The nominator holds the
// starting bid until someone outbids them.
func (a *App) SubmitNomination(ctx context.Context, req SubmitNominationRequest) (models.Auction, error) {
	if req.StartingBid <= 0 {
		return models.Auction{}, invalid("starting bid must be positive")
	}
	item, err := a.item(req.ItemID)
	if err != nil {
		return models.Auction{}, err
	}

	var auction models.Auction
	err = a.store.InTx(ctx, func(q Queries) error {
		d, err := q.GetDraftForUpdate(ctx, req.DraftID)
		if err != nil {
			return err
		}
		if d.IsSequential() {
			return precondition("nominations are only used in auction drafts")
		}
		if err := requireActive(d); err != nil {
			return err
		}
		if active, err := q.GetActiveAuction(ctx, d.ID); err != nil {
			return err
		} else if active != nil {
			return precondition("%s is already up for auction", active.ItemName)
		}

		engine, err := a.engineFor(d)
		if err != nil {
			return err
		}
		if v := engine.Validate(item); !v.Legal {
			return invalid("%s", v.Reason)
		}

		teams, err := q.ListTeams(ctx, d.ID)
		if err != nil {
			return err
		}
		nominations, err := q.CountAuctions(ctx, d.ID)
		if err != nil {
			return err
		}
		idx, ok := order.Nominator(progress(teams), engine.Format().MaxItemsPerTeam, nominations)
		if !ok {
			return precondition("no team can nominate")
		}
		if teams[idx].ID != req.TeamID {
			return precondition("it is %s's turn to nominate", teams[idx].Name)
		}

		team, err := q.GetTeamForUpdate(ctx, req.TeamID)
		if err != nil {
			return err
		}
		if req.StartingBid > team.Budget {
			return precondition("starting bid of %d exceeds %s's remaining budget of %d", req.StartingBid, team.Name, team.Budget)
		}
		picks, err := q.ListPicks(ctx, d.ID)
		if err != nil {
			return err
		}
		if engine.Format().UniquenessClause && itemTaken(picks, item.ID) {
			return precondition("%s has already been drafted", item.Name)
		}

		duration := req.Duration
		if duration <= 0 {
			sec := d.NominationSec
			if sec <= 0 {
				sec = defaultNominationSec
			}
			duration = time.Duration(sec) * time.Second
		}
		now := a.clock.Now()
		auction = models.Auction{
			ID:              uuid.NewString(),
			DraftID:         d.ID,
			ItemID:          item.ID,
			ItemName:        item.Name,
			NominatorID:     team.ID,
			CurrentBid:      req.StartingBid,
			CurrentBidderID: team.ID,
			EndsAt:          now.Add(duration),
			Status:          models.AuctionStatusActive,
			CreatedAt:       now,
		}
		if err := q.InsertAuction(ctx, auction); err != nil {
			return err
		}
		return a.emit(ctx, q, d.ID, events.EntityAuction, events.ChangeInsert, auction)
	})
	if err != nil {
		return models.Auction{}, fmt.Errorf("failed to submit nomination: %w", err)
	}

	if a.timer != nil {
		a.timer.Schedule(auction)
	}
	log.Info().
		Str("draft_id", auction.DraftID).
		Str("auction_id", auction.ID).
		Str("item_id", auction.ItemID).
		Time("ends_at", auction.EndsAt).
		Msg("auction opened")
	return auction, nil
}

// SubmitBid raises the current bid on an open auction.
func (a *App) SubmitBid(ctx context.Context, req SubmitBidRequest) (models.BidHistory, error) {
	if req.Amount <= 0 {
		return models.BidHistory{}, invalid("bid must be positive")
	}
	peek, err := a.store.GetAuction(ctx, req.AuctionID)
	if err != nil {
		return models.BidHistory{}, fmt.Errorf("failed to submit bid: %w", err)
	}

	var bid models.BidHistory
	err = a.store.InTx(ctx, func(q Queries) error {
		// Draft before auction, the same lock order as nominations.
		d, err := q.GetDraftForUpdate(ctx, peek.DraftID)
		if err != nil {
			return err
		}
		if err := requireActive(d); err != nil {
			return err
		}
		if !teamInDraft(d, req.TeamID) {
			return fmt.Errorf("%w: team %s is not in draft %s", ErrNotFound, req.TeamID, d.ID)
		}
		auction, err := q.GetAuctionForUpdate(ctx, req.AuctionID)
		if err != nil {
			return err
		}
		now := a.clock.Now()
		if !auction.IsActive() || !now.Before(auction.EndsAt) {
			return precondition("bidding on %s has closed", auction.ItemName)
		}
		if req.Amount <= auction.CurrentBid {
			return precondition("bid must exceed %d", auction.CurrentBid)
		}
		if inc := max(d.MinBidIncrement, 1); req.Amount < auction.CurrentBid+inc {
			return precondition("bid must be at least %d", auction.CurrentBid+inc)
		}

		engine, err := a.engineFor(d)
		if err != nil {
			return err
		}
		team, err := q.GetTeamForUpdate(ctx, req.TeamID)
		if err != nil {
			return err
		}
		if rosterFull(engine.Format(), team) {
			return precondition("roster is full")
		}
		if req.Amount > team.Budget {
			return precondition("bid of %d exceeds %s's remaining budget of %d", req.Amount, team.Name, team.Budget)
		}

		bid = models.BidHistory{
			ID:        uuid.NewString(),
			AuctionID: auction.ID,
			TeamID:    team.ID,
			Amount:    req.Amount,
			CreatedAt: now,
		}
		if err := q.InsertBid(ctx, bid); err != nil {
			return err
		}
		if err := a.emit(ctx, q, d.ID, events.EntityBid, events.ChangeInsert, bid); err != nil {
			return err
		}
		auction.CurrentBid = bid.Amount
		auction.CurrentBidderID = team.ID
		if err := q.UpdateAuction(ctx, auction); err != nil {
			return err
		}
		return a.emit(ctx, q, d.ID, events.EntityAuction, events.ChangeUpdate, auction)
	})
	if err != nil {
		return models.BidHistory{}, fmt.Errorf("failed to submit bid: %w", err)
	}

	log.Debug().
		Str("auction_id", bid.AuctionID).
		Str("team_id", bid.TeamID).
		Int("amount", bid.Amount).
		Msg("bid accepted")
	return bid, nil
}

// CloseAuction awards an ended auction to the high bidder. Closing an
// auction that is no longer active is a no-op. It returns ErrAuctionNotDue
// if called before the auction's end time.
func (a *App) CloseAuction(ctx context.Context, auctionID string) error {
	peek, err := a.store.GetAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to close auction: %w", err)
	}

	var (
		closed models.Auction
		pick   models.Pick
	)
	err = a.store.InTx(ctx, func(q Queries) error {
		d, err := q.GetDraftForUpdate(ctx, peek.DraftID)
		if err != nil {
			return err
		}
		auction, err := q.GetAuctionForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		if !auction.IsActive() {
			return nil
		}
		if a.clock.Now().Before(auction.EndsAt) {
			return ErrAuctionNotDue
		}

		engine, err := a.engineFor(d)
		if err != nil {
			return err
		}
		item, err := a.item(auction.ItemID)
		if err != nil {
			return err
		}
		team, err := q.GetTeamForUpdate(ctx, auction.CurrentBidderID)
		if err != nil {
			return err
		}

		if auction.CurrentBid > team.Budget || rosterFull(engine.Format(), team) {
			auction.Status = models.AuctionStatusCancelled
			closed = auction
			if err := q.UpdateAuction(ctx, auction); err != nil {
				return err
			}
			return a.emit(ctx, q, d.ID, events.EntityAuction, events.ChangeUpdate, auction)
		}

		auction.Status = models.AuctionStatusEnded
		closed = auction
		if err := q.UpdateAuction(ctx, auction); err != nil {
			return err
		}
		if err := a.emit(ctx, q, d.ID, events.EntityAuction, events.ChangeUpdate, auction); err != nil {
			return err
		}

		teams, err := q.ListTeams(ctx, d.ID)
		if err != nil {
			return err
		}
		picks, err := q.ListPicks(ctx, d.ID)
		if err != nil {
			return err
		}
		overall := len(picks) + 1
		pick = models.Pick{
			ID:        uuid.NewString(),
			DraftID:   d.ID,
			TeamID:    team.ID,
			ItemID:    item.ID,
			ItemName:  item.Name,
			Cost:      auction.CurrentBid,
			Overall:   overall,
			Round:     order.RoundForTurn(len(d.TeamIDs), overall),
			CreatedAt: a.clock.Now(),
		}
		after := progress(teams)
		for i := range teams {
			if teams[i].ID == team.ID {
				after[i].Budget -= pick.Cost
				after[i].ItemCount++
			}
		}
		return a.award(ctx, q, &d, team, pick, item, func(*models.Draft) bool {
			return order.AuctionComplete(after, engine.Format().MaxItemsPerTeam)
		})
	})
	if err != nil {
		if errors.Is(err, ErrAuctionNotDue) {
			return err
		}
		return fmt.Errorf("failed to close auction: %w", err)
	}

	if closed.ID != "" {
		log.Info().
			Str("auction_id", closed.ID).
			Str("status", string(closed.Status)).
			Str("winner", pick.TeamID).
			Int("amount", pick.Cost).
			Msg("auction closed")
	}
	return nil
}

// OpenAuctions lists every active auction across drafts.
func (a *App) OpenAuctions(ctx context.Context) ([]models.Auction, error) {
	auctions, err := a.store.ListActiveAuctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active auctions: %w", err)
	}
	return auctions, nil
}

func progress(teams []models.Team) []order.TeamProgress {
	return lo.Map(teams, func(t models.Team, _ int) order.TeamProgress {
		return order.TeamProgress{Budget: t.Budget, ItemCount: len(t.PickIDs)}
	})
}

package optimistic

import (
	"cmp"
	"slices"

	"github.com/mcdev12/draftcoord/go/internal/models"
)

// TeamView is a team with its confirmed and projected picks.
type TeamView struct {
	models.Team
	Picks             []models.Pick
	SpeculativeBudget int
}

// View is a read-only rendering snapshot. Callers must not modify the
// slices it holds; they are shared between calls at the same revision.
type View struct {
	Revision       uint64
	Draft          *models.Draft
	Teams          []TeamView
	Picks          []models.Pick
	Auctions       []models.Auction
	ActiveAuction  *models.Auction
	BidHistory     []models.BidHistory
	Participants   []models.Participant
	PendingActions []PendingAction
}

// CurrentState returns the speculative view of the draft. The view is
// rebuilt only when the revision has moved.
func (e *Engine) CurrentState() View {
	e.sweep()
	if e.cache != nil && e.cache.Revision == e.revision {
		return *e.cache
	}
	v := e.buildView()
	e.cache = &v
	return v
}

func (e *Engine) buildView() View {
	v := View{Revision: e.revision}
	if e.draft != nil {
		d := e.draft.Clone()
		v.Draft = &d
	}

	v.Picks = e.viewPicks()

	teams := make([]models.Team, 0, len(e.teams))
	for _, t := range e.teams {
		teams = append(teams, t)
	}
	slices.SortFunc(teams, func(a, b models.Team) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})
	for _, t := range teams {
		tv := TeamView{Team: t.Clone(), SpeculativeBudget: e.speculativeBudget(t.ID)}
		for _, p := range v.Picks {
			if p.TeamID == t.ID {
				tv.Picks = append(tv.Picks, p)
			}
		}
		v.Teams = append(v.Teams, tv)
	}

	for _, a := range e.auctions {
		v.Auctions = append(v.Auctions, a)
	}
	slices.SortFunc(v.Auctions, func(a, b models.Auction) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	for _, id := range e.actionOrder {
		if a, ok := e.tempAuctions[id]; ok {
			v.Auctions = append(v.Auctions, a)
		}
	}
	for i := range v.Auctions {
		if v.Auctions[i].IsActive() {
			v.ActiveAuction = &v.Auctions[i]
			break
		}
	}

	v.BidHistory = slices.Clone(e.bids)
	for _, id := range e.actionOrder {
		if b, ok := e.tempBids[id]; ok {
			v.BidHistory = append(v.BidHistory, b)
		}
	}

	for id, p := range e.participants {
		if _, leaving := e.leaving[id]; !leaving {
			v.Participants = append(v.Participants, p)
		}
	}
	slices.SortFunc(v.Participants, func(a, b models.Participant) int {
		return cmp.Or(a.JoinedAt.Compare(b.JoinedAt), cmp.Compare(a.ID, b.ID))
	})
	for _, id := range e.actionOrder {
		if p, ok := e.tempParticipants[id]; ok {
			v.Participants = append(v.Participants, p)
		}
	}

	for _, id := range e.actionOrder {
		v.PendingActions = append(v.PendingActions, *e.actions[id])
	}
	return v
}

// viewPicks lists confirmed picks in draft order followed by projected
// picks in the order they were made.
func (e *Engine) viewPicks() []models.Pick {
	picks := make([]models.Pick, 0, len(e.picks)+len(e.tempPicks))
	for _, p := range e.picks {
		picks = append(picks, p)
	}
	slices.SortFunc(picks, func(a, b models.Pick) int {
		return cmp.Or(cmp.Compare(a.Overall, b.Overall), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	for _, id := range e.actionOrder {
		if p, ok := e.tempPicks[id]; ok {
			picks = append(picks, p)
		}
	}
	return picks
}

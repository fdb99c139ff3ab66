package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// memStore is an in-memory Store. Transactions run against a copy of the
// state that replaces the committed state only when fn succeeds.
type memStore struct {
	mu sync.Mutex
	*memQueries
}

func newMemStore() *memStore {
	return &memStore{memQueries: &memQueries{s: newMemState()}}
}

func (m *memStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memQueries{s: m.s.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	*m.s = *tx.s
	return nil
}

func (m *memStore) outbox() []events.ChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.ChangeEvent(nil), m.s.outbox...)
}

type memState struct {
	drafts       map[string]models.Draft
	teams        map[string]models.Team
	picks        []models.Pick
	auctions     map[string]models.Auction
	bids         []models.BidHistory
	participants map[string]models.Participant
	outbox       []events.ChangeEvent
}

func newMemState() *memState {
	return &memState{
		drafts:       map[string]models.Draft{},
		teams:        map[string]models.Team{},
		auctions:     map[string]models.Auction{},
		participants: map[string]models.Participant{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.drafts {
		c.drafts[k] = v.Clone()
	}
	for k, v := range s.teams {
		c.teams[k] = v.Clone()
	}
	for k, v := range s.auctions {
		c.auctions[k] = v
	}
	for k, v := range s.participants {
		c.participants[k] = v
	}
	c.picks = append(c.picks, s.picks...)
	c.bids = append(c.bids, s.bids...)
	c.outbox = append(c.outbox, s.outbox...)
	return c
}

type memQueries struct {
	s *memState
}

func (q *memQueries) InsertDraft(ctx context.Context, d models.Draft) error {
	q.s.drafts[d.ID] = d.Clone()
	return nil
}

func (q *memQueries) GetDraft(ctx context.Context, id string) (models.Draft, error) {
	d, ok := q.s.drafts[id]
	if !ok {
		return models.Draft{}, fmt.Errorf("%w: draft %s", ErrNotFound, id)
	}
	return d.Clone(), nil
}

func (q *memQueries) GetDraftForUpdate(ctx context.Context, id string) (models.Draft, error) {
	return q.GetDraft(ctx, id)
}

func (q *memQueries) UpdateDraft(ctx context.Context, d models.Draft) error {
	q.s.drafts[d.ID] = d.Clone()
	return nil
}

func (q *memQueries) InsertTeam(ctx context.Context, t models.Team) error {
	q.s.teams[t.ID] = t.Clone()
	return nil
}

func (q *memQueries) GetTeamForUpdate(ctx context.Context, id string) (models.Team, error) {
	t, ok := q.s.teams[id]
	if !ok {
		return models.Team{}, fmt.Errorf("%w: team %s", ErrNotFound, id)
	}
	return t.Clone(), nil
}

func (q *memQueries) ListTeams(ctx context.Context, draftID string) ([]models.Team, error) {
	var out []models.Team
	for _, t := range q.s.teams {
		if t.DraftID == draftID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (q *memQueries) UpdateTeam(ctx context.Context, t models.Team) error {
	q.s.teams[t.ID] = t.Clone()
	return nil
}

func (q *memQueries) InsertPick(ctx context.Context, p models.Pick, item models.Item) error {
	q.s.picks = append(q.s.picks, p)
	return nil
}

func (q *memQueries) ListPicks(ctx context.Context, draftID string) ([]models.Pick, error) {
	var out []models.Pick
	for _, p := range q.s.picks {
		if p.DraftID == draftID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (q *memQueries) InsertAuction(ctx context.Context, a models.Auction) error {
	q.s.auctions[a.ID] = a
	return nil
}

func (q *memQueries) GetAuction(ctx context.Context, id string) (models.Auction, error) {
	a, ok := q.s.auctions[id]
	if !ok {
		return models.Auction{}, fmt.Errorf("%w: auction %s", ErrNotFound, id)
	}
	return a, nil
}

func (q *memQueries) GetAuctionForUpdate(ctx context.Context, id string) (models.Auction, error) {
	return q.GetAuction(ctx, id)
}

func (q *memQueries) UpdateAuction(ctx context.Context, a models.Auction) error {
	q.s.auctions[a.ID] = a
	return nil
}

func (q *memQueries) GetActiveAuction(ctx context.Context, draftID string) (*models.Auction, error) {
	for _, a := range q.s.auctions {
		if a.DraftID == draftID && a.IsActive() {
			return &a, nil
		}
	}
	return nil, nil
}

func (q *memQueries) ListActiveAuctions(ctx context.Context) ([]models.Auction, error) {
	var out []models.Auction
	for _, a := range q.s.auctions {
		if a.IsActive() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (q *memQueries) CountAuctions(ctx context.Context, draftID string) (int, error) {
	n := 0
	for _, a := range q.s.auctions {
		if a.DraftID == draftID {
			n++
		}
	}
	return n, nil
}

func (q *memQueries) InsertBid(ctx context.Context, b models.BidHistory) error {
	q.s.bids = append(q.s.bids, b)
	return nil
}

func (q *memQueries) InsertParticipant(ctx context.Context, p models.Participant) error {
	q.s.participants[p.ID] = p
	return nil
}

func (q *memQueries) GetParticipant(ctx context.Context, id string) (models.Participant, error) {
	p, ok := q.s.participants[id]
	if !ok {
		return models.Participant{}, fmt.Errorf("%w: participant %s", ErrNotFound, id)
	}
	return p, nil
}

func (q *memQueries) ListParticipants(ctx context.Context, draftID string) ([]models.Participant, error) {
	out := []models.Participant{}
	for _, p := range q.s.participants {
		if p.DraftID == draftID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *memQueries) DeleteParticipant(ctx context.Context, id string) error {
	delete(q.s.participants, id)
	return nil
}

func (q *memQueries) InsertOutbox(ctx context.Context, ev events.ChangeEvent) error {
	q.s.outbox = append(q.s.outbox, ev)
	return nil
}

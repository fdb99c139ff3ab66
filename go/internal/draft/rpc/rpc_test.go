package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftcoord/go/internal/draft/backend"
	"github.com/mcdev12/draftcoord/go/internal/draft/session"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

var epoch = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

type fakeApp struct {
	mu      sync.Mutex
	picks   []backend.SubmitPickRequest
	noms    []backend.SubmitNominationRequest
	err     error
	auction *models.Auction
}

func (f *fakeApp) CreateDraft(ctx context.Context, req backend.CreateDraftRequest) (models.Draft, []models.Team, error) {
	return models.Draft{ID: "d1", FormatID: req.FormatID}, []models.Team{{ID: "t1", Name: req.Teams[0].Name}}, f.err
}

func (f *fakeApp) StartDraft(ctx context.Context, draftID string) (models.Draft, error) {
	return models.Draft{ID: draftID, Status: models.DraftStatusActive}, f.err
}

func (f *fakeApp) PauseDraft(ctx context.Context, draftID string) (models.Draft, error) {
	return models.Draft{ID: draftID, Status: models.DraftStatusPaused}, f.err
}

func (f *fakeApp) ResumeDraft(ctx context.Context, draftID string) (models.Draft, error) {
	return models.Draft{ID: draftID, Status: models.DraftStatusActive}, f.err
}

func (f *fakeApp) SubmitPick(ctx context.Context, req backend.SubmitPickRequest) (models.Pick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.picks = append(f.picks, req)
	return models.Pick{ID: "p1", ItemID: req.ItemID}, f.err
}

func (f *fakeApp) SubmitBid(ctx context.Context, req backend.SubmitBidRequest) (models.BidHistory, error) {
	return models.BidHistory{ID: "b1", Amount: req.Amount}, f.err
}

func (f *fakeApp) SubmitNomination(ctx context.Context, req backend.SubmitNominationRequest) (models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noms = append(f.noms, req)
	return models.Auction{ID: "a1"}, f.err
}

func (f *fakeApp) SubmitJoin(ctx context.Context, req backend.SubmitJoinRequest) (models.Participant, error) {
	return models.Participant{ID: "p1", DisplayName: req.DisplayName}, f.err
}

func (f *fakeApp) SubmitLeave(ctx context.Context, req backend.SubmitLeaveRequest) error {
	return f.err
}

func (f *fakeApp) GetDraft(ctx context.Context, draftID string) (models.Draft, error) {
	return models.Draft{ID: draftID, TeamIDs: []string{"t1", "t2"}, CreatedAt: epoch}, f.err
}

func (f *fakeApp) ListTeams(ctx context.Context, draftID string) ([]models.Team, error) {
	return []models.Team{{ID: "t1"}, {ID: "t2"}}, f.err
}

func (f *fakeApp) ListPicks(ctx context.Context, draftID string) ([]models.Pick, error) {
	return nil, f.err
}

func (f *fakeApp) ListParticipants(ctx context.Context, draftID string) ([]models.Participant, error) {
	return []models.Participant{}, f.err
}

func (f *fakeApp) ActiveAuction(ctx context.Context, draftID string) (*models.Auction, error) {
	return f.auction, f.err
}

func newTestClient(t *testing.T, app DraftApp) *Client {
	t.Helper()
	path, handler := NewHandler(NewService(app))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL)
}

func TestClient_SubmitPick(t *testing.T) {
	app := &fakeApp{}
	c := newTestClient(t, app)

	require.NoError(t, c.SubmitPick(context.Background(), "d1", "t1", "pikachu", 10))
	assert.Equal(t, []backend.SubmitPickRequest{{DraftID: "d1", TeamID: "t1", ItemID: "pikachu", Cost: 10}}, app.picks)
}

func TestClient_SubmitNominationCarriesDuration(t *testing.T) {
	app := &fakeApp{}
	c := newTestClient(t, app)

	require.NoError(t, c.SubmitNomination(context.Background(), "d1", "t1", "eevee", 3, 45*time.Second))
	require.Len(t, app.noms, 1)
	assert.Equal(t, 45*time.Second, app.noms[0].Duration)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"precondition", fmt.Errorf("failed to submit pick: %w", fmt.Errorf("%w: not your turn", backend.ErrPrecondition)), session.ErrRejected},
		{"invalid", fmt.Errorf("%w: Mewtwo is banned", backend.ErrInvalidArgument), session.ErrRejected},
		{"not found", fmt.Errorf("%w: draft d1", backend.ErrNotFound), session.ErrRejected},
		{"internal", errors.New("connection refused"), session.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeApp{err: tt.err})
			err := c.SubmitPick(context.Background(), "d1", "t1", "pikachu", 10)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_RejectedCarriesReason(t *testing.T) {
	c := newTestClient(t, &fakeApp{err: fmt.Errorf("%w: Pikachu costs 30 but Red only has 25 left", backend.ErrPrecondition)})
	err := c.SubmitPick(context.Background(), "d1", "t1", "pikachu", 30)
	require.ErrorIs(t, err, session.ErrRejected)
	assert.Contains(t, err.Error(), "only has 25 left")
}

func TestClient_MissingDraftIDIsRejected(t *testing.T) {
	app := &fakeApp{}
	c := newTestClient(t, app)

	err := c.SubmitPick(context.Background(), "", "t1", "pikachu", 10)
	assert.ErrorIs(t, err, session.ErrRejected)
	assert.Empty(t, app.picks)
}

func TestClient_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(http.DefaultClient, url)
	err := c.SubmitBid(context.Background(), "a1", "t1", 5)
	assert.ErrorIs(t, err, session.ErrNetwork)
}

func TestClient_Fetch(t *testing.T) {
	ctx := context.Background()
	app := &fakeApp{}
	c := newTestClient(t, app)

	d, err := c.FetchDraft(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, d.TeamIDs)
	assert.True(t, d.CreatedAt.Equal(epoch))

	teams, err := c.FetchTeams(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, teams, 2)

	picks, err := c.FetchPicks(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, picks)

	ps, err := c.FetchParticipants(ctx, "d1")
	require.NoError(t, err)
	assert.NotNil(t, ps, "an empty membership list is still complete")

	auction, err := c.FetchActiveAuction(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, auction)

	app.auction = &models.Auction{ID: "a1", CurrentBid: 7, EndsAt: epoch}
	auction, err = c.FetchActiveAuction(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, auction)
	assert.Equal(t, 7, auction.CurrentBid)
}

func TestClient_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &fakeApp{})

	d, teams, err := c.CreateDraft(ctx, CreateDraftRequest{FormatID: "classic", Teams: []backend.NewTeam{{Name: "Red"}}})
	require.NoError(t, err)
	assert.Equal(t, "classic", d.FormatID)
	assert.Equal(t, "Red", teams[0].Name)

	d, err = c.StartDraft(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusActive, d.Status)

	d, err = c.PauseDraft(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusPaused, d.Status)

	_, err = c.ResumeDraft(ctx, "d1")
	require.NoError(t, err)
}

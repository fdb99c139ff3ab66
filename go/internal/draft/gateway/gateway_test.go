package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

var epoch = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func changeEvent(t *testing.T, draftID string, pick models.Pick) events.ChangeEvent {
	t.Helper()
	ev, err := events.NewChangeEvent(draftID, events.EntityPick, events.ChangeInsert, pick, epoch)
	require.NoError(t, err)
	return ev
}

// startGateway serves the WebSocket routes of a running connection manager.
func startGateway(t *testing.T) (*ConnectionManager, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cm := NewConnectionManager(ctx, DefaultConnectionConfig())
	done := make(chan struct{})
	go func() {
		defer close(done)
		cm.Start(ctx)
	}()

	mux := http.NewServeMux()
	NewWebSocketHandler(cm).RegisterRoutes(mux)
	srv := httptest.NewServer(CORSMiddleware(mux))
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return cm, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, draftID string) *Feed {
	t.Helper()
	feed, err := DialFeed(context.Background(), url, draftID, "p-"+draftID[:4], DefaultFeedConfig())
	require.NoError(t, err)
	t.Cleanup(func() { feed.Close() })
	return feed
}

func next(t *testing.T, feed *Feed) events.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-feed.Events():
		require.True(t, ok, "feed closed: %v", feed.Err())
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
		return events.ChangeEvent{}
	}
}

func TestBroadcastReachesOnlyTheDraftsWatchers(t *testing.T) {
	cm, url := startGateway(t)
	draftA, draftB := uuid.NewString(), uuid.NewString()

	feedA1 := dial(t, url, draftA)
	feedA2 := dial(t, url, draftA)
	feedB := dial(t, url, draftB)
	require.Eventually(t, func() bool {
		return cm.Stats().TotalConnections == 3
	}, 5*time.Second, 10*time.Millisecond)

	stats := cm.Stats()
	assert.Equal(t, 2, stats.ActiveDrafts)
	assert.Equal(t, 2, stats.DraftConnections[draftA])

	var sent []events.ChangeEvent
	for i := 1; i <= 3; i++ {
		ev := changeEvent(t, draftA, models.Pick{ID: uuid.NewString(), Overall: i})
		sent = append(sent, ev)
		cm.BroadcastToDraft(ev)
	}
	onlyB := changeEvent(t, draftB, models.Pick{ID: "b-pick", Overall: 1})
	cm.BroadcastToDraft(onlyB)

	for _, feed := range []*Feed{feedA1, feedA2} {
		for _, want := range sent {
			got := next(t, feed)
			assert.Equal(t, want.EventID, got.EventID)
			assert.JSONEq(t, string(want.Payload), string(got.Payload))
		}
	}
	assert.Equal(t, onlyB.EventID, next(t, feedB).EventID)

	c, err := sent[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, 1, c.Pick.Overall)
}

func TestFeedClosesWhenGatewayStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cm := NewConnectionManager(ctx, DefaultConnectionConfig())
	done := make(chan struct{})
	go func() {
		defer close(done)
		cm.Start(ctx)
	}()
	mux := http.NewServeMux()
	NewWebSocketHandler(cm).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	feed := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"), uuid.NewString())
	require.Eventually(t, func() bool {
		return cm.Stats().TotalConnections == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	select {
	case _, ok := <-feed.Events():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not close")
	}
	assert.Error(t, feed.Err())
	assert.Zero(t, cm.Stats().TotalConnections)
}

func TestHandleDraftConnection_Validation(t *testing.T) {
	cm := NewConnectionManager(context.Background(), DefaultConnectionConfig())
	mux := http.NewServeMux()
	NewWebSocketHandler(cm).RegisterRoutes(mux)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing draft id", "/ws/draft", http.StatusBadRequest},
		{"malformed draft id", "/ws/draft?draft_id=not-a-uuid", http.StatusBadRequest},
		{"not a websocket request", "/ws/draft?draft_id=" + uuid.NewString(), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats ConnectionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Zero(t, stats.TotalConnections)
}

type recordingBroadcaster struct {
	got []events.ChangeEvent
}

func (r *recordingBroadcaster) BroadcastToDraft(ev events.ChangeEvent) {
	r.got = append(r.got, ev)
}

func TestEventConsumer_Handle(t *testing.T) {
	draftID := uuid.NewString()
	ev := changeEvent(t, draftID, models.Pick{ID: "p1", Overall: 1})
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	rec := &recordingBroadcaster{}
	ec := &EventConsumer{broadcaster: rec}

	require.NoError(t, ec.handle(ev.Subject(), data))
	require.Len(t, rec.got, 1)
	assert.Equal(t, ev.EventID, rec.got[0].EventID)

	err = ec.handle(ev.Subject(), []byte("{not json"))
	assert.ErrorIs(t, err, errMalformed)

	err = ec.handle("draft."+uuid.NewString()+".pick", data)
	assert.ErrorIs(t, err, errMalformed)

	missing, err := json.Marshal(events.ChangeEvent{DraftID: draftID, Entity: events.EntityPick})
	require.NoError(t, err)
	assert.ErrorIs(t, ec.handle("draft."+draftID+".pick", missing), errMalformed)

	assert.Len(t, rec.got, 1)
}

type fakeFetcher struct {
	draft   models.Draft
	auction *models.Auction
	err     error
}

func (f *fakeFetcher) FetchDraft(ctx context.Context, draftID string) (models.Draft, error) {
	return f.draft, f.err
}

func (f *fakeFetcher) FetchTeams(ctx context.Context, draftID string) ([]models.Team, error) {
	return []models.Team{{ID: "t1", DraftID: draftID, Budget: 40}}, nil
}

func (f *fakeFetcher) FetchPicks(ctx context.Context, draftID string) ([]models.Pick, error) {
	return []models.Pick{{ID: "p1", DraftID: draftID, Overall: 1}}, nil
}

func (f *fakeFetcher) FetchParticipants(ctx context.Context, draftID string) ([]models.Participant, error) {
	return nil, nil
}

func (f *fakeFetcher) FetchActiveAuction(ctx context.Context, draftID string) (*models.Auction, error) {
	return f.auction, nil
}

func TestStateHandler(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	draftID := uuid.NewString()
	fetcher := &fakeFetcher{
		draft:   models.Draft{ID: draftID, Status: models.DraftStatusActive},
		auction: &models.Auction{ID: "a1", DraftID: draftID, EndsAt: epoch.Add(12500 * time.Millisecond)},
	}
	mux := http.NewServeMux()
	NewStateHandler(fetcher, clock).RegisterStateRoutes(mux)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/api/drafts/" + draftID + "/state")
	require.Equal(t, http.StatusOK, rec.Code)
	var state DraftStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, draftID, state.Draft.ID)
	assert.Len(t, state.Teams, 1)
	assert.Len(t, state.Picks, 1)
	require.NotNil(t, state.ActiveAuction)
	require.NotNil(t, state.TimeRemaining)
	assert.Equal(t, 12, *state.TimeRemaining)
	assert.True(t, state.ServerTime.Equal(epoch))

	clock.Advance(time.Minute)
	rec = get("/api/drafts/" + draftID + "/state")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, 0, *state.TimeRemaining)

	assert.Equal(t, http.StatusBadRequest, get("/api/drafts/nope/state").Code)

	fetcher.err = connect.NewError(connect.CodeNotFound, errors.New("draft not found"))
	assert.Equal(t, http.StatusNotFound, get("/api/drafts/"+draftID+"/state").Code)

	fetcher.err = errors.New("connection refused")
	assert.Equal(t, http.StatusBadGateway, get("/api/drafts/"+draftID+"/state").Code)
}

package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/draftcoord/go/internal/draft/events"
	"github.com/mcdev12/draftcoord/go/internal/models"
	"github.com/mcdev12/draftcoord/go/internal/sqlutil"
)

// NotifyChannel is the Postgres channel notified for every outbox row.
const NotifyChannel = "draft_outbox_events"

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is the Postgres Store.
type Repository struct {
	*queries
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		queries: &queries{db: db},
		db:      db,
	}
}

// InTx runs fn in a transaction.
func (r *Repository) InTx(ctx context.Context, fn func(q Queries) error) error {
	return sqlutil.Run(ctx, r.db,
		func(tx *sql.Tx) *queries { return &queries{db: tx} },
		func(q *queries) error { return fn(q) },
	)
}

type queries struct {
	db DBTX
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return fmt.Errorf("failed to get %s %s: %w", what, id, err)
}

const draftColumns = `id, format_id, kind, status, team_ids, rounds, current_turn, current_round,
	budget_per_team, min_bid_increment, nomination_sec, started_at, completed_at, created_at, updated_at`

func scanDraft(row interface{ Scan(...any) error }) (models.Draft, error) {
	var (
		d                  models.Draft
		started, completed sql.NullTime
	)
	err := row.Scan(&d.ID, &d.FormatID, &d.Kind, &d.Status, pq.Array(&d.TeamIDs), &d.Rounds,
		&d.CurrentTurn, &d.CurrentRound, &d.BudgetPerTeam, &d.MinBidIncrement, &d.NominationSec,
		&started, &completed, &d.CreatedAt, &d.UpdatedAt)
	d.StartedAt = sqlutil.FromSqlTime(started)
	d.CompletedAt = sqlutil.FromSqlTime(completed)
	return d, err
}

func (q *queries) InsertDraft(ctx context.Context, d models.Draft) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO drafts (`+draftColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID, d.FormatID, d.Kind, d.Status, pq.Array(d.TeamIDs), d.Rounds, d.CurrentTurn, d.CurrentRound,
		d.BudgetPerTeam, d.MinBidIncrement, d.NominationSec,
		sqlutil.ToSqlTime(d.StartedAt), sqlutil.ToSqlTime(d.CompletedAt), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert draft: %w", err)
	}
	return nil
}

func (q *queries) GetDraft(ctx context.Context, id string) (models.Draft, error) {
	d, err := scanDraft(q.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = $1`, id))
	if err != nil {
		return models.Draft{}, notFound(err, "draft", id)
	}
	return d, nil
}

func (q *queries) GetDraftForUpdate(ctx context.Context, id string) (models.Draft, error) {
	d, err := scanDraft(q.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return models.Draft{}, notFound(err, "draft", id)
	}
	return d, nil
}

func (q *queries) UpdateDraft(ctx context.Context, d models.Draft) error {
	_, err := q.db.ExecContext(ctx, `UPDATE drafts SET status = $2, current_turn = $3, current_round = $4,
		started_at = $5, completed_at = $6, updated_at = $7 WHERE id = $1`,
		d.ID, d.Status, d.CurrentTurn, d.CurrentRound,
		sqlutil.ToSqlTime(d.StartedAt), sqlutil.ToSqlTime(d.CompletedAt), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	return nil
}

const teamColumns = `id, draft_id, name, owner_id, position, initial_budget, budget, pick_ids, created_at`

func scanTeam(row interface{ Scan(...any) error }) (models.Team, error) {
	var t models.Team
	err := row.Scan(&t.ID, &t.DraftID, &t.Name, &t.OwnerID, &t.Position, &t.InitialBudget, &t.Budget,
		pq.Array(&t.PickIDs), &t.CreatedAt)
	if t.PickIDs == nil {
		t.PickIDs = []string{}
	}
	return t, err
}

func (q *queries) InsertTeam(ctx context.Context, t models.Team) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO teams (`+teamColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.DraftID, t.Name, t.OwnerID, t.Position, t.InitialBudget, t.Budget, pq.Array(t.PickIDs), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert team: %w", err)
	}
	return nil
}

func (q *queries) GetTeamForUpdate(ctx context.Context, id string) (models.Team, error) {
	t, err := scanTeam(q.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return models.Team{}, notFound(err, "team", id)
	}
	return t, nil
}

func (q *queries) ListTeams(ctx context.Context, draftID string) ([]models.Team, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE draft_id = $1 ORDER BY position`, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (q *queries) UpdateTeam(ctx context.Context, t models.Team) error {
	_, err := q.db.ExecContext(ctx, `UPDATE teams SET budget = $2, pick_ids = $3 WHERE id = $1`,
		t.ID, t.Budget, pq.Array(t.PickIDs))
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	return nil
}

func (q *queries) InsertPick(ctx context.Context, p models.Pick, item models.Item) error {
	snapshot, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item snapshot: %w", err)
	}
	metadata := pqtype.NullRawMessage{RawMessage: snapshot, Valid: item.ID != ""}
	_, err = q.db.ExecContext(ctx, `INSERT INTO picks
		(id, draft_id, team_id, item_id, item_name, cost, overall, round, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.DraftID, p.TeamID, p.ItemID, p.ItemName, p.Cost, p.Overall, p.Round, metadata, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pick: %w", err)
	}
	return nil
}

func (q *queries) ListPicks(ctx context.Context, draftID string) ([]models.Pick, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, draft_id, team_id, item_id, item_name, cost, overall, round, created_at
		FROM picks WHERE draft_id = $1 ORDER BY overall`, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	defer rows.Close()

	var picks []models.Pick
	for rows.Next() {
		var p models.Pick
		if err := rows.Scan(&p.ID, &p.DraftID, &p.TeamID, &p.ItemID, &p.ItemName, &p.Cost,
			&p.Overall, &p.Round, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pick: %w", err)
		}
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

const auctionColumns = `id, draft_id, item_id, item_name, nominator_id, current_bid, current_bidder_id,
	ends_at, status, created_at`

func scanAuction(row interface{ Scan(...any) error }) (models.Auction, error) {
	var a models.Auction
	err := row.Scan(&a.ID, &a.DraftID, &a.ItemID, &a.ItemName, &a.NominatorID, &a.CurrentBid,
		&a.CurrentBidderID, &a.EndsAt, &a.Status, &a.CreatedAt)
	return a, err
}

func (q *queries) InsertAuction(ctx context.Context, a models.Auction) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO auctions (`+auctionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.DraftID, a.ItemID, a.ItemName, a.NominatorID, a.CurrentBid, a.CurrentBidderID,
		a.EndsAt, a.Status, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

func (q *queries) GetAuction(ctx context.Context, id string) (models.Auction, error) {
	a, err := scanAuction(q.db.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id))
	if err != nil {
		return models.Auction{}, notFound(err, "auction", id)
	}
	return a, nil
}

func (q *queries) GetAuctionForUpdate(ctx context.Context, id string) (models.Auction, error) {
	a, err := scanAuction(q.db.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return models.Auction{}, notFound(err, "auction", id)
	}
	return a, nil
}

func (q *queries) UpdateAuction(ctx context.Context, a models.Auction) error {
	_, err := q.db.ExecContext(ctx, `UPDATE auctions SET current_bid = $2, current_bidder_id = $3, status = $4
		WHERE id = $1`, a.ID, a.CurrentBid, a.CurrentBidderID, a.Status)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	return nil
}

func (q *queries) GetActiveAuction(ctx context.Context, draftID string) (*models.Auction, error) {
	a, err := scanAuction(q.db.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions
		WHERE draft_id = $1 AND status = 'active'`, draftID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active auction: %w", err)
	}
	return &a, nil
}

func (q *queries) ListActiveAuctions(ctx context.Context) ([]models.Auction, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+auctionColumns+` FROM auctions
		WHERE status = 'active' ORDER BY ends_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active auctions: %w", err)
	}
	defer rows.Close()

	var auctions []models.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}

func (q *queries) CountAuctions(ctx context.Context, draftID string) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT count(*) FROM auctions WHERE draft_id = $1`, draftID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count auctions: %w", err)
	}
	return n, nil
}

func (q *queries) InsertBid(ctx context.Context, b models.BidHistory) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO bid_history (id, auction_id, team_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`, b.ID, b.AuctionID, b.TeamID, b.Amount, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

func scanParticipant(row interface{ Scan(...any) error }) (models.Participant, error) {
	var (
		p      models.Participant
		teamID sql.NullString
	)
	err := row.Scan(&p.ID, &p.DraftID, &p.DisplayName, &teamID, &p.JoinedAt)
	p.TeamID = sqlutil.FromSqlString(teamID)
	return p, err
}

func (q *queries) InsertParticipant(ctx context.Context, p models.Participant) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO participants (id, draft_id, display_name, team_id, joined_at)
		VALUES ($1, $2, $3, $4, $5)`, p.ID, p.DraftID, p.DisplayName, sqlutil.ToSqlString(p.TeamID), p.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

func (q *queries) GetParticipant(ctx context.Context, id string) (models.Participant, error) {
	p, err := scanParticipant(q.db.QueryRowContext(ctx, `SELECT id, draft_id, display_name, team_id, joined_at
		FROM participants WHERE id = $1`, id))
	if err != nil {
		return models.Participant{}, notFound(err, "participant", id)
	}
	return p, nil
}

func (q *queries) ListParticipants(ctx context.Context, draftID string) ([]models.Participant, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, draft_id, display_name, team_id, joined_at
		FROM participants WHERE draft_id = $1 ORDER BY joined_at, id`, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	ps := []models.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

func (q *queries) DeleteParticipant(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return nil
}

// InsertOutbox stores the event and notifies the relay. The notification
// is delivered when the transaction commits.
func (q *queries) InsertOutbox(ctx context.Context, ev events.ChangeEvent) error {
	id, err := uuid.Parse(ev.EventID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", ev.EventID, err)
	}
	_, err = q.db.ExecContext(ctx, `INSERT INTO draft_outbox (id, draft_id, entity, change, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, id, ev.DraftID, ev.Entity, ev.Change, []byte(ev.Payload), ev.Timestamp)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, id.String()); err != nil {
		return fmt.Errorf("failed to notify outbox: %w", err)
	}
	return nil
}

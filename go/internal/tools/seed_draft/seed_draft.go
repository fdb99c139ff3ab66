package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/draftcoord/go/internal/dbconfig"
	"github.com/mcdev12/draftcoord/go/internal/draft/backend"
	"github.com/mcdev12/draftcoord/go/internal/draft/rules"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

// SeedDraft mirrors one entry of the seed YAML.
type SeedDraft struct {
	ID              string   `yaml:"id"`
	FormatID        string   `yaml:"format_id"`
	Rounds          int      `yaml:"rounds"`
	BudgetPerTeam   int      `yaml:"budget_per_team"`
	MinBidIncrement int      `yaml:"min_bid_increment"`
	NominationSec   int      `yaml:"nomination_sec"`
	Teams           []string `yaml:"teams"`
}

type seedFile struct {
	Drafts []SeedDraft `yaml:"drafts"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	ctx := context.Background()

	// 1) Load the catalog and the seed file
	catalog, err := rules.LoadCatalogFile(getEnv("FORMATS_PATH", "go/internal/assets/catalog.yaml"))
	if err != nil {
		fail("load catalog: %v", err)
	}
	formats, err := catalog.Registry()
	if err != nil {
		fail("register formats: %v", err)
	}

	data, err := os.ReadFile(getEnv("SEED_PATH", "go/internal/assets/seed_draft.yaml"))
	if err != nil {
		fail("read seed file: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		fail("unmarshal seed file: %v", err)
	}

	// 2) Connect using shared dbconfig and make sure the schema exists
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fail("failed to connect: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, backend.Schema); err != nil {
		fail("apply schema: %v", err)
	}

	// 3) Insert each draft with its teams in one transaction
	var (
		total    = len(seed.Drafts)
		inserted int
		skipped  int
		errs     int
	)
	for _, d := range seed.Drafts {
		ok, err := seedDraft(ctx, pool, formats, d)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "error seeding draft %s: %v\n", d.ID, err)
			errs++
		case ok:
			inserted++
		default:
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Draft seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}

// seedDraft reports false when a draft with the same id already exists.
func seedDraft(ctx context.Context, pool *pgxpool.Pool, formats *rules.Registry, d SeedDraft) (bool, error) {
	if _, err := uuid.Parse(d.ID); err != nil {
		return false, fmt.Errorf("draft id must be a uuid: %w", err)
	}
	engine, err := formats.Engine(d.FormatID)
	if err != nil {
		return false, err
	}
	if len(d.Teams) == 0 {
		return false, errors.New("draft has no teams")
	}
	format := engine.Format()
	rounds := d.Rounds
	if rounds == 0 {
		rounds = format.MaxItemsPerTeam
	}
	if format.Kind == models.DraftKindSequential && rounds <= 0 {
		return false, errors.New("sequential draft needs rounds")
	}
	minInc := max(d.MinBidIncrement, 1)

	teamIDs := make([]string, len(d.Teams))
	for i := range d.Teams {
		// Derived ids keep reseeding stable.
		teamIDs[i] = uuid.NewSHA1(uuid.MustParse(d.ID), []byte(fmt.Sprintf("team-%d", i+1))).String()
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		INSERT INTO drafts (
		  id, format_id, kind, status, team_ids, rounds,
		  budget_per_team, min_bid_increment, nomination_sec, created_at, updated_at
		) VALUES (
		  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10
		)
		ON CONFLICT (id) DO NOTHING
	`,
		d.ID, format.ID, string(format.Kind), string(models.DraftStatusPending), teamIDs, rounds,
		d.BudgetPerTeam, minInc, d.NominationSec, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	for i, name := range d.Teams {
		name = strings.TrimSpace(name)
		if name == "" {
			return false, fmt.Errorf("team %d has no name", i+1)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO teams (
			  id, draft_id, name, position, initial_budget, budget, created_at
			) VALUES (
			  $1,$2,$3,$4,$5,$5,$6
			)
			ON CONFLICT (id) DO NOTHING
		`,
			teamIDs[i], d.ID, name, i+1, d.BudgetPerTeam, now,
		)
		if err != nil {
			return false, fmt.Errorf("insert team %s: %w", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

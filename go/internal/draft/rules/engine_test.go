package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftcoord/go/internal/models"
)

func testFormat() models.Format {
	return models.Format{
		ID:                 "gen1-ou",
		Name:               "Gen 1 OU",
		Kind:               models.DraftKindSequential,
		BannedItems:        []string{"Mewtwo", "ditto"},
		BannedCategories:   []string{"mythical"},
		AllowedGenerations: []int{1, 2},
		UniquenessClause:   true,
		MaxItemsPerTeam:    6,
		Cost: models.CostModel{
			Overrides:     map[string]int{"snorlax": 18},
			Thresholds:    []models.CostThreshold{{Min: 300, Cost: 10}, {Min: 500, Cost: 15}},
			CategoryCosts: map[string]int{"UU": 4},
			MinCost:       1,
			MaxCost:       20,
		},
	}
}

func newTestEngine(t *testing.T, f models.Format) *Engine {
	t.Helper()
	e, err := NewEngine(f)
	require.NoError(t, err)
	return e
}

func TestEngine_Validate(t *testing.T) {
	e := newTestEngine(t, testFormat())

	tests := []struct {
		name     string
		item     models.Item
		legal    bool
		cost     int
		contains string
	}{
		{
			name:  "tier match uses highest threshold not above strength",
			item:  models.Item{ID: "dragonite", Name: "Dragonite", Generation: 1, Strength: 520},
			legal: true,
			cost:  15,
		},
		{
			name:  "lower tier",
			item:  models.Item{ID: "pikachu", Name: "Pikachu", Generation: 1, Strength: 320},
			legal: true,
			cost:  10,
		},
		{
			name:  "falls back to category table",
			item:  models.Item{ID: "caterpie", Name: "Caterpie", Generation: 1, Strength: 195, Tier: "UU"},
			legal: true,
			cost:  4,
		},
		{
			name:  "final fallback is min cost",
			item:  models.Item{ID: "weedle", Name: "Weedle", Generation: 1, Strength: 195},
			legal: true,
			cost:  1,
		},
		{
			name:  "override short-circuits",
			item:  models.Item{ID: "snorlax", Name: "Snorlax", Generation: 1, Strength: 540},
			legal: true,
			cost:  18,
		},
		{
			name:     "banned by name case-insensitive",
			item:     models.Item{ID: "150", Name: "MEWTWO", Generation: 1, Strength: 680},
			legal:    false,
			cost:     15,
			contains: "banned",
		},
		{
			name:     "banned by id",
			item:     models.Item{ID: "Ditto", Name: "Ditto", Generation: 1, Strength: 288},
			legal:    false,
			cost:     1,
			contains: "banned",
		},
		{
			name:     "banned category",
			item:     models.Item{ID: "mew", Name: "Mew", Generation: 1, Strength: 600, Categories: []string{"Mythical"}},
			legal:    false,
			cost:     15,
			contains: "mythical",
		},
		{
			name:     "generation not allowed",
			item:     models.Item{ID: "garchomp", Name: "Garchomp", Generation: 4, Strength: 600},
			legal:    false,
			cost:     15,
			contains: "generation 4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Validate(tt.item)
			assert.Equal(t, tt.legal, v.Legal)
			assert.Equal(t, tt.legal, e.IsLegal(tt.item))
			assert.Equal(t, tt.cost, v.Cost)
			assert.Equal(t, tt.cost, e.Cost(tt.item))
			if tt.contains != "" {
				assert.Contains(t, v.Reason, tt.contains)
			} else {
				assert.Empty(t, v.Reason)
			}
		})
	}
}

func TestEngine_BanListWins(t *testing.T) {
	f := testFormat()
	f.AllowedItems = []string{"mewtwo"}
	e := newTestEngine(t, f)

	items := []models.Item{
		{ID: "mewtwo", Name: "Mewtwo", Generation: 1},
		{ID: "mewtwo", Name: "Mewtwo", Generation: 9, Categories: []string{"legendary"}},
		{ID: "x", Name: "mewtwo", Generation: 2, Strength: 9999},
	}
	for _, item := range items {
		assert.False(t, e.IsLegal(item), "%+v", item)
	}
}

func TestEngine_AllowList(t *testing.T) {
	f := testFormat()
	f.AllowedItems = []string{"Pikachu", "eevee"}
	e := newTestEngine(t, f)

	assert.True(t, e.IsLegal(models.Item{ID: "pikachu", Name: "Pikachu", Generation: 1}))
	assert.True(t, e.IsLegal(models.Item{ID: "eevee", Name: "Eevee", Generation: 1}))

	v := e.Validate(models.Item{ID: "jolteon", Name: "Jolteon", Generation: 1})
	assert.False(t, v.Legal)
	assert.Contains(t, v.Reason, "allowed list")
}

func TestEngine_MultiplierAndClamp(t *testing.T) {
	f := testFormat()
	f.Cost.Multiplier = 1.5
	e := newTestEngine(t, f)

	// 15 * 1.5 = 22.5 -> 23, clamped to 20
	assert.Equal(t, 20, e.Cost(models.Item{ID: "a", Strength: 500}))
	// 10 * 1.5 = 15
	assert.Equal(t, 15, e.Cost(models.Item{ID: "b", Strength: 300}))

	f.Cost.Multiplier = 0.05
	e = newTestEngine(t, f)
	// 10 * 0.05 = 0.5 -> 1 after rounding, and never below min
	assert.Equal(t, 1, e.Cost(models.Item{ID: "c", Strength: 300}))
}

func TestEngine_ValidateRoster(t *testing.T) {
	e := newTestEngine(t, testFormat())

	roster := []models.Item{
		{ID: "dragonite", Name: "Dragonite", Generation: 1, Strength: 520},
		{ID: "dragonite", Name: "Dragonite", Generation: 1, Strength: 520},
		{ID: "mew", Name: "Mew", Generation: 1, Strength: 600, Categories: []string{"mythical"}},
		{ID: "garchomp", Name: "Garchomp", Generation: 4, Strength: 600},
	}

	res := e.ValidateRoster(roster, 40)
	assert.False(t, res.Valid)
	assert.Equal(t, 60, res.TotalCost)
	assert.Equal(t, -20, res.BudgetRemaining)
	require.Len(t, res.Errors, 4)
	assert.Contains(t, res.Errors[0], "Mew")
	assert.Contains(t, res.Errors[1], "Garchomp")
	assert.Contains(t, res.Errors[2], "more than once")
	assert.Contains(t, res.Errors[3], "exceeds budget")
}

func TestEngine_ValidateRosterDuplicatesWithoutClause(t *testing.T) {
	f := testFormat()
	f.UniquenessClause = false
	e := newTestEngine(t, f)

	item := models.Item{ID: "pikachu", Name: "Pikachu", Generation: 1, Strength: 320}
	res := e.ValidateRoster([]models.Item{item, item}, 100)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 20, res.TotalCost)
	assert.Equal(t, 80, res.BudgetRemaining)
}

func TestEngine_ValidateRosterSize(t *testing.T) {
	f := testFormat()
	f.MaxItemsPerTeam = 1
	e := newTestEngine(t, f)

	res := e.ValidateRoster([]models.Item{
		{ID: "a", Generation: 1},
		{ID: "b", Generation: 1},
	}, 100)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"roster has 2 items, limit is 1"}, res.Errors)
}

func TestNewEngine_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Format)
	}{
		{"missing id", func(f *models.Format) { f.ID = " " }},
		{"min above max", func(f *models.Format) { f.Cost.MinCost = 30 }},
		{"negative min", func(f *models.Format) { f.Cost.MinCost = -1 }},
		{"negative multiplier", func(f *models.Format) { f.Cost.Multiplier = -2 }},
		{"min items above max items", func(f *models.Format) { f.MinItemsPerTeam = 7 }},
		{"unknown kind", func(f *models.Format) { f.Kind = "round-robin" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testFormat()
			tt.mutate(&f)
			_, err := NewEngine(f)
			assert.True(t, errors.Is(err, ErrMalformedFormat), "got %v", err)
		})
	}
}

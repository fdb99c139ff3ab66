package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func want(id string, cost, priority int) Want {
	return Want{ItemID: id, Name: id, Cost: cost, Available: true, Priority: priority}
}

func ids(wants []Want) []string {
	out := make([]string, 0, len(wants))
	for _, w := range wants {
		out = append(out, w.ItemID)
	}
	return out
}

func TestValidate_GreedyPrefix(t *testing.T) {
	v := NewValidator(DefaultConfig())

	wants := []Want{
		want("c", 30, 3),
		want("a", 40, 1),
		want("b", 50, 2),
		want("d", 5, 4), // would fit on its own but comes after the cut
	}

	r := v.Validate(wants, 100, 0)
	assert.Equal(t, []string{"a", "b"}, ids(r.Affordable))
	assert.Equal(t, []string{"c", "d"}, ids(r.Unaffordable))
	assert.Equal(t, 90, r.AffordableCost)
	assert.Equal(t, 125, r.TotalCost)
	assert.Equal(t, 25, r.Overage)
	assert.InDelta(t, 0.9, r.Utilization, 1e-9)

	assert.True(t, r.HasWarning(WarningOverBudget))
	assert.True(t, r.HasWarning(WarningBudgetTight))
	assert.False(t, r.HasWarning(WarningInefficient))

	require.Len(t, r.Suggestions, 2)
	assert.Equal(t, SuggestRemove, r.Suggestions[0].Kind)
	assert.Equal(t, []string{"c"}, r.Suggestions[0].ItemIDs)
	assert.Equal(t, SuggestReorder, r.Suggestions[1].Kind)
	assert.Equal(t, []string{"d"}, r.Suggestions[1].ItemIDs)
}

func TestValidate_SpentReducesRemaining(t *testing.T) {
	v := NewValidator(DefaultConfig())

	r := v.Validate([]Want{want("a", 30, 1), want("b", 30, 2)}, 100, 50)
	assert.Equal(t, 50, r.Remaining)
	assert.Equal(t, []string{"a"}, ids(r.Affordable))
	assert.Equal(t, []string{"b"}, ids(r.Unaffordable))

	r = v.Validate([]Want{want("a", 1, 1)}, 100, 150)
	assert.Equal(t, 0, r.Remaining)
	assert.Empty(t, r.Affordable)
	assert.Equal(t, []string{"a"}, ids(r.Unaffordable))
}

func TestValidate_Inefficient(t *testing.T) {
	v := NewValidator(DefaultConfig())

	r := v.Validate([]Want{want("a", 20, 1), want("b", 10, 2)}, 100, 0)
	assert.Empty(t, r.Unaffordable)
	assert.True(t, r.HasWarning(WarningInefficient))
	assert.False(t, r.HasWarning(WarningOverBudget))
	require.Len(t, r.Suggestions, 1)
	assert.Equal(t, SuggestAdd, r.Suggestions[0].Kind)

	// low utilization but slack within tolerance is not flagged
	r = v.Validate([]Want{want("a", 10, 1)}, 30, 0)
	assert.False(t, r.HasWarning(WarningInefficient))
}

func TestValidate_UnavailableExpensive(t *testing.T) {
	v := NewValidator(DefaultConfig())

	taken := want("mewtwo", 40, 1)
	taken.Available = false
	cheapTaken := want("rattata", 2, 2)
	cheapTaken.Available = false

	r := v.Validate([]Want{taken, cheapTaken, want("a", 80, 3)}, 100, 0)
	assert.Equal(t, []string{"mewtwo", "rattata"}, ids(r.Unavailable))
	assert.Equal(t, []string{"a"}, ids(r.Affordable))
	assert.Equal(t, 80, r.TotalCost)

	require.True(t, r.HasWarning(WarningUnavailableExpensive))
	for _, w := range r.Warnings {
		if w.Kind == WarningUnavailableExpensive {
			assert.Equal(t, []string{"mewtwo"}, w.ItemIDs)
		}
	}
}

func TestValidate_Thresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TightRatio = 0.5
	v := NewValidator(cfg)

	r := v.Validate([]Want{want("a", 50, 1)}, 100, 0)
	assert.True(t, r.HasWarning(WarningBudgetTight))
}

func TestValidate_MonotonicPrefix(t *testing.T) {
	v := NewValidator(DefaultConfig())

	costs := []int{7, 3, 12, 1, 9, 4, 15, 2, 8, 6}
	for budget := 0; budget <= 70; budget++ {
		var wants []Want
		for i, c := range costs {
			wants = append(wants, want(string(rune('a'+i)), c, i))
		}
		r := v.Validate(wants, budget, 0)
		require.Equal(t, len(costs), len(r.Affordable)+len(r.Unaffordable))

		// every item after the first unaffordable one is unaffordable too
		if len(r.Unaffordable) > 0 {
			first := r.Unaffordable[0].Priority
			for _, w := range r.Affordable {
				assert.Less(t, w.Priority, first, "budget=%d", budget)
			}
		}
		assert.LessOrEqual(t, r.AffordableCost, budget)
	}
}

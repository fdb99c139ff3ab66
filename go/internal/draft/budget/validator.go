package budget

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// Validator classifies want lists against a budget.
type Validator struct {
	cfg Config
}

// NewValidator creates a validator with cfg.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate partitions wants into affordable and unaffordable items by
// spending the remaining budget (budget minus spent) greedily in priority
// order. Once an item does not fit, it and everything after it is
// unaffordable.
func (v *Validator) Validate(wants []Want, budget, spent int) Report {
	remaining := budget - spent
	if remaining < 0 {
		remaining = 0
	}

	ordered := slices.Clone(wants)
	slices.SortStableFunc(ordered, func(a, b Want) int {
		return cmp.Compare(a.Priority, b.Priority)
	})

	available, unavailable := lo.FilterReject(ordered, func(w Want, _ int) bool {
		return w.Available
	})

	r := Report{
		Remaining:   remaining,
		Unavailable: unavailable,
		TotalCost:   lo.SumBy(available, func(w Want) int { return w.Cost }),
	}

	cut := false
	for _, w := range available {
		if !cut && r.AffordableCost+w.Cost <= remaining {
			r.Affordable = append(r.Affordable, w)
			r.AffordableCost += w.Cost
			continue
		}
		cut = true
		r.Unaffordable = append(r.Unaffordable, w)
	}

	if r.TotalCost > remaining {
		r.Overage = r.TotalCost - remaining
	}
	if remaining > 0 {
		r.Utilization = float64(r.AffordableCost) / float64(remaining)
	}

	r.Warnings = v.warnings(r, budget)
	r.Suggestions = v.suggestions(r)
	return r
}

func (v *Validator) warnings(r Report, budget int) []Warning {
	var out []Warning
	slack := r.Remaining - r.AffordableCost

	if r.Overage > 0 {
		out = append(out, Warning{
			Kind:    WarningOverBudget,
			Message: fmt.Sprintf("want list costs %d, %d over the remaining budget of %d", r.TotalCost, r.Overage, r.Remaining),
			ItemIDs: wantIDs(r.Unaffordable),
		})
	}
	if r.Remaining > 0 && r.Utilization >= v.cfg.TightRatio {
		out = append(out, Warning{
			Kind:    WarningBudgetTight,
			Message: fmt.Sprintf("affordable items use %.0f%% of the remaining budget", r.Utilization*100),
		})
	}
	if r.Remaining > 0 && r.Utilization < v.cfg.InefficientRatio && slack > v.cfg.InefficientSlack {
		out = append(out, Warning{
			Kind:    WarningInefficient,
			Message: fmt.Sprintf("only %.0f%% of the remaining budget is used, %d left unspent", r.Utilization*100, slack),
		})
	}

	threshold := v.cfg.ExpensiveRatio * float64(budget)
	expensive := lo.Filter(r.Unavailable, func(w Want, _ int) bool {
		return float64(w.Cost) >= threshold
	})
	if len(expensive) > 0 {
		out = append(out, Warning{
			Kind:    WarningUnavailableExpensive,
			Message: fmt.Sprintf("%d expensive items on the list were already taken", len(expensive)),
			ItemIDs: wantIDs(expensive),
		})
	}
	return out
}

func (v *Validator) suggestions(r Report) []Suggestion {
	var out []Suggestion
	slack := r.Remaining - r.AffordableCost

	if len(r.Unaffordable) > 0 {
		byCost := slices.Clone(r.Unaffordable)
		slices.SortStableFunc(byCost, func(a, b Want) int {
			return cmp.Compare(b.Cost, a.Cost)
		})
		var drop []Want
		over := r.Overage
		for _, w := range byCost {
			if over <= 0 {
				break
			}
			drop = append(drop, w)
			over -= w.Cost
		}
		out = append(out, Suggestion{
			Kind:    SuggestRemove,
			Message: fmt.Sprintf("remove %d of the most expensive unaffordable items", len(drop)),
			ItemIDs: wantIDs(drop),
		})

		movable := lo.Filter(r.Unaffordable, func(w Want, _ int) bool {
			return w.Cost <= slack
		})
		if len(movable) > 0 {
			out = append(out, Suggestion{
				Kind:    SuggestReorder,
				Message: fmt.Sprintf("%d lower-priority items would fit if moved ahead of more expensive ones", len(movable)),
				ItemIDs: wantIDs(movable),
			})
		}
	}

	if len(r.Unaffordable) == 0 && r.Remaining > 0 && r.Utilization < v.cfg.InefficientRatio {
		out = append(out, Suggestion{
			Kind:    SuggestAdd,
			Message: fmt.Sprintf("%d budget left unspent, consider adding more items", slack),
		})
	}
	return out
}

func wantIDs(wants []Want) []string {
	return lo.Map(wants, func(w Want, _ int) string { return w.ItemID })
}

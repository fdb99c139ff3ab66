package rules

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/mcdev12/draftcoord/go/internal/models"
)

// Validation is the result of checking a single item against a format.
type Validation struct {
	Legal  bool   `json:"legal"`
	Cost   int    `json:"cost"`
	Reason string `json:"reason,omitempty"`
}

// RosterValidation collects every violation found in a roster.
type RosterValidation struct {
	Valid           bool     `json:"valid"`
	Errors          []string `json:"errors"`
	TotalCost       int      `json:"total_cost"`
	BudgetRemaining int      `json:"budget_remaining"`
}

// Engine evaluates legality and cost for one format.
// It is immutable and safe for concurrent use.
type Engine struct {
	format      models.Format
	banned      map[string]struct{}
	allowed     map[string]struct{}
	bannedCats  map[string]struct{}
	generations map[int]struct{}
	thresholds  []models.CostThreshold // descending by Min
	multiplier  float64
}

// NewEngine builds an engine for format. It returns ErrMalformedFormat if
// the definition cannot be evaluated.
func NewEngine(format models.Format) (*Engine, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}

	thresholds := slices.Clone(format.Cost.Thresholds)
	slices.SortFunc(thresholds, func(a, b models.CostThreshold) int {
		return b.Min - a.Min
	})

	multiplier := format.Cost.Multiplier
	if multiplier == 0 {
		multiplier = 1
	}

	return &Engine{
		format:      format,
		banned:      keySet(format.BannedItems),
		allowed:     keySet(format.AllowedItems),
		bannedCats:  keySet(format.BannedCategories),
		generations: lo.SliceToMap(format.AllowedGenerations, func(g int) (int, struct{}) { return g, struct{}{} }),
		thresholds:  thresholds,
		multiplier:  multiplier,
	}, nil
}

func checkFormat(f models.Format) error {
	switch {
	case strings.TrimSpace(f.ID) == "":
		return fmt.Errorf("%w: missing id", ErrMalformedFormat)
	case f.Kind != "" && f.Kind != models.DraftKindSequential && f.Kind != models.DraftKindSimultaneousBid:
		return fmt.Errorf("%w: format %q has unknown kind %q", ErrMalformedFormat, f.ID, f.Kind)
	case f.Cost.MinCost < 0:
		return fmt.Errorf("%w: format %q has negative min cost", ErrMalformedFormat, f.ID)
	case f.Cost.MaxCost > 0 && f.Cost.MinCost > f.Cost.MaxCost:
		return fmt.Errorf("%w: format %q min cost %d exceeds max cost %d", ErrMalformedFormat, f.ID, f.Cost.MinCost, f.Cost.MaxCost)
	case f.Cost.Multiplier < 0:
		return fmt.Errorf("%w: format %q has negative multiplier", ErrMalformedFormat, f.ID)
	case f.MaxItemsPerTeam > 0 && f.MinItemsPerTeam > f.MaxItemsPerTeam:
		return fmt.Errorf("%w: format %q min items %d exceeds max items %d", ErrMalformedFormat, f.ID, f.MinItemsPerTeam, f.MaxItemsPerTeam)
	}
	return nil
}

// Format returns the format the engine was built from.
func (e *Engine) Format() models.Format {
	return e.format
}

// IsLegal reports whether item may be drafted under the format.
func (e *Engine) IsLegal(item models.Item) bool {
	_, ok := e.legality(item)
	return ok
}

// legality applies the format's rules in order; the first rejecting rule wins.
func (e *Engine) legality(item models.Item) (string, bool) {
	if hasKey(e.banned, item.ID) || hasKey(e.banned, item.Name) {
		return fmt.Sprintf("%s is banned in %s", displayName(item), e.format.Name), false
	}
	for _, c := range item.Categories {
		if hasKey(e.bannedCats, c) {
			return fmt.Sprintf("%s is %s, which is not allowed in %s", displayName(item), strings.ToLower(c), e.format.Name), false
		}
	}
	if len(e.generations) > 0 {
		if _, ok := e.generations[item.Generation]; !ok {
			return fmt.Sprintf("%s is from generation %d, which is not allowed", displayName(item), item.Generation), false
		}
	}
	if len(e.allowed) > 0 && !hasKey(e.allowed, item.ID) && !hasKey(e.allowed, item.Name) {
		return fmt.Sprintf("%s is not on the allowed list", displayName(item)), false
	}
	return "", true
}

// Cost prices item under the format's cost model.
func (e *Engine) Cost(item models.Item) int {
	cm := e.format.Cost
	if v, ok := cm.Overrides[item.ID]; ok {
		return v
	}
	for _, t := range e.thresholds {
		if item.Strength >= t.Min {
			return e.scale(t.Cost)
		}
	}
	if v, ok := cm.CategoryCosts[item.Tier]; ok && item.Tier != "" {
		return e.scale(v)
	}
	return cm.MinCost
}

func (e *Engine) scale(base int) int {
	v := int(math.Round(float64(base) * e.multiplier))
	if v < e.format.Cost.MinCost {
		v = e.format.Cost.MinCost
	}
	if ceiling := e.format.Cost.MaxCost; ceiling > 0 && v > ceiling {
		v = ceiling
	}
	return v
}

// Validate combines legality and cost for item.
func (e *Engine) Validate(item models.Item) Validation {
	reason, ok := e.legality(item)
	return Validation{
		Legal:  ok,
		Cost:   e.Cost(item),
		Reason: reason,
	}
}

// ValidateRoster checks a full roster against the format and budget. All
// violations are reported.
func (e *Engine) ValidateRoster(items []models.Item, budget int) RosterValidation {
	var errs []string

	validations := lo.Map(items, func(item models.Item, _ int) Validation {
		return e.Validate(item)
	})
	for _, v := range validations {
		if !v.Legal {
			errs = append(errs, v.Reason)
		}
	}

	if e.format.UniquenessClause {
		dupes := lo.FindDuplicatesBy(items, func(item models.Item) string {
			return normalize(item.ID)
		})
		for _, d := range dupes {
			errs = append(errs, fmt.Sprintf("%s appears more than once", displayName(d)))
		}
	}

	if limit := e.format.MaxItemsPerTeam; limit > 0 && len(items) > limit {
		errs = append(errs, fmt.Sprintf("roster has %d items, limit is %d", len(items), limit))
	}

	total := lo.SumBy(validations, func(v Validation) int { return v.Cost })
	if total > budget {
		errs = append(errs, fmt.Sprintf("total cost %d exceeds budget %d", total, budget))
	}

	return RosterValidation{
		Valid:           len(errs) == 0,
		Errors:          errs,
		TotalCost:       total,
		BudgetRemaining: budget - total,
	}
}

func keySet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[normalize(v)] = struct{}{}
	}
	return out
}

func hasKey(set map[string]struct{}, v string) bool {
	if v == "" {
		return false
	}
	_, ok := set[normalize(v)]
	return ok
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func displayName(item models.Item) string {
	if item.Name != "" {
		return item.Name
	}
	return item.ID
}

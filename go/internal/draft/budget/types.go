package budget

// Want is one entry of a team's prioritized want list.
type Want struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	Cost      int    `json:"cost"`
	Available bool   `json:"available"`
	Priority  int    `json:"priority"` // lower is more wanted
}

// WarningKind classifies a budget warning.
type WarningKind string

const (
	WarningOverBudget           WarningKind = "over_budget"
	WarningBudgetTight          WarningKind = "budget_tight"
	WarningInefficient          WarningKind = "inefficient"
	WarningUnavailableExpensive WarningKind = "unavailable_expensive"
)

// Warning is a condition the caller should surface.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
	ItemIDs []string    `json:"item_ids,omitempty"`
}

// SuggestionKind classifies a remediation.
type SuggestionKind string

const (
	SuggestRemove  SuggestionKind = "remove"
	SuggestReorder SuggestionKind = "reorder"
	SuggestAdd     SuggestionKind = "add"
)

// Suggestion is a remediation the caller may offer.
type Suggestion struct {
	Kind    SuggestionKind `json:"kind"`
	Message string         `json:"message"`
	ItemIDs []string       `json:"item_ids,omitempty"`
}

// Report is the outcome of validating a want list against a budget.
type Report struct {
	Remaining      int          `json:"remaining"`
	Affordable     []Want       `json:"affordable"`
	Unaffordable   []Want       `json:"unaffordable"`
	Unavailable    []Want       `json:"unavailable"`
	TotalCost      int          `json:"total_cost"` // available wants only
	AffordableCost int          `json:"affordable_cost"`
	Overage        int          `json:"overage"`
	Utilization    float64      `json:"utilization"` // affordable cost over remaining budget
	Warnings       []Warning    `json:"warnings"`
	Suggestions    []Suggestion `json:"suggestions"`
}

// HasWarning reports whether r carries a warning of kind.
func (r Report) HasWarning(kind WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

// Config holds the thresholds used to classify a want list.
type Config struct {
	TightRatio       float64 // warn when at least this share of the budget is consumed
	InefficientRatio float64 // warn when less than this share is used...
	InefficientSlack int     // ...and more than this much is left over
	ExpensiveRatio   float64 // unavailable items costing at least this share of the budget are flagged
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TightRatio:       0.9,
		InefficientRatio: 0.6,
		InefficientSlack: 20,
		ExpensiveRatio:   0.15,
	}
}

package models

// CostThreshold maps a minimum strength to a base cost.
type CostThreshold struct {
	Min  int `json:"min" yaml:"min"`
	Cost int `json:"cost" yaml:"cost"`
}

// CostModel prices items for a format.
type CostModel struct {
	Overrides     map[string]int  `json:"overrides,omitempty" yaml:"overrides"` // keyed by item id
	Thresholds    []CostThreshold `json:"thresholds,omitempty" yaml:"thresholds"`
	CategoryCosts map[string]int  `json:"category_costs,omitempty" yaml:"category_costs"` // keyed by item tier
	Multiplier    float64         `json:"multiplier,omitempty" yaml:"multiplier"`
	MinCost       int             `json:"min_cost" yaml:"min_cost"`
	MaxCost       int             `json:"max_cost" yaml:"max_cost"`
}

// Format is the immutable ruleset governing a draft.
type Format struct {
	ID                 string    `json:"id" yaml:"id"`
	Name               string    `json:"name" yaml:"name"`
	Kind               DraftKind `json:"kind" yaml:"kind"`
	BannedItems        []string  `json:"banned_items,omitempty" yaml:"banned_items"`
	AllowedItems       []string  `json:"allowed_items,omitempty" yaml:"allowed_items"`
	BannedCategories   []string  `json:"banned_categories,omitempty" yaml:"banned_categories"`
	AllowedGenerations []int     `json:"allowed_generations,omitempty" yaml:"allowed_generations"`
	UniquenessClause   bool      `json:"uniqueness_clause" yaml:"uniqueness_clause"`
	MinItemsPerTeam    int       `json:"min_items_per_team,omitempty" yaml:"min_items_per_team"`
	MaxItemsPerTeam    int       `json:"max_items_per_team,omitempty" yaml:"max_items_per_team"`
	Cost               CostModel `json:"cost" yaml:"cost"`
}

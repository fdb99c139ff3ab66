package models

// Item is a draftable entry in the shared pool.
type Item struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Generation int      `json:"generation" yaml:"generation"`
	Categories []string `json:"categories,omitempty" yaml:"categories"` // e.g. legendary, mythical
	Tier       string   `json:"tier,omitempty" yaml:"tier"`
	Strength   int      `json:"strength" yaml:"strength"`
}

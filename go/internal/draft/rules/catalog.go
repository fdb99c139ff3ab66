package rules

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/draftcoord/go/internal/models"
)

// Catalog is the on-disk definition of formats and the item pool.
type Catalog struct {
	Formats []models.Format `yaml:"formats"`
	Items   []models.Item   `yaml:"items"`

	items map[string]models.Item
}

// LoadCatalog decodes a catalog from YAML.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	c.items = make(map[string]models.Item, len(c.Items))
	for _, item := range c.Items {
		if item.ID == "" {
			return nil, fmt.Errorf("catalog item %q has no id", item.Name)
		}
		if _, dup := c.items[item.ID]; dup {
			return nil, fmt.Errorf("catalog item %q defined twice", item.ID)
		}
		c.items[item.ID] = item
	}
	return &c, nil
}

// LoadCatalogFile reads a catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Registry builds a format registry from the catalog.
func (c *Catalog) Registry() (*Registry, error) {
	return NewRegistry(c.Formats...)
}

// Item looks up an item by id.
func (c *Catalog) Item(id string) (models.Item, error) {
	item, ok := c.items[id]
	if !ok {
		return models.Item{}, fmt.Errorf("%w: %q", ErrUnknownItem, id)
	}
	return item, nil
}

package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mcdev12/draftcoord/go/internal/models"
)

// Registry holds the engines for every known format, keyed by format id.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewRegistry returns a registry containing formats.
func NewRegistry(formats ...models.Format) (*Registry, error) {
	r := &Registry{engines: make(map[string]*Engine)}
	for _, f := range formats {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a format. Formats are immutable once registered, so
// registering the same id twice is an error.
func (r *Registry) Register(format models.Format) error {
	engine, err := NewEngine(format)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[format.ID]; exists {
		return fmt.Errorf("format already registered for id %q", format.ID)
	}
	r.engines[format.ID] = engine
	return nil
}

// Engine retrieves the engine for a format id.
func (r *Registry) Engine(id string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, exists := r.engines[id]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, id)
	}
	return engine, nil
}

// IDs returns the registered format ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package sgp4

import (
	"log/slog"
	"sync"
	"time"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/catalog"
)

// cached pairs a propagator with the fetch time of the element set it was
// built from, so a superseding fetch invalidates it.
type cached struct {
	prop      *Propagator
	fetchedAt time.Time
}

// Cache holds initialized propagators keyed by catalog identifier. SGP4
// initialization is the expensive half of a propagation call; the broadcast
// loop reuses the same propagator every tick until the element set changes.
// Safe for concurrent use.
type Cache struct {
	mu     sync.Mutex
	props  map[int]cached
	logger *slog.Logger
}

// NewCache creates an empty propagator cache.
func NewCache(logger *slog.Logger) *Cache {
	return &Cache{
		props:  make(map[int]cached),
		logger: logger,
	}
}

// For returns a propagator for the element set, initializing one if the set
// is new or has been superseded by a later fetch.
func (c *Cache) For(set catalog.ElementSet) (*Propagator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.props[set.NoradID]; ok && entry.fetchedAt.Equal(set.FetchedAt) {
		return entry.prop, nil
	}

	prop, err := New(set)
	if err != nil {
		return nil, err
	}

	c.props[set.NoradID] = cached{prop: prop, fetchedAt: set.FetchedAt}
	c.logger.Debug("sgp4 propagator initialized",
		"norad_id", set.NoradID,
		"element_set_fetched_at", set.FetchedAt.UTC().Format(time.RFC3339),
	)
	return prop, nil
}

// Size returns the number of cached propagators.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.props)
}

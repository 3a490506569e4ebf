// Package catalog fetches, caches, and persists named groups of orbital
// element sets. It is the resilience layer between the network source and
// every consumer: reads are served from memory while fresh, refreshes retry
// with a fixed backoff, and a source outage degrades to stale data instead
// of failing the caller.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/metrics"
)

var tracer = otel.Tracer("internal/catalog")

// Config holds catalog cache configuration.
type Config struct {
	BaseURL       string        // source base URL ("" = CelesTrak)
	CacheDir      string        // per-group persistence directory
	Freshness     time.Duration // in-memory entries younger than this skip the network (default 2h)
	Attempts      int           // network attempts per refresh (default 3)
	RetryInterval time.Duration // fixed wait between attempts (default 2s)
	Timeout       time.Duration // per-attempt HTTP timeout (default 10s)
}

func (c *Config) applyDefaults() {
	if c.Freshness <= 0 {
		c.Freshness = 2 * time.Hour
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 2 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// Cache is the two-tier (memory + disk) element-set cache. Safe for
// concurrent use; refreshes of the same group are serialized, refreshes of
// different groups proceed independently.
type Cache struct {
	cfg     Config
	fetcher *Fetcher
	store   *Store
	logger  *slog.Logger

	mu     sync.RWMutex
	groups map[string]*GroupEntry

	refreshMu sync.Mutex
	refresh   map[string]*sync.Mutex

	persist sync.WaitGroup
}

// NewCache constructs a catalog cache. Call LoadFromDisk afterwards to
// restore persisted groups.
func NewCache(cfg Config, logger *slog.Logger) *Cache {
	cfg.applyDefaults()
	return &Cache{
		cfg:     cfg,
		fetcher: NewFetcher(cfg.BaseURL, cfg.Timeout),
		store:   NewStore(cfg.CacheDir),
		logger:  logger,
		groups:  make(map[string]*GroupEntry),
		refresh: make(map[string]*sync.Mutex),
	}
}

// LoadFromDisk restores every persisted group entry into memory, keeping the
// original refresh timestamps so freshness survives a restart.
func (c *Cache) LoadFromDisk() error {
	entries, err := c.store.LoadAll()
	if err != nil {
		return err
	}

	c.mu.Lock()
	for _, entry := range entries {
		c.groups[entry.Group] = entry
		metrics.SetCatalogEntries(entry.Group, len(entry.Sets))
	}
	c.mu.Unlock()

	for _, entry := range entries {
		c.logger.Info("catalog group restored from disk",
			"group", entry.Group,
			"sets", len(entry.Sets),
			"refreshed_at", entry.RefreshedAt.UTC().Format(time.RFC3339),
		)
	}
	return nil
}

// FetchGroup returns the element sets for a named group, truncated to limit
// when limit > 0. A fresh in-memory entry is returned without network
// access. Otherwise the source is refreshed with the configured attempt
// budget; on total failure the stale entry (any age) is returned if one
// exists, else an empty result with ErrRateLimited or ErrSourceUnavailable.
func (c *Cache) FetchGroup(ctx context.Context, group string, limit int) ([]ElementSet, error) {
	group = strings.ToLower(strings.TrimSpace(group))

	if entry := c.lookup(group); entry != nil && entry.Age() < c.cfg.Freshness {
		metrics.IncCatalogCacheHit("fresh")
		return truncate(entry.Sets, limit), nil
	}

	// Serialize refreshes of this group so concurrent callers produce one
	// network fetch, not a stampede.
	gm := c.groupMutex(group)
	gm.Lock()
	defer gm.Unlock()

	if entry := c.lookup(group); entry != nil && entry.Age() < c.cfg.Freshness {
		metrics.IncCatalogCacheHit("fresh")
		return truncate(entry.Sets, limit), nil
	}

	entry, err := c.refreshGroup(ctx, group)
	if err == nil {
		return truncate(entry.Sets, limit), nil
	}

	if stale := c.lookup(group); stale != nil {
		metrics.IncCatalogCacheHit("stale")
		c.logger.Warn("catalog refresh failed, serving stale entry",
			"group", group,
			"age_seconds", int(stale.Age().Seconds()),
			"error", err,
		)
		return truncate(stale.Sets, limit), nil
	}

	return nil, err
}

// FetchByID returns the element set for a single catalog identifier. Every
// cached group is scanned first; the network point lookup runs only on a
// full miss, with the same retry and terminal-on-forbidden policy as group
// refreshes.
func (c *Cache) FetchByID(ctx context.Context, noradID int) (ElementSet, error) {
	c.mu.RLock()
	for _, entry := range c.groups {
		for _, set := range entry.Sets {
			if set.NoradID == noradID {
				c.mu.RUnlock()
				metrics.IncCatalogCacheHit("scan")
				return set, nil
			}
		}
	}
	c.mu.RUnlock()

	ctx, span := tracer.Start(ctx, "catalog.FetchByID")
	span.SetAttributes(attribute.Int("norad_id", noradID))
	defer span.End()

	var data []byte
	err := c.withRetry(ctx, func() error {
		b, err := c.fetcher.FetchByID(ctx, noradID)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return ElementSet{}, err
	}

	sets, err := Parse(bytes.NewReader(data), time.Now().UTC(), c.logger)
	if err != nil {
		return ElementSet{}, fmt.Errorf("%w: parsing point lookup: %v", ErrSourceUnavailable, err)
	}
	if len(sets) == 0 {
		return ElementSet{}, fmt.Errorf("%w: NORAD %d", ErrNotFound, noradID)
	}
	return sets[0], nil
}

// refreshGroup fetches, parses, stores, and persists one group. Caller holds
// the group's refresh mutex.
func (c *Cache) refreshGroup(ctx context.Context, group string) (*GroupEntry, error) {
	ctx, span := tracer.Start(ctx, "catalog.refreshGroup")
	span.SetAttributes(attribute.String("group", group))
	defer span.End()

	var data []byte
	err := c.withRetry(ctx, func() error {
		b, err := c.fetcher.FetchGroup(ctx, group)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sets, err := Parse(bytes.NewReader(data), now, c.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing group %q: %v", ErrSourceUnavailable, group, err)
	}

	entry := &GroupEntry{Group: group, Sets: sets, RefreshedAt: now}

	c.mu.Lock()
	c.groups[group] = entry
	c.mu.Unlock()

	metrics.SetCatalogEntries(group, len(sets))
	c.logger.Info("catalog group refreshed", "group", group, "sets", len(sets))

	// Persistence is fire-and-forget for the caller: a write failure must
	// not fail the fetch that produced the data. The write is still tracked
	// so Close can drain it before the process exits.
	c.persist.Add(1)
	go func(entry *GroupEntry) {
		defer c.persist.Done()
		if err := c.store.Save(entry); err != nil {
			c.logger.Warn("catalog persistence failed", "group", entry.Group, "error", err)
		}
	}(entry)

	return entry, nil
}

// withRetry runs op under the configured attempt budget with a fixed wait
// between attempts. A rate-limited response is terminal: it stops retrying
// immediately and surfaces as ErrRateLimited.
func (c *Cache) withRetry(ctx context.Context, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil {
			metrics.IncCatalogFetch("success")
			return nil
		}
		if errors.Is(err, ErrRateLimited) {
			metrics.IncCatalogFetch("rate_limited")
			return backoff.Permanent(err)
		}
		metrics.IncCatalogFetch("error")
		c.logger.Warn("catalog fetch attempt failed", "error", err)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryInterval), uint64(c.cfg.Attempts-1)),
		ctx,
	)

	if err := backoff.Retry(wrapped, policy); err != nil {
		if errors.Is(err, ErrRateLimited) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return nil
}

// Close waits for in-flight persistence writes to finish. The cache stays
// usable afterwards; call it on shutdown (or test teardown) so no write
// outlives the cache directory.
func (c *Cache) Close() {
	c.persist.Wait()
}

// Groups returns the names of all currently cached groups.
func (c *Cache) Groups() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.groups))
	for name := range c.groups {
		names = append(names, name)
	}
	return names
}

func (c *Cache) lookup(group string) *GroupEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.groups[group]
}

func (c *Cache) groupMutex(group string) *sync.Mutex {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	m, ok := c.refresh[group]
	if !ok {
		m = &sync.Mutex{}
		c.refresh[group] = m
	}
	return m
}

func truncate(sets []ElementSet, limit int) []ElementSet {
	if limit > 0 && limit < len(sets) {
		return sets[:limit]
	}
	return sets
}

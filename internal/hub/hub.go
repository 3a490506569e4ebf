// Package hub fans out live satellite position updates to many concurrent
// subscribers while computing each tracked satellite's position exactly once
// per tick, no matter how many connections track it.
//
// A single shared polling loop runs only while at least one connection
// exists: it starts on first connect, checks for an empty subscription map
// once per tick, and stops itself when the map drains. A later connect
// starts a fresh loop.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/metrics"
)

var tracer = otel.Tracer("internal/hub")

// SatelliteUpdate is one satellite's instantaneous inertial state.
type SatelliteUpdate struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Position  [3]float64 `json:"position"` // km, inertial
	Velocity  [3]float64 `json:"velocity"` // km/s, inertial
	Timestamp string     `json:"timestamp"`
}

// Message is one per-tick batch delivered to a subscriber. Connections whose
// filtered set is empty for a tick receive no message at all.
type Message struct {
	Type       string            `json:"type"`
	Timestamp  string            `json:"timestamp"`
	Satellites []SatelliteUpdate `json:"satellites"`
}

// PositionSource resolves a tracked identifier to its state at an instant.
// The production source chains the catalog cache and the propagation kernel;
// tests substitute a counting stub.
type PositionSource interface {
	PositionAt(ctx context.Context, noradID int, t time.Time) (SatelliteUpdate, error)
}

// Config holds hub configuration.
type Config struct {
	Interval time.Duration // poll interval (default 1s)
	Buffer   int           // per-subscriber channel capacity (default 8)
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.Buffer <= 0 {
		c.Buffer = 8
	}
}

type subscriber struct {
	id      string
	tracked map[int]struct{}
	ch      chan Message
	done    chan struct{}
}

// Hub owns the subscription map and the shared polling loop.
type Hub struct {
	cfg    Config
	source PositionSource
	logger *slog.Logger

	mu      sync.Mutex
	subs    map[string]*subscriber
	running bool
}

// New creates a hub. The loop does not run until the first connection.
func New(cfg Config, source PositionSource, logger *slog.Logger) *Hub {
	cfg.applyDefaults()
	return &Hub{
		cfg:    cfg,
		source: source,
		logger: logger,
		subs:   make(map[string]*subscriber),
	}
}

// Connect registers a new connection and returns its identifier and message
// channel. Starting the loop is idempotent: a connect while the loop already
// runs changes nothing.
func (h *Hub) Connect() (string, <-chan Message) {
	sub := &subscriber{
		id:      uuid.NewString(),
		tracked: make(map[int]struct{}),
		ch:      make(chan Message, h.cfg.Buffer),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	count := len(h.subs)
	if !h.running {
		h.running = true
		go h.loop()
	}
	h.mu.Unlock()

	metrics.SetHubConnections(count)
	h.logger.Info("hub connection opened", "connection_id", sub.id, "connections", count)
	return sub.id, sub.ch
}

// Disconnect removes a connection and its subscription wholesale.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	sub, ok := h.subs[connID]
	if ok {
		delete(h.subs, connID)
		close(sub.done)
	}
	count := len(h.subs)
	h.mu.Unlock()

	if ok {
		metrics.SetHubConnections(count)
		h.logger.Info("hub connection closed", "connection_id", connID, "connections", count)
	}
}

// Track adds one identifier to a connection's tracked set.
func (h *Hub) Track(connID string, noradID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[connID]; ok {
		sub.tracked[noradID] = struct{}{}
	}
}

// Untrack removes one identifier from a connection's tracked set.
func (h *Hub) Untrack(connID string, noradID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[connID]; ok {
		delete(sub.tracked, noradID)
	}
}

// SetTracked replaces a connection's tracked set.
func (h *Hub) SetTracked(connID string, noradIDs []int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[connID]; ok {
		tracked := make(map[int]struct{}, len(noradIDs))
		for _, id := range noradIDs {
			tracked[id] = struct{}{}
		}
		sub.tracked = tracked
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Running reports whether the polling loop is currently alive.
func (h *Hub) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *Hub) loop() {
	h.logger.Info("hub broadcast loop started", "interval", h.cfg.Interval.String())

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for range ticker.C {
		if !h.tick() {
			h.logger.Info("hub broadcast loop stopped: no active connections")
			return
		}
	}
}

// tickSnapshot is one connection's membership as observed at tick start.
type tickSnapshot struct {
	sub     *subscriber
	tracked []int
}

// tick runs one broadcast iteration. Returns false when the subscription map
// is empty, which stops the loop.
func (h *Hub) tick() bool {
	h.mu.Lock()
	if len(h.subs) == 0 {
		h.running = false
		h.mu.Unlock()
		return false
	}

	// Consistent snapshot: mutations landing after this point are picked up
	// by the next tick.
	snapshot := make([]tickSnapshot, 0, len(h.subs))
	for _, sub := range h.subs {
		ids := make([]int, 0, len(sub.tracked))
		for id := range sub.tracked {
			ids = append(ids, id)
		}
		snapshot = append(snapshot, tickSnapshot{sub: sub, tracked: ids})
	}
	h.mu.Unlock()

	metrics.IncHubTick()

	union := make(map[int]struct{})
	for _, snap := range snapshot {
		for _, id := range snap.tracked {
			union[id] = struct{}{}
		}
	}
	if len(union) == 0 {
		return true
	}

	now := time.Now().UTC()
	updates := h.computeAll(union, now)

	for _, snap := range snapshot {
		batch := make([]SatelliteUpdate, 0, len(snap.tracked))
		for _, id := range snap.tracked {
			if u, ok := updates[id]; ok {
				batch = append(batch, u)
			}
		}
		if len(batch) == 0 {
			continue
		}

		msg := Message{
			Type:       "position_update",
			Timestamp:  now.Format(time.RFC3339),
			Satellites: batch,
		}

		select {
		case snap.sub.ch <- msg:
		case <-snap.sub.done:
			// Already disconnected; nothing to clean up.
		default:
			// Buffer full: the consumer is stuck or gone. Drop it and keep
			// the tick going for everyone else.
			metrics.IncHubDrop("send_failed")
			h.logger.Warn("hub dropping unresponsive connection", "connection_id", snap.sub.id)
			h.Disconnect(snap.sub.id)
		}
	}

	return true
}

// computeAll resolves every identifier in the union exactly once, each in
// its own goroutine bounded by a per-tick deadline so one stuck fetch cannot
// hold back positions already computed for the others.
func (h *Hub) computeAll(union map[int]struct{}, now time.Time) map[int]SatelliteUpdate {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Interval)
	defer cancel()

	ctx, span := tracer.Start(ctx, "hub.tick")
	defer span.End()

	start := time.Now()
	updates := make(map[int]SatelliteUpdate, len(union))
	var umu sync.Mutex
	var wg sync.WaitGroup

	for id := range union {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			u, err := h.source.PositionAt(ctx, id, now)
			if err != nil {
				h.logger.Debug("hub position computation failed", "norad_id", id, "error", err)
				return
			}
			umu.Lock()
			updates[id] = u
			umu.Unlock()
		}(id)
	}
	wg.Wait()

	metrics.ObserveHubTickDuration(time.Since(start))
	return updates
}

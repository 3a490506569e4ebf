package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// countingSource records how many times each identifier is resolved.
type countingSource struct {
	mu    sync.Mutex
	calls map[int]int
	fail  map[int]bool
}

func newCountingSource() *countingSource {
	return &countingSource{calls: make(map[int]int), fail: make(map[int]bool)}
}

func (s *countingSource) PositionAt(_ context.Context, noradID int, t time.Time) (SatelliteUpdate, error) {
	s.mu.Lock()
	s.calls[noradID]++
	fail := s.fail[noradID]
	s.mu.Unlock()

	if fail {
		return SatelliteUpdate{}, errors.New("kernel failure")
	}
	return SatelliteUpdate{
		ID:        noradID,
		Name:      fmt.Sprintf("SAT-%d", noradID),
		Position:  [3]float64{6778, 0, 0},
		Velocity:  [3]float64{0, 7.6, 0},
		Timestamp: t.Format(time.RFC3339),
	}, nil
}

func (s *countingSource) count(noradID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[noradID]
}

func testInterval() time.Duration { return 20 * time.Millisecond }

func newTestHub(src PositionSource) *Hub {
	return New(Config{Interval: testInterval()}, src, testLogger())
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHubDeliversUpdates(t *testing.T) {
	h := newTestHub(newCountingSource())

	connID, msgs := h.Connect()
	defer h.Disconnect(connID)
	h.SetTracked(connID, []int{25544})

	select {
	case msg := <-msgs:
		if msg.Type != "position_update" {
			t.Errorf("type = %q, want position_update", msg.Type)
		}
		if len(msg.Satellites) != 1 || msg.Satellites[0].ID != 25544 {
			t.Errorf("satellites = %+v, want single 25544", msg.Satellites)
		}
		if msg.Timestamp == "" || msg.Satellites[0].Timestamp == "" {
			t.Error("missing timestamps")
		}
	case <-time.After(time.Second):
		t.Fatal("no message within a second")
	}
}

// TestHubComputesOncePerIdentifier is the core sharing property: overlapping
// subscriptions must not multiply position computations.
func TestHubComputesOncePerIdentifier(t *testing.T) {
	src := newCountingSource()
	h := newTestHub(src)

	a, msgsA := h.Connect()
	b, msgsB := h.Connect()
	h.SetTracked(a, []int{1, 2})
	h.SetTracked(b, []int{2, 3})

	// Drain both connections so buffers never fill.
	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, ch := range []<-chan Message{msgsA, msgsB} {
		wg.Add(1)
		go func(ch <-chan Message) {
			defer wg.Done()
			for {
				select {
				case <-ch:
				case <-done:
					return
				}
			}
		}(ch)
	}

	waitFor(t, time.Second, func() bool { return src.count(2) >= 5 }, "hub never ticked 5 times")
	h.Disconnect(a)
	h.Disconnect(b)
	close(done)
	wg.Wait()

	// Identifier 2 is tracked by both connections but resolved once per
	// tick, so its count matches the singly-tracked identifiers within a
	// tick of slop.
	c1, c2, c3 := src.count(1), src.count(2), src.count(3)
	if diff := c2 - c1; diff < -1 || diff > 1 {
		t.Errorf("calls: id1=%d id2=%d; overlap must not double-compute", c1, c2)
	}
	if diff := c2 - c3; diff < -1 || diff > 1 {
		t.Errorf("calls: id3=%d id2=%d; overlap must not double-compute", c3, c2)
	}
}

func TestHubLoopStopsWhenEmptyAndRestarts(t *testing.T) {
	h := newTestHub(newCountingSource())

	connID, _ := h.Connect()
	if !h.Running() {
		t.Fatal("loop should run after first connect")
	}

	h.Disconnect(connID)
	waitFor(t, time.Second, func() bool { return !h.Running() },
		"loop should stop once the last connection is gone")

	// A new connection restarts the loop.
	connID2, msgs := h.Connect()
	defer h.Disconnect(connID2)
	if !h.Running() {
		t.Fatal("loop should restart on connect")
	}

	h.SetTracked(connID2, []int{7})
	select {
	case <-msgs:
	case <-time.After(time.Second):
		t.Fatal("restarted loop never delivered")
	}
}

func TestHubConnectIdempotentLoopStart(t *testing.T) {
	h := newTestHub(newCountingSource())

	var ids []string
	for i := 0; i < 4; i++ {
		id, _ := h.Connect()
		ids = append(ids, id)
	}
	if h.ConnectionCount() != 4 {
		t.Errorf("connections = %d, want 4", h.ConnectionCount())
	}
	if !h.Running() {
		t.Error("loop should be running")
	}

	for _, id := range ids {
		h.Disconnect(id)
	}
	waitFor(t, time.Second, func() bool { return !h.Running() }, "loop should stop")
}

func TestHubEmptyTrackedSetIsSilent(t *testing.T) {
	h := newTestHub(newCountingSource())

	connID, msgs := h.Connect()
	defer h.Disconnect(connID)

	select {
	case msg := <-msgs:
		t.Fatalf("unexpected message %+v for empty tracked set", msg)
	case <-time.After(5 * testInterval()):
	}
}

func TestHubFailedComputationOmitted(t *testing.T) {
	src := newCountingSource()
	src.fail[9] = true
	h := newTestHub(src)

	connID, msgs := h.Connect()
	defer h.Disconnect(connID)
	h.SetTracked(connID, []int{1, 9})

	select {
	case msg := <-msgs:
		if len(msg.Satellites) != 1 || msg.Satellites[0].ID != 1 {
			t.Errorf("satellites = %+v, want only the healthy id 1", msg.Satellites)
		}
	case <-time.After(time.Second):
		t.Fatal("no message; a failing satellite must not silence the batch")
	}
}

func TestHubDropsStuckConnection(t *testing.T) {
	h := New(Config{Interval: testInterval(), Buffer: 1}, newCountingSource(), testLogger())

	// Never read from the channel: once the buffer fills, the hub must
	// remove the connection rather than stall the tick.
	connID, _ := h.Connect()
	h.SetTracked(connID, []int{1})

	waitFor(t, time.Second, func() bool { return h.ConnectionCount() == 0 },
		"stuck connection never removed")
}

func TestHubTrackUntrack(t *testing.T) {
	h := newTestHub(newCountingSource())

	connID, msgs := h.Connect()
	defer h.Disconnect(connID)
	h.Track(connID, 1)

	// Drain until we see id 2 after tracking it mid-stream: the mutation
	// must not be lost even though a tick may be in flight.
	h.Track(connID, 2)

	waitFor(t, time.Second, func() bool {
		select {
		case msg := <-msgs:
			for _, s := range msg.Satellites {
				if s.ID == 2 {
					return true
				}
			}
		default:
		}
		return false
	}, "tracked id 2 never appeared in a batch")

	h.Untrack(connID, 1)
	h.Untrack(connID, 2)

	// After untracking everything the stream goes quiet.
	drainUntilSilent(t, msgs)
}

func drainUntilSilent(t *testing.T, msgs <-chan Message) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	quiet := 0
	for time.Now().Before(deadline) {
		select {
		case <-msgs:
			quiet = 0
		case <-time.After(3 * testInterval()):
			quiet++
			if quiet >= 2 {
				return
			}
		}
	}
	t.Fatal("stream never went quiet after untracking")
}

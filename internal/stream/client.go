package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/hub"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/metrics"
)

// perWriteDeadline bounds each individual SSE write. The connection itself
// carries no deadline; a stalled client is detected on the next write.
const perWriteDeadline = 30 * time.Second

// client is the write side of one SSE connection. It frames hub position
// batches as data: events and keeps per-connection delivery counters for the
// disconnect log.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// sendBatch frames one hub position batch as an SSE data event.
func (c *client) sendBatch(msg hub.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding position batch: %w", err)
	}
	if err := c.write("data: " + string(data) + "\n\n"); err != nil {
		return err
	}
	c.messagesSent++
	metrics.IncStreamMessages()
	return nil
}

// sendKeepalive writes an SSE comment line so idle connections stay open
// through proxies.
func (c *client) sendKeepalive() error {
	return c.write(":\n\n")
}

// write pushes one frame under a fresh write deadline and flushes it out.
func (c *client) write(frame string) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(perWriteDeadline)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := fmt.Fprint(c.w, frame)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()

	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))
	return nil
}

// Package metrics registers Prometheus instrumentation for the service:
// HTTP request metrics plus counters and gauges for the catalog cache, the
// propagation kernel, the broadcast hub, and the SSE stream layer.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satctl_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satctl_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	catalogFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satctl_catalog_fetches_total",
			Help: "Catalog source fetch attempts by outcome (success, error, rate_limited).",
		},
		[]string{"outcome"},
	)

	catalogCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satctl_catalog_cache_hits_total",
			Help: "Catalog reads served without a network call (fresh, stale, scan).",
		},
		[]string{"kind"},
	)

	catalogEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satctl_catalog_entries",
			Help: "Element sets currently cached per group.",
		},
		[]string{"group"},
	)

	kernelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satctl_kernel_calls_total",
			Help: "Propagation kernel invocations by outcome.",
		},
		[]string{"outcome"},
	)

	hubConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satctl_hub_connections",
			Help: "Active broadcast hub subscriptions.",
		},
	)

	hubTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satctl_hub_ticks_total",
			Help: "Broadcast loop ticks executed.",
		},
	)

	hubDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satctl_hub_drops_total",
			Help: "Connections dropped by the broadcast loop, by reason.",
		},
		[]string{"reason"},
	)

	hubTickDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satctl_hub_tick_duration_seconds",
			Help:    "Duration of one broadcast tick's computation phase.",
			Buckets: prometheus.DefBuckets,
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satctl_stream_connections_total",
			Help: "SSE stream connect/disconnect events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satctl_streams_active",
			Help: "Currently open SSE streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satctl_stream_messages_total",
			Help: "SSE data messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satctl_stream_bytes_total",
			Help: "Bytes written to SSE streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satctl_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		catalogFetchesTotal,
		catalogCacheHitsTotal,
		catalogEntries,
		kernelCallsTotal,
		hubConnections,
		hubTicksTotal,
		hubDropsTotal,
		hubTickDurationSeconds,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncCatalogFetch records one network fetch attempt outcome.
func IncCatalogFetch(outcome string) { catalogFetchesTotal.WithLabelValues(outcome).Inc() }

// IncCatalogCacheHit records a read served from cache without network access.
func IncCatalogCacheHit(kind string) { catalogCacheHitsTotal.WithLabelValues(kind).Inc() }

// SetCatalogEntries publishes the element-set count for a group.
func SetCatalogEntries(group string, n int) { catalogEntries.WithLabelValues(group).Set(float64(n)) }

// IncKernelCall records a propagation kernel invocation outcome.
func IncKernelCall(outcome string) { kernelCallsTotal.WithLabelValues(outcome).Inc() }

// SetHubConnections publishes the active subscription count.
func SetHubConnections(n int) { hubConnections.Set(float64(n)) }

// IncHubTick counts one broadcast loop tick.
func IncHubTick() { hubTicksTotal.Inc() }

// IncHubDrop counts a connection removed by the broadcast loop.
func IncHubDrop(reason string) { hubDropsTotal.WithLabelValues(reason).Inc() }

// ObserveHubTickDuration records the computation time of one tick.
func ObserveHubTickDuration(d time.Duration) { hubTickDurationSeconds.Observe(d.Seconds()) }

// IncStreamConnections records a stream connect or disconnect event.
func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }

// IncStreamsActive increments the active stream gauge.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive decrements the active stream gauge.
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamMessages counts one SSE data message.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// AddStreamBytes adds to the SSE byte counter.
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamErrors counts an SSE error by reason.
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// knownRoutes are exact paths recorded as-is in HTTP metric labels.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/transform":        true,
	"/api/v1/frames":           true,
	"/api/v1/groups":           true,
	"/api/v1/satellites":       true,
	"/api/v1/passes":           true,
	"/api/v1/stream/positions": true,
}

// normalizeRoute collapses parameterized and unknown paths so HTTP metric
// label cardinality stays bounded regardless of what clients request.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if strings.HasPrefix(path, "/api/v1/satellites/") {
		switch {
		case strings.HasSuffix(path, "/orbit"):
			return "/api/v1/satellites/{norad_id}/orbit"
		case strings.HasSuffix(path, "/azel"):
			return "/api/v1/satellites/{norad_id}/azel"
		}
		return "/api/v1/satellites/{norad_id}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the middleware chain.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

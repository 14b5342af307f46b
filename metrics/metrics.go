package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method, and path
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finbotctf_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finbotctf_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)

	// RequestInProgress counts HTTP requests currently being processed
	RequestInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finbotctf_http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method", "path"},
	)

	// RateLimiterRejections counts rejected requests due to rate limiting
	RateLimiterRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finbotctf_rate_limiter_rejections_total",
			Help: "Total number of requests rejected by rate limiter",
		},
		[]string{"ip"},
	)

	// DatabaseOperationDuration measures database operation duration
	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finbotctf_db_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// ScoreEventsTotal counts appended score ledger events by reason
	ScoreEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finbotctf_score_events_total",
			Help: "Total number of score ledger events appended",
		},
		[]string{"reason"},
	)

	// ChallengeCompletions counts challenge completions by challenge id
	ChallengeCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finbotctf_challenge_completions_total",
			Help: "Total number of challenge completions",
		},
		[]string{"challenge"},
	)

	// BadgesAwarded counts badge awards by badge id and rarity
	BadgesAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finbotctf_badges_awarded_total",
			Help: "Total number of badges awarded",
		},
		[]string{"badge", "rarity"},
	)

	// EventsProcessed counts stream events consumed by stream and outcome
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finbotctf_stream_events_processed_total",
			Help: "Total number of stream events processed",
		},
		[]string{"stream", "outcome"},
	)

	// WebsocketConnections tracks currently open websocket connections
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "finbotctf_websocket_connections",
			Help: "Number of open websocket connections",
		},
	)

	// WebsocketDroppedEvents counts events dropped on slow websocket clients
	WebsocketDroppedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finbotctf_websocket_dropped_events_total",
			Help: "Total number of events dropped due to slow websocket consumers",
		},
	)

	// MemoryStats tracks memory usage stats
	MemoryStats = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finbotctf_memory_stats_bytes",
			Help: "Memory statistics in bytes",
		},
		[]string{"type"},
	)

	// GoroutineCount tracks the number of goroutines
	GoroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "finbotctf_goroutine_count",
			Help: "Number of goroutines",
		},
	)
)

// RecordDBOperation records the duration of a database operation
func RecordDBOperation(operation string, table string, startTime time.Time) {
	duration := time.Since(startTime).Seconds()
	DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waymark_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waymark_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	AccountsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waymark_accounts_registered_total",
			Help: "Total accounts registered",
		},
	)

	MessagesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waymark_messages_written_total",
			Help: "Total messages written",
		},
	)

	MessagesErased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waymark_messages_erased_total",
			Help: "Total messages erased by their authors",
		},
	)

	VotesCast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waymark_votes_cast_total",
			Help: "Total votes cast",
		},
		[]string{"direction"}, // "up" or "down"
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waymark_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Client engine metrics
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waymark_fetches_total",
			Help: "Total location fetches by result",
		},
		[]string{"result"}, // "ok", "error", "stale"
	)

	MarkersSpawned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waymark_markers_spawned_total",
			Help: "Total native markers spawned",
		},
	)

	MarkerRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waymark_marker_retries_total",
			Help: "Total transient native failures while spawning or despawning markers",
		},
	)

	ActorsSpawned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waymark_actors_spawned_total",
			Help: "Total gesture actors spawned",
		},
	)

	QueueActionsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waymark_queue_actions_skipped_total",
			Help: "Total queue actions dropped after exhausting their retry budget",
		},
	)
)

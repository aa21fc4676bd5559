package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure|unverified).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogdesk_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// APIRequests counts handled HTTP requests.
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogdesk_api_requests_total",
			Help: "Total number of handled API requests",
		},
		[]string{"method", "path", "status"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blogdesk_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestsInFlight tracks requests currently being served.
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blogdesk_api_requests_in_flight",
			Help: "Requests currently being served",
		},
	)

	// RecoveredPanics counts handler panics turned into 500 responses.
	RecoveredPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogdesk_api_recovered_panics_total",
			Help: "Handler panics recovered by the HTTP stack",
		},
		[]string{"path"},
	)

	// CacheLookups counts snapshot reads by key and result (hit|miss|error).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogdesk_cache_lookups_total",
			Help: "Cache lookups by key and result",
		},
		[]string{"key", "result"},
	)

	// CacheRefreshes counts full collection reloads by result (success|failure|coalesced).
	CacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogdesk_cache_refresh_total",
			Help: "Full collection cache reloads",
		},
		[]string{"collection", "result"},
	)

	// ScheduledJobRuns counts scheduler job executions by outcome (success|failure|panic).
	ScheduledJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogdesk_scheduled_job_runs_total",
			Help: "Scheduled job executions",
		},
		[]string{"job", "result"},
	)

	BlogsCreatedToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blogdesk_blogs_created_today",
			Help: "Blogs created since local midnight, as of the last count job",
		},
	)

	BlogsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blogdesk_blogs_total",
			Help: "All-time blog count, as of the last count job",
		},
	)

	UsersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blogdesk_users_total",
			Help: "User count, as of the last count job",
		},
	)
)

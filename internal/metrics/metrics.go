package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP server metrics (health, metrics and the OAuth callback).
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mjpin_http_requests_total",
		Help: "Total HTTP requests by route, method, and status code",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mjpin_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"route", "method"})
)

// Bot metrics.
var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mjpin_commands_total",
		Help: "Slash command invocations by command and result",
	}, []string{"command", "result"})

	CommandThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mjpin_command_throttled_total",
		Help: "Commands rejected by the per-user throttle",
	})

	PinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mjpin_pins_total",
		Help: "Pin attempts by result",
	}, []string{"result"})

	PinQuotaDenials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mjpin_pin_quota_denials_total",
		Help: "Pins refused because the account hit its rolling quota",
	})

	HistoryPagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mjpin_history_pages_fetched_total",
		Help: "Channel history pages fetched while scanning",
	})

	HistoryScanErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mjpin_history_scan_errors_total",
		Help: "Channel history fetches that failed",
	})

	GatherMatches = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mjpin_gather_matches",
		Help:    "Number of message IDs returned by /gather",
		Buckets: []float64{0, 1, 2, 5, 10},
	})
)

// External API metrics.
var (
	PinterestAPICallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mjpin_pinterest_api_calls_total",
		Help: "Pinterest API calls by endpoint and result",
	}, []string{"endpoint", "result"})

	PinterestAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mjpin_pinterest_api_duration_seconds",
		Help:    "Pinterest API call duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"endpoint"})

	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mjpin_llm_call_duration_seconds",
		Help:    "LLM completion call duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"provider"})
)

// Database pool metrics (gauges updated periodically, postgres store only).
var (
	DBPoolTotalConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mjpin_db_pool_total_conns",
		Help: "Total number of connections in the pool",
	})

	DBPoolIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mjpin_db_pool_idle_conns",
		Help: "Number of idle connections in the pool",
	})

	DBPoolAcquiredConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mjpin_db_pool_acquired_conns",
		Help: "Number of acquired connections in the pool",
	})

	DBPoolMaxConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mjpin_db_pool_max_conns",
		Help: "Max connections configured for the pool",
	})
)

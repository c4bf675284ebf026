// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crowdlike"

var (
	// TradesTotal counts trade commands by direction and outcome
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trades_total",
		Help:      "Trades processed by type and result",
	}, []string{"type", "result"})

	// SafetyExitsTotal counts forced liquidations by trigger
	SafetyExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "safety_exits_total",
		Help:      "Safety exits triggered by exit type",
	}, []string{"type"})

	// MarketRefreshTotal counts refreshes by the source that served them
	MarketRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "market_refresh_total",
		Help:      "Market data refreshes by source (live, cache, mock)",
	}, []string{"source"})

	// MarketRefreshDiscarded counts refresh results superseded by a newer refresh
	MarketRefreshDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "market_refresh_discarded_total",
		Help:      "Stale market refresh results that were discarded",
	})

	// CacheRequests counts market cache lookups by tier and result
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "market_cache_requests_total",
		Help:      "Market cache lookups by tier and result",
	}, []string{"tier", "result"})

	// AgentsGauge tracks agents by owner and status
	AgentsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "agents",
		Help:      "Agents by owner and status",
	}, []string{"owner", "status"})

	// CrowdVolumeGauge tracks total portfolio value of the active crowd
	CrowdVolumeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "crowd_total_volume_usdc",
		Help:      "Total value held by active agents",
	})

	// PipelineDuration times the crowd and leaderboard recompute
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "views_recompute_duration_seconds",
		Help:      "Duration of crowd aggregation and leaderboard ranking",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	// HTTPRequestDuration times API requests
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// WebsocketClients tracks connected stream clients
	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_clients",
		Help:      "Connected websocket clients",
	})

	// WorkerRunsTotal counts background worker cycles
	WorkerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_runs_total",
		Help:      "Background worker runs by worker and result",
	}, []string{"worker", "result"})

	// SnapshotPublishTotal counts snapshot writes to Redis
	SnapshotPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_publish_total",
		Help:      "Snapshot publications by result",
	}, []string{"result"})
)

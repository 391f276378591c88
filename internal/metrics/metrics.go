package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Ledger service calls
	// ============================================
	LedgerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqube_ledger_calls_total",
			Help: "Ledger service calls by service, method and outcome",
		},
		[]string{"service", "method", "outcome"},
	)

	LedgerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iqube_ledger_call_duration_seconds",
			Help:    "Ledger service call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method"},
	)

	LedgerFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqube_ledger_fallbacks_total",
			Help: "Canned payloads substituted for failed ledger calls",
		},
		[]string{"service", "method"},
	)

	// ============================================
	// Status reconciliation
	// ============================================
	StatusLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqube_status_lookups_total",
			Help: "Status lookups by kind and result source",
		},
		[]string{"kind", "source"},
	)

	// ============================================
	// Explorer proxy
	// ============================================
	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqube_proxy_requests_total",
			Help: "Explorer proxy requests by route and response code",
		},
		[]string{"route", "code"},
	)

	ProxyUpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iqube_proxy_upstream_duration_seconds",
			Help:    "Upstream explorer latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// ============================================
	// Bitcoin transactions
	// ============================================
	TransactionsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iqube_btc_transactions_built_total",
		Help: "Bitcoin transactions assembled and signed",
	})

	TransactionsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqube_btc_transactions_broadcast_total",
			Help: "Bitcoin broadcast attempts by outcome",
		},
		[]string{"outcome"},
	)

	FeeRateFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iqube_btc_fee_rate_fallbacks_total",
		Help: "Times the default fee rate was used",
	})

	// ============================================
	// EVM
	// ============================================
	EVMMints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqube_evm_mints_total",
			Help: "EVM mint attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ============================================
	// Events
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "iqube_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqube_events_published_total",
			Help: "Events published by subject and outcome",
		},
		[]string{"subject", "outcome"},
	)
)

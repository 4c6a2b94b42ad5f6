// Package metrics provides Prometheus instrumentation for verichain.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Verification metrics
	verificationTotal     *prometheus.CounterVec
	staleDiscardTotal     prometheus.Counter
	credentialIssueTotal  *prometheus.CounterVec
	credentialRevokeTotal *prometheus.CounterVec

	// Collaborator metrics
	pinningTotal       *prometheus.CounterVec
	ledgerCallDuration *prometheus.HistogramVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	constLabels := prometheus.Labels{"service": svcName}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)

	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "verification_outcome_total",
			Help:        "Total number of completed document lookups by outcome",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)

	staleDiscardTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name:        "verification_stale_discard_total",
			Help:        "Lookup results dropped because the document changed while pending",
			ConstLabels: constLabels,
		},
	)

	credentialIssueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "credential_issue_total",
			Help:        "Total number of credential issuance transactions",
			ConstLabels: constLabels,
		},
		[]string{"type", "status"},
	)

	credentialRevokeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "credential_revoke_total",
			Help:        "Total number of credential revocation transactions",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)

	pinningTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "pinning_request_total",
			Help:        "Total number of requests to the pinning service and gateway",
			ConstLabels: constLabels,
		},
		[]string{"op", "status"},
	)

	ledgerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "ledger_call_duration_seconds",
			Help:        "Latency of contract calls and transaction submissions",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method"},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}

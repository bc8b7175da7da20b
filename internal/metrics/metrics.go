package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Purchase and void outcomes
const (
	OutcomeSuccess           = "success"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeGatewayError      = "gateway_error"
	OutcomeReconcileFailed   = "reconcile_failed"
	OutcomeLedgerFailed      = "ledger_failed"
	OutcomeRejected          = "rejected"
	OutcomePartial           = "partial"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferry_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ferry_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "route"})

	gatewayCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferry_gateway_calls_total",
		Help: "Calls to the reseller API, labeled by operation and result",
	}, []string{"operation", "result"})

	gatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ferry_gateway_call_duration_seconds",
		Help:    "Latency distribution of reseller API calls",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})

	purchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferry_purchases_total",
		Help: "Ticket purchase attempts, labeled by outcome",
	}, []string{"outcome"})

	voidsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferry_voids_total",
		Help: "Void attempts, labeled by outcome",
	}, []string{"outcome"})

	walletLockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ferry_wallet_lock_wait_seconds",
		Help:    "Time spent waiting for the per-wallet purchase lock",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})
)

// ObserveHTTPRequest records one served request
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveGatewayCall records one reseller API call
func ObserveGatewayCall(operation string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayCallsTotal.WithLabelValues(operation, result).Inc()
	gatewayCallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// PurchaseOutcome counts a finished purchase attempt
func PurchaseOutcome(outcome string) {
	purchasesTotal.WithLabelValues(outcome).Inc()
}

// VoidOutcome counts a finished void attempt
func VoidOutcome(outcome string) {
	voidsTotal.WithLabelValues(outcome).Inc()
}

// ObserveLockWait records how long a purchase waited for its wallet lock
func ObserveLockWait(elapsed time.Duration) {
	walletLockWait.Observe(elapsed.Seconds())
}

package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_ledger_operations_total",
			Help: "Ledger-affecting operations by outcome",
		},
		[]string{"operation", "result"},
	)

	BonusClaimedUsdTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rewards_bonus_claimed_usd_total",
			Help: "Total USD paid out as daily bonuses",
		},
	)

	WithdrawalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_withdrawal_requests_total",
			Help: "Withdrawal requests by resulting status",
		},
		[]string{"status"},
	)

	DepositsConfirmedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_deposits_confirmed_total",
			Help: "Confirmed invoice payments by asset",
		},
		[]string{"asset"},
	)

	ExternalRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewards_external_request_duration_seconds",
			Help:    "Latency of calls to the payment processor and rate oracle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)

	RateCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_rate_cache_lookups_total",
			Help: "Rate oracle lookups by cache outcome",
		},
		[]string{"result"},
	)
)

// Result labels shared by the counters above
const (
	ResultOk       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// RecordOperation counts a ledger operation. Errors matching one of the
// expected sentinels count as rejected rather than error.
func RecordOperation(operation string, err error, expected ...error) {
	LedgerOperationsTotal.WithLabelValues(operation, classify(err, expected)).Inc()
}

func classify(err error, expected []error) string {
	if err == nil {
		return ResultOk
	}
	for _, e := range expected {
		if errors.Is(err, e) {
			return ResultRejected
		}
	}
	return ResultError
}

// ObserveExternal records the latency of an outbound call started at start.
func ObserveExternal(service, endpoint string, start time.Time) {
	ExternalRequestDuration.WithLabelValues(service, endpoint).Observe(time.Since(start).Seconds())
}

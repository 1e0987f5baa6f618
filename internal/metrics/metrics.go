// Package metrics exposes Prometheus collectors for ledger operations.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"creditline-backend/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const namespace = "creditline"

var TransactionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "transaction_transitions_total",
	Help:      "Transactions entering each status.",
}, []string{"status"})

var PaymentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "payment",
	Name:      "processor_duration_seconds",
	Help:      "Latency of payment processor calls by method and outcome.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
}, []string{"method", "outcome"})

var CreditsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "credits_moved_total",
	Help:      "Credits added to or removed from customer balances, by reason.",
}, []string{"reason"})

var Activities = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "activity",
	Name:      "recorded_total",
	Help:      "Activities appended, by type and whether they were billed.",
}, []string{"type", "billed"})

var OperatorEarnings = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "activity",
	Name:      "operator_earnings_total",
	Help:      "Commission credited to operators, by activity type.",
}, []string{"type"})

var Chargebacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "chargebacks_total",
	Help:      "Chargebacks opened (pending) and resolved, by status.",
}, []string{"status"})

var Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "rejections_total",
	Help:      "Ledger operations refused by a business rule.",
}, []string{"operation", "reason"})

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route template and status code.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "code"})

var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "jobs",
	Name:      "runs_total",
	Help:      "Scheduled job executions by result.",
}, []string{"job", "result"})

func ObserveTransaction(status domain.TransactionStatus) {
	TransactionTransitions.WithLabelValues(string(status)).Inc()
}

func ObservePayment(method domain.PaymentMethod, outcome string, started time.Time) {
	PaymentDuration.WithLabelValues(string(method), outcome).Observe(time.Since(started).Seconds())
}

func ObserveCredits(reason string, amount decimal.Decimal) {
	CreditsMoved.WithLabelValues(reason).Add(amount.Abs().InexactFloat64())
}

func ObserveActivity(a *domain.Activity) {
	Activities.WithLabelValues(string(a.Type), strconv.FormatBool(a.Billed)).Inc()
	if a.OperatorEarnings.IsPositive() {
		OperatorEarnings.WithLabelValues(string(a.Type)).Add(a.OperatorEarnings.InexactFloat64())
	}
}

func ObserveChargeback(status domain.ChargebackStatus) {
	Chargebacks.WithLabelValues(string(status)).Inc()
}

// ObserveRejection counts err under a stable reason label when it is one of
// the ledger's business-rule errors. Other errors are ignored.
func ObserveRejection(operation string, err error) {
	if reason := RejectionReason(err); reason != "" {
		Rejections.WithLabelValues(operation, reason).Inc()
	}
}

func RejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, domain.ErrNoFreeMessages):
		return "no_free_messages"
	case errors.Is(err, domain.ErrInvalidChargebackAmount):
		return "invalid_chargeback_amount"
	case errors.Is(err, domain.ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, domain.ErrPaymentInProgress):
		return "payment_in_progress"
	case errors.Is(err, domain.ErrChargebackOpen):
		return "chargeback_open"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	}
	return ""
}

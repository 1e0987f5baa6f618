package metrics

import (
	"fmt"
	"testing"

	"creditline-backend/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRejectionReason(t *testing.T) {
	cases := map[string]error{
		"insufficient_credits": fmt.Errorf("record: %w", domain.ErrInsufficientCredits),
		"chargeback_open":      domain.ErrChargebackOpen,
		"payment_in_progress":  domain.ErrPaymentInProgress,
		"invalid_state":        domain.InvalidStatef("transaction is failed"),
		"validation":           domain.Validationf("bad"),
		"":                     fmt.Errorf("disk full"),
	}
	for want, err := range cases {
		assert.Equal(t, want, RejectionReason(err), "error %v", err)
	}
}

func TestObserveActivity(t *testing.T) {
	before := testutil.ToFloat64(Activities.WithLabelValues("cam", "true"))
	ObserveActivity(&domain.Activity{Type: domain.ActivityTypeCam, Billed: true, OperatorEarnings: decimal.RequireFromString("0.80")})
	assert.Equal(t, before+1, testutil.ToFloat64(Activities.WithLabelValues("cam", "true")))
	assert.InDelta(t, 0.80, testutil.ToFloat64(OperatorEarnings.WithLabelValues("cam")), 0.0001)
}

func TestObserveRejection(t *testing.T) {
	ObserveRejection("refund", domain.ErrChargebackOpen)
	assert.Equal(t, float64(1), testutil.ToFloat64(Rejections.WithLabelValues("refund", "chargeback_open")))

	ObserveRejection("refund", fmt.Errorf("network"))
	assert.Equal(t, float64(1), testutil.ToFloat64(Rejections.WithLabelValues("refund", "chargeback_open")))
}

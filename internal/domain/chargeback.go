package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ChargebackStatus string

const (
	ChargebackStatusPending ChargebackStatus = "pending"
	ChargebackStatusWon     ChargebackStatus = "won"
	ChargebackStatusLost    ChargebackStatus = "lost"
	ChargebackStatusPartial ChargebackStatus = "partial"
)

func (s ChargebackStatus) Valid() bool {
	switch s {
	case ChargebackStatusPending, ChargebackStatusWon, ChargebackStatusLost, ChargebackStatusPartial:
		return true
	}
	return false
}

// IsResolution reports whether s is a terminal outcome a pending dispute can move to.
func (s ChargebackStatus) IsResolution() bool {
	return s == ChargebackStatusWon || s == ChargebackStatusLost || s == ChargebackStatusPartial
}

var AllChargebackStatuses = []ChargebackStatus{
	ChargebackStatusPending,
	ChargebackStatusWon,
	ChargebackStatusLost,
	ChargebackStatusPartial,
}

type Chargeback struct {
	ID               string           `json:"id"`
	TransactionID    string           `json:"transaction_id"`
	CustomerID       string           `json:"customer_id"`
	Amount           decimal.Decimal  `json:"amount"` // USD, never above the transaction amount
	Reason           string           `json:"reason"`
	Status           ChargebackStatus `json:"status"`
	Notes            string           `json:"notes,omitempty"`
	ProcessorCaseID  string           `json:"processor_case_id,omitempty"`
	AdjustmentAmount decimal.Decimal  `json:"adjustment_amount"`
	CreditsDebited   decimal.Decimal  `json:"credits_debited"`
	CreatedAt        time.Time        `json:"created_at"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
}

// DisputeHistory is what earlier chargebacks have done to one purchase.
// Refunds and new disputes only act on the remainder.
type DisputeHistory struct {
	Open             *Chargeback
	AppliedUSD       decimal.Decimal // adjustments taken by lost and partial resolutions
	ClaimedCredits   decimal.Decimal // credits those adjustments were worth, including any absorbed shortfall
	RemainingUSD     decimal.Decimal
	RemainingCredits decimal.Decimal
}

// Disputes folds the chargebacks filed against t into a DisputeHistory.
func (t *Transaction) Disputes(chargebacks []Chargeback) DisputeHistory {
	h := DisputeHistory{AppliedUSD: decimal.Zero, ClaimedCredits: decimal.Zero}
	for i := range chargebacks {
		cb := &chargebacks[i]
		if cb.TransactionID != t.ID {
			continue
		}
		if cb.Status == ChargebackStatusPending {
			h.Open = cb
			continue
		}
		if cb.AdjustmentAmount.IsPositive() {
			h.AppliedUSD = h.AppliedUSD.Add(cb.AdjustmentAmount)
			h.ClaimedCredits = h.ClaimedCredits.Add(t.CreditsForUSD(cb.AdjustmentAmount))
		}
	}
	h.RemainingUSD = decimal.Max(t.AmountUSD.Sub(h.AppliedUSD), decimal.Zero)
	h.RemainingCredits = decimal.Max(t.TotalCredits().Sub(h.ClaimedCredits), decimal.Zero)
	return h
}

// ChargebackMeta is supplementary data captured when a dispute is opened.
type ChargebackMeta struct {
	ProcessorCaseID string `json:"processor_case_id,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type ChargebackReport struct {
	Chargebacks []Chargeback                     `json:"chargebacks"`
	ByStatus    map[ChargebackStatus]StatusTotal `json:"by_status"`
	TotalCount  int64                            `json:"total_count"`
	TotalAmount decimal.Decimal                  `json:"total_amount"`
}

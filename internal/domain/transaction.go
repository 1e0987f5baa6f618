package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusRefunded:
		return true
	}
	return false
}

// AllTransactionStatuses lists statuses in lifecycle order, used by reports.
var AllTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusFailed,
	TransactionStatusRefunded,
}

type PaymentMethod string

const (
	PaymentMethodStripe  PaymentMethod = "stripe"
	PaymentMethodSandbox PaymentMethod = "sandbox"
)

// Transaction is a credit purchase. Credits and bonus are copied from the
// package quote at creation time and never recomputed.
type Transaction struct {
	ID              string            `json:"id"`
	CustomerID      string            `json:"customer_id"`
	PackageID       string            `json:"package_id"`
	PaymentMethod   PaymentMethod     `json:"payment_method"`
	AmountUSD       decimal.Decimal   `json:"amount_usd"`
	Credits         decimal.Decimal   `json:"credits"`
	Bonus           decimal.Decimal   `json:"bonus"`
	Status          TransactionStatus `json:"status"`
	ProcessorRef    string            `json:"processor_ref,omitempty"`
	FailureReason   string            `json:"failure_reason,omitempty"`
	RefundReason    string            `json:"refund_reason,omitempty"`
	RefundedCredits decimal.Decimal   `json:"refunded_credits"`
	AbsorbedCredits decimal.Decimal   `json:"absorbed_credits"` // deficit not recoverable from the balance
	Reversed        bool              `json:"reversed"`         // lost chargeback
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	RefundedAt      *time.Time        `json:"refunded_at,omitempty"`
}

// TotalCredits is what the customer receives when the purchase completes.
func (t *Transaction) TotalCredits() decimal.Decimal {
	return t.Credits.Add(t.Bonus)
}

// CreditsForUSD converts a USD amount against this purchase's effective
// credit rate.
func (t *Transaction) CreditsForUSD(usd decimal.Decimal) decimal.Decimal {
	if t.AmountUSD.IsZero() {
		return decimal.Zero
	}
	return usd.Mul(t.TotalCredits()).Div(t.AmountUSD).Round(2)
}

// PaymentData carries the processor-specific payload for a charge attempt.
type PaymentData struct {
	Token       string            `json:"token"`
	ReturnURL   string            `json:"return_url,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type TransactionFilter struct {
	Statuses []TransactionStatus
	Start    *time.Time
	End      *time.Time
	Limit    int
}

// StatusTotal is one row of a by-status aggregate.
type StatusTotal struct {
	Count     int64           `json:"count"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Credits   decimal.Decimal `json:"credits"`
}

type TransactionStats struct {
	ByStatus       map[TransactionStatus]StatusTotal `json:"by_status"`
	TotalCount     int64                             `json:"total_count"`
	TotalAmountUSD decimal.Decimal                   `json:"total_amount_usd"`
	ReversedCount  int64                             `json:"reversed_count"`
	// NetRevenueUSD is completed purchases minus reversed ones.
	NetRevenueUSD decimal.Decimal `json:"net_revenue_usd"`
}

func NewTransactionStats() *TransactionStats {
	stats := &TransactionStats{ByStatus: make(map[TransactionStatus]StatusTotal, len(AllTransactionStatuses))}
	for _, s := range AllTransactionStatuses {
		stats.ByStatus[s] = StatusTotal{}
	}
	return stats
}

// AddStatus folds one status aggregate into the stats. Net revenue counts
// completed purchases minus those reversed by a lost chargeback.
func (s *TransactionStats) AddStatus(status TransactionStatus, total StatusTotal, reversedCount int64, reversedAmount decimal.Decimal) {
	s.ByStatus[status] = total
	s.TotalCount += total.Count
	s.TotalAmountUSD = s.TotalAmountUSD.Add(total.AmountUSD)
	s.ReversedCount += reversedCount
	if status == TransactionStatusCompleted {
		s.NetRevenueUSD = s.NetRevenueUSD.Add(total.AmountUSD).Sub(reversedAmount)
	}
}

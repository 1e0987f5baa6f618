package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateRange is a reporting window. End is inclusive to the second, so a
// window ending at 23:59:59 also covers 23:59:59.5.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UpperBound turns an inclusive end into the exclusive bound storage filters
// compare against.
func UpperBound(end time.Time) time.Time {
	return end.Truncate(time.Second).Add(time.Second)
}

// Until is the exclusive upper bound of the window.
func (r DateRange) Until() time.Time {
	return UpperBound(r.End)
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.Until())
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return Validationf("date range requires start and end")
	}
	if r.End.Before(r.Start) {
		return Validationf("date range end %s before start %s", r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// TypeBreakdown aggregates activities of one type.
type TypeBreakdown struct {
	Type          ActivityType    `json:"type"`
	Count         int64           `json:"count"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
}

type EarningsReport struct {
	OperatorID    string                         `json:"operator_id"`
	Range         DateRange                      `json:"range"`
	Count         int64                          `json:"count"`
	TotalRevenue  decimal.Decimal                `json:"total_revenue"`
	TotalEarnings decimal.Decimal                `json:"total_earnings"`
	Breakdown     map[ActivityType]TypeBreakdown `json:"breakdown"`
}

type SpendingReport struct {
	CustomerID string                         `json:"customer_id"`
	Range      DateRange                      `json:"range"`
	Count      int64                          `json:"count"`
	TotalSpent decimal.Decimal                `json:"total_spent"`
	Breakdown  map[ActivityType]TypeBreakdown `json:"breakdown"`
}

// DailyDigest summarises ledger movement over one day for the admin email.
type DailyDigest struct {
	Range            DateRange         `json:"range"`
	Transactions     *TransactionStats `json:"transactions"`
	OpenChargebacks  int64             `json:"open_chargebacks"`
	ChargebackAmount decimal.Decimal   `json:"chargeback_amount"`
}

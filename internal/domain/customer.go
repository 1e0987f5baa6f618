package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is owned by the customer service. The ledger only ever writes
// Credits and FreeChatMessages.
type Customer struct {
	ID               string          `json:"id"`
	Email            string          `json:"email"`
	DisplayName      string          `json:"display_name"`
	Credits          decimal.Decimal `json:"credits"`
	FreeChatMessages int32           `json:"free_chat_messages"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Debit removes up to amount from the balance and returns what was actually
// taken and the uncovered remainder. The balance never goes below zero.
func (c *Customer) Debit(amount decimal.Decimal) (taken, absorbed decimal.Decimal) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero
	}
	taken = decimal.Min(c.Credits, amount)
	absorbed = amount.Sub(taken)
	c.Credits = c.Credits.Sub(taken)
	return taken, absorbed
}

// OperatorBalance is the running total of commission earned by an operator.
type OperatorBalance struct {
	OperatorID    string          `json:"operator_id"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

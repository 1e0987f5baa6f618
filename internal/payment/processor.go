// Package payment adapts external payment processors to the ledger.
package payment

import (
	"context"
	"fmt"
	"sort"

	"creditline-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// ChargeRequest is one attempt to collect a purchase. TransactionID doubles
// as the processor idempotency key.
type ChargeRequest struct {
	TransactionID string
	CustomerID    string
	AmountUSD     decimal.Decimal
	Data          domain.PaymentData
}

type ChargeResult struct {
	Reference string
}

// Processor collects money for one payment method. A declined charge is
// reported as *domain.ProcessorError; any other error means the outcome is
// unknown.
type Processor interface {
	Method() domain.PaymentMethod
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

type Registry struct {
	processors map[domain.PaymentMethod]Processor
}

func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[domain.PaymentMethod]Processor, len(processors))}
	for _, p := range processors {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Processor) {
	r.processors[p.Method()] = p
}

func (r *Registry) Get(method domain.PaymentMethod) (Processor, error) {
	p, ok := r.processors[method]
	if !ok {
		return nil, domain.Validationf("no processor for payment method %q", method)
	}
	return p, nil
}

func (r *Registry) Methods() []domain.PaymentMethod {
	out := make([]domain.PaymentMethod, 0, len(r.processors))
	for m := range r.processors {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// toCents converts a USD amount to the integer minor units processors expect.
func toCents(usd decimal.Decimal) (int64, error) {
	cents := usd.Mul(decimal.NewFromInt(100))
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-cent precision", usd)
	}
	return cents.IntPart(), nil
}

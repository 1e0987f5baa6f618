package payment

import (
	"context"
	"time"

	"creditline-backend/internal/domain"
)

// Sandbox tokens that force an outcome.
const (
	SandboxTokenDecline = "tok_decline"
	SandboxTokenHang    = "tok_hang"
)

// Sandbox approves every charge except the magic tokens above. It backs the
// sandbox payment method and local development.
type Sandbox struct {
	Latency time.Duration
}

func NewSandbox() *Sandbox {
	return &Sandbox{}
}

func (s *Sandbox) Method() domain.PaymentMethod {
	return domain.PaymentMethodSandbox
}

func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if _, err := toCents(req.AmountUSD); err != nil {
		return nil, &domain.ProcessorError{Method: s.Method(), Code: "invalid_amount", Message: err.Error(), Err: err}
	}

	switch req.Data.Token {
	case SandboxTokenDecline:
		return nil, &domain.ProcessorError{Method: s.Method(), Code: "card_declined", Message: "Your card was declined."}
	case SandboxTokenHang:
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &ChargeResult{Reference: "sandbox_" + req.TransactionID}, nil
}

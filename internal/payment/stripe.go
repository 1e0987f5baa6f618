package payment

import (
	"context"
	"errors"
	"fmt"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/logger"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// Stripe charges a saved payment method with a server-confirmed PaymentIntent.
type Stripe struct {
	currency string
	create   func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func NewStripe(secretKey, currency string) *Stripe {
	stripe.Key = secretKey
	return &Stripe{currency: currency, create: paymentintent.New}
}

func (s *Stripe) Method() domain.PaymentMethod {
	return domain.PaymentMethodStripe
}

func (s *Stripe) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	cents, err := toCents(req.AmountUSD)
	if err != nil {
		return nil, &domain.ProcessorError{Method: s.Method(), Code: "invalid_amount", Message: err.Error(), Err: err}
	}
	if req.Data.Token == "" {
		return nil, &domain.ProcessorError{Method: s.Method(), Code: "missing_payment_method", Message: "payment method token is required"}
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(cents),
		Currency:           stripe.String(s.currency),
		PaymentMethod:      stripe.String(req.Data.Token),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	if req.Data.Description != "" {
		params.Description = stripe.String(req.Data.Description)
	}
	if req.Data.ReturnURL != "" {
		params.ReturnURL = stripe.String(req.Data.ReturnURL)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.TransactionID)
	params.AddMetadata("transaction_id", req.TransactionID)
	params.AddMetadata("customer_id", req.CustomerID)
	for k, v := range req.Data.Metadata {
		params.AddMetadata(k, v)
	}

	logger.ExternalServiceCall("stripe", "PaymentIntents.Create", "transactionID", req.TransactionID, "amountCents", cents)
	pi, err := s.create(params)
	if err != nil {
		logger.ExternalServiceResult("stripe", "PaymentIntents.Create", err, "transactionID", req.TransactionID)
		return nil, classifyStripeError(ctx, err)
	}
	logger.ExternalServiceResult("stripe", "PaymentIntents.Create", nil, "paymentIntent", pi.ID, "status", pi.Status)

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, &domain.ProcessorError{
			Method:  s.Method(),
			Code:    string(pi.Status),
			Message: fmt.Sprintf("payment intent %s ended in status %s", pi.ID, pi.Status),
		}
	}
	return &ChargeResult{Reference: pi.ID}, nil
}

// classifyStripeError turns a definite Stripe rejection into a
// ProcessorError. Cancellation and transport errors pass through because the
// charge may or may not have happened.
func classifyStripeError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return err
	}
	switch stripeErr.Type {
	case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
		return &domain.ProcessorError{
			Method:  domain.PaymentMethodStripe,
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
			Err:     err,
		}
	default:
		return err
	}
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation              = errors.New("validation error")
	ErrInvalidState            = errors.New("invalid state")
	ErrInvalidChargebackAmount = errors.New("invalid chargeback amount")
	ErrAlreadyResolved         = errors.New("chargeback already resolved")
	ErrInsufficientCredits     = errors.New("insufficient credits")
	ErrNoFreeMessages          = errors.New("no free messages remaining")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrActivityNotFound        = errors.New("activity not found")
	ErrChargebackNotFound      = errors.New("chargeback not found")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrConversationNotFound    = errors.New("conversation not found")
	ErrProcessorTimeout        = errors.New("payment processor timed out")

	// ErrChargebackOpen and ErrPaymentInProgress are both state conflicts
	// and match ErrInvalidState under errors.Is.
	ErrChargebackOpen    = fmt.Errorf("%w: transaction has an open chargeback", ErrInvalidState)
	ErrPaymentInProgress = fmt.Errorf("%w: payment already in progress", ErrInvalidState)
)

// Validationf builds an error matching ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InvalidStatef builds an error matching ErrInvalidState.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// ProcessorError is a declined or failed charge reported by a payment adapter.
type ProcessorError struct {
	Method  PaymentMethod
	Code    string
	Message string
	Err     error
}

func (e *ProcessorError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s processor error [%s]: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("%s processor error: %s", e.Method, e.Message)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

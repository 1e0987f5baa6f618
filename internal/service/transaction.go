package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/idempotency"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/metrics"
	"creditline-backend/internal/payment"
	"creditline-backend/internal/repository"
	"creditline-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const staleSweepOwner = "stale-sweep"

// PaymentSettings bounds processor calls and the idempotency lease that
// covers them.
type PaymentSettings struct {
	ProcessorTimeout time.Duration
	LeaseTTL         time.Duration
}

type transactionService struct {
	customerRepo    repository.CustomerRepository
	transactionRepo repository.TransactionRepository
	chargebackRepo  repository.ChargebackRepository
	ledger          repository.LedgerStore
	rates           *utils.RateTable
	processors      *payment.Registry
	guard           idempotency.Guard
	notifier        Notifier
	settings        PaymentSettings
	now             Clock
}

func NewTransactionService(
	customerRepo repository.CustomerRepository,
	transactionRepo repository.TransactionRepository,
	chargebackRepo repository.ChargebackRepository,
	ledger repository.LedgerStore,
	rates *utils.RateTable,
	processors *payment.Registry,
	guard idempotency.Guard,
	notifier Notifier,
	settings PaymentSettings,
) TransactionService {
	return &transactionService{
		customerRepo:    customerRepo,
		transactionRepo: transactionRepo,
		chargebackRepo:  chargebackRepo,
		ledger:          ledger,
		rates:           rates,
		processors:      processors,
		guard:           guard,
		notifier:        notifier,
		settings:        settings,
		now:             systemClock,
	}
}

func (s *transactionService) CreateTransaction(ctx context.Context, customerID, packageID string, method domain.PaymentMethod) (*domain.Transaction, error) {
	logger.EnterMethod("transactionService.CreateTransaction", "customerID", customerID, "packageID", packageID, "method", method)

	if _, err := s.customerRepo.GetByID(ctx, customerID); err != nil {
		logger.ExitMethodWithError("transactionService.CreateTransaction", err)
		return nil, err
	}

	quote, err := s.rates.Quote(packageID, method)
	if err != nil {
		logger.ExitMethodRejected("transactionService.CreateTransaction", err)
		return nil, err
	}
	if _, err := s.processors.Get(method); err != nil {
		logger.ExitMethodRejected("transactionService.CreateTransaction", err)
		return nil, err
	}

	now := s.now()
	txn := &domain.Transaction{
		CustomerID:      customerID,
		PackageID:       quote.PackageID,
		PaymentMethod:   quote.Method,
		AmountUSD:       quote.AmountUSD,
		Credits:         quote.Credits,
		Bonus:           quote.Bonus,
		Status:          domain.TransactionStatusPending,
		RefundedCredits: decimal.Zero,
		AbsorbedCredits: decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.transactionRepo.Create(ctx, txn); err != nil {
		logger.ExitMethodWithError("transactionService.CreateTransaction", err)
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	metrics.ObserveTransaction(txn.Status)
	logger.ExitMethod("transactionService.CreateTransaction", "transactionID", txn.ID, "amountUSD", txn.AmountUSD.StringFixed(2))
	return txn, nil
}

func (s *transactionService) ProcessPayment(ctx context.Context, transactionID string, data domain.PaymentData) (*domain.Transaction, error) {
	logger.EnterMethod("transactionService.ProcessPayment", "transactionID", transactionID)

	txn, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		logger.ExitMethodWithError("transactionService.ProcessPayment", err)
		return nil, err
	}
	if txn.Status != domain.TransactionStatusPending {
		err := domain.InvalidStatef("transaction %s is %s, not pending", txn.ID, txn.Status)
		logger.ExitMethodRejected("transactionService.ProcessPayment", err)
		return nil, err
	}
	processor, err := s.processors.Get(txn.PaymentMethod)
	if err != nil {
		logger.ExitMethodRejected("transactionService.ProcessPayment", err)
		return nil, err
	}

	owner := uuid.NewString()
	acquired, err := s.guard.Acquire(ctx, txn.ID, owner, s.settings.LeaseTTL)
	if err != nil {
		logger.ExitMethodWithError("transactionService.ProcessPayment", err)
		return nil, err
	}
	if !acquired {
		metrics.ObserveRejection("process_payment", domain.ErrPaymentInProgress)
		logger.ExitMethodRejected("transactionService.ProcessPayment", domain.ErrPaymentInProgress)
		return nil, domain.ErrPaymentInProgress
	}

	// The processor call holds no ledger lock; the lease alone keeps a
	// second attempt out.
	started := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, s.settings.ProcessorTimeout)
	result, chargeErr := processor.Charge(callCtx, payment.ChargeRequest{
		TransactionID: txn.ID,
		CustomerID:    txn.CustomerID,
		AmountUSD:     txn.AmountUSD,
		Data:          data,
	})
	cancel()

	// Recording the outcome must survive the caller going away.
	commitCtx := context.WithoutCancel(ctx)

	var procErr *domain.ProcessorError
	switch {
	case chargeErr == nil:
		metrics.ObservePayment(txn.PaymentMethod, "succeeded", started)
		return s.completePayment(commitCtx, txn, result.Reference, owner)

	case errors.As(chargeErr, &procErr):
		metrics.ObservePayment(txn.PaymentMethod, "declined", started)
		return s.failPayment(commitCtx, txn.ID, procErr, owner)

	case errors.Is(chargeErr, context.DeadlineExceeded) || errors.Is(chargeErr, context.Canceled):
		// Outcome unknown. Stay pending and keep the lease until it expires.
		metrics.ObservePayment(txn.PaymentMethod, "timeout", started)
		err := fmt.Errorf("%w: transaction %s left pending", domain.ErrProcessorTimeout, txn.ID)
		logger.ExitMethodWithError("transactionService.ProcessPayment", err)
		return nil, err

	default:
		metrics.ObservePayment(txn.PaymentMethod, "error", started)
		err := fmt.Errorf("payment outcome unknown for transaction %s: %w", txn.ID, chargeErr)
		logger.ExitMethodWithError("transactionService.ProcessPayment", err)
		return nil, err
	}
}

func (s *transactionService) completePayment(ctx context.Context, snapshot *domain.Transaction, reference, owner string) (*domain.Transaction, error) {
	transactionID := snapshot.ID
	var txn *domain.Transaction
	var customer *domain.Customer
	err := s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		c, err := tx.LockCustomer(ctx, snapshot.CustomerID)
		if err != nil {
			return err
		}
		t, err := tx.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Status != domain.TransactionStatusPending {
			return domain.InvalidStatef("transaction %s became %s during payment", t.ID, t.Status)
		}

		now := s.now()
		t.Status = domain.TransactionStatusCompleted
		t.ProcessorRef = reference
		t.CompletedAt = &now
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}

		c.Credits = c.Credits.Add(t.TotalCredits())
		if err := tx.SaveCustomerBalance(ctx, c); err != nil {
			return err
		}
		txn, customer = t, c
		return nil
	})
	if err != nil {
		// Money may have moved without credits landing. Keep the lease so
		// nothing retries before someone looks at processor_ref.
		logger.ErrorContext(ctx, "Charge succeeded but completion failed", "transaction_id", transactionID, "processor_ref", reference, "error", err)
		logger.ExitMethodWithError("transactionService.ProcessPayment", err)
		return nil, fmt.Errorf("failed to complete transaction %s: %w", transactionID, err)
	}
	s.release(ctx, transactionID, owner)

	metrics.ObserveTransaction(txn.Status)
	metrics.ObserveCredits("purchase", txn.TotalCredits())
	logger.BalanceChange(ctx, customer.ID, "purchase", txn.TotalCredits().StringFixed(2), customer.Credits.StringFixed(2),
		"transaction_id", txn.ID, "processor_ref", reference)

	if err := s.notifier.SendPurchaseReceipt(ctx, customer, txn); err != nil {
		logger.Warn("Failed to send purchase receipt", "transaction_id", txn.ID, "error", err)
	}

	logger.ExitMethod("transactionService.ProcessPayment", "transactionID", txn.ID, "status", txn.Status)
	return txn, nil
}

// failPayment records a definite decline. It is not an error for the caller.
func (s *transactionService) failPayment(ctx context.Context, transactionID string, procErr *domain.ProcessorError, owner string) (*domain.Transaction, error) {
	var txn *domain.Transaction
	err := s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		t, err := tx.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Status != domain.TransactionStatusPending {
			return domain.InvalidStatef("transaction %s became %s during payment", t.ID, t.Status)
		}
		t.Status = domain.TransactionStatusFailed
		t.FailureReason = procErr.Error()
		txn = t
		return tx.UpdateTransaction(ctx, t)
	})
	if err != nil {
		logger.ExitMethodWithError("transactionService.ProcessPayment", err)
		return nil, fmt.Errorf("failed to record declined payment: %w", err)
	}
	s.release(ctx, transactionID, owner)

	metrics.ObserveTransaction(txn.Status)
	logger.Warn("Payment declined", "transaction_id", txn.ID, "method", procErr.Method, "code", procErr.Code, "reason", procErr.Message)
	logger.ExitMethod("transactionService.ProcessPayment", "transactionID", txn.ID, "status", txn.Status)
	return txn, nil
}

func (s *transactionService) release(ctx context.Context, key, owner string) {
	if err := s.guard.Release(ctx, key, owner); err != nil {
		logger.Warn("Failed to release payment lease", "transaction_id", key, "error", err)
	}
}

func (s *transactionService) RefundTransaction(ctx context.Context, transactionID, reason string) (*domain.Transaction, error) {
	logger.EnterMethod("transactionService.RefundTransaction", "transactionID", transactionID)

	if strings.TrimSpace(reason) == "" {
		err := domain.Validationf("refund reason is required")
		logger.ExitMethodRejected("transactionService.RefundTransaction", err)
		return nil, err
	}
	snapshot, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		logger.ExitMethodWithError("transactionService.RefundTransaction", err)
		return nil, err
	}

	var txn *domain.Transaction
	var customer *domain.Customer
	err = s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		c, err := tx.LockCustomer(ctx, snapshot.CustomerID)
		if err != nil {
			return err
		}
		t, err := tx.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Status != domain.TransactionStatusCompleted {
			return domain.InvalidStatef("transaction %s is %s, only completed purchases can be refunded", t.ID, t.Status)
		}
		if t.Reversed {
			return domain.InvalidStatef("transaction %s was reversed by a lost chargeback", t.ID)
		}
		chargebacks, err := tx.ListChargebacks(ctx, t.ID)
		if err != nil {
			return err
		}
		disputes := t.Disputes(chargebacks)
		if disputes.Open != nil {
			return domain.ErrChargebackOpen
		}
		if !disputes.RemainingUSD.IsPositive() {
			return domain.InvalidStatef("transaction %s was fully charged back", t.ID)
		}

		// Credits already clawed back by partial chargebacks are not taken twice.
		taken, absorbed := c.Debit(disputes.RemainingCredits)
		now := s.now()
		t.Status = domain.TransactionStatusRefunded
		t.RefundReason = reason
		t.RefundedCredits = taken
		t.AbsorbedCredits = absorbed
		t.RefundedAt = &now
		if err := tx.SaveCustomerBalance(ctx, c); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		txn, customer = t, c
		return nil
	})
	if err != nil {
		metrics.ObserveRejection("refund", err)
		if errors.Is(err, domain.ErrInvalidState) {
			logger.ExitMethodRejected("transactionService.RefundTransaction", err)
		} else {
			logger.ExitMethodWithError("transactionService.RefundTransaction", err)
		}
		return nil, err
	}

	metrics.ObserveTransaction(txn.Status)
	metrics.ObserveCredits("refund", txn.RefundedCredits)
	logger.BalanceChange(ctx, customer.ID, "refund", txn.RefundedCredits.Neg().StringFixed(2), customer.Credits.StringFixed(2),
		"transaction_id", txn.ID, "absorbed", txn.AbsorbedCredits.StringFixed(2))

	if err := s.notifier.SendRefundNotice(ctx, customer, txn); err != nil {
		logger.Warn("Failed to send refund notice", "transaction_id", txn.ID, "error", err)
	}

	logger.ExitMethod("transactionService.RefundTransaction", "transactionID", txn.ID)
	return txn, nil
}

func (s *transactionService) CreateChargeback(ctx context.Context, transactionID, reason string, amount decimal.Decimal, meta domain.ChargebackMeta) (*domain.Chargeback, error) {
	logger.EnterMethod("transactionService.CreateChargeback", "transactionID", transactionID, "amount", amount.String())

	snapshot, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		logger.ExitMethodWithError("transactionService.CreateChargeback", err)
		return nil, err
	}

	var cb *domain.Chargeback
	var txn *domain.Transaction
	err = s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		if _, err := tx.LockCustomer(ctx, snapshot.CustomerID); err != nil {
			return err
		}
		t, err := tx.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Status != domain.TransactionStatusCompleted {
			return domain.InvalidStatef("transaction %s is %s, chargebacks need a completed purchase", t.ID, t.Status)
		}
		if t.Reversed {
			return domain.InvalidStatef("transaction %s was already reversed", t.ID)
		}
		chargebacks, err := tx.ListChargebacks(ctx, t.ID)
		if err != nil {
			return err
		}
		disputes := t.Disputes(chargebacks)
		if disputes.Open != nil {
			return domain.ErrChargebackOpen
		}
		// Earlier lost or partial resolutions shrink what can still be disputed.
		if !amount.IsPositive() || amount.GreaterThan(disputes.RemainingUSD) || !amount.Equal(utils.RoundCurrency(amount)) {
			return fmt.Errorf("%w: %s must be in (0, %s]", domain.ErrInvalidChargebackAmount, amount.String(), disputes.RemainingUSD.StringFixed(2))
		}

		cb = &domain.Chargeback{
			TransactionID:    t.ID,
			CustomerID:       t.CustomerID,
			Amount:           amount,
			Reason:           reason,
			Status:           domain.ChargebackStatusPending,
			Notes:            meta.Notes,
			ProcessorCaseID:  meta.ProcessorCaseID,
			AdjustmentAmount: decimal.Zero,
			CreditsDebited:   decimal.Zero,
			CreatedAt:        s.now(),
		}
		txn = t
		return tx.CreateChargeback(ctx, cb)
	})
	if err != nil {
		metrics.ObserveRejection("create_chargeback", err)
		if metrics.RejectionReason(err) != "" {
			logger.ExitMethodRejected("transactionService.CreateChargeback", err)
		} else {
			logger.ExitMethodWithError("transactionService.CreateChargeback", err)
		}
		return nil, err
	}

	metrics.ObserveChargeback(cb.Status)
	logger.Warn("Chargeback opened", "chargeback_id", cb.ID, "transaction_id", txn.ID, "amount", cb.Amount.StringFixed(2), "case", cb.ProcessorCaseID)

	if err := s.notifier.SendChargebackAlert(ctx, cb, txn); err != nil {
		logger.Warn("Failed to send chargeback alert", "chargeback_id", cb.ID, "error", err)
	}

	logger.ExitMethod("transactionService.CreateChargeback", "chargebackID", cb.ID)
	return cb, nil
}

func (s *transactionService) ResolveChargeback(ctx context.Context, chargebackID string, resolution domain.ChargebackStatus, adjustment decimal.Decimal, notes string) (*domain.Chargeback, error) {
	logger.EnterMethod("transactionService.ResolveChargeback", "chargebackID", chargebackID, "resolution", resolution)

	if !resolution.IsResolution() {
		err := domain.Validationf("resolution must be won, lost or partial, got %q", resolution)
		logger.ExitMethodRejected("transactionService.ResolveChargeback", err)
		return nil, err
	}
	snapshot, err := s.chargebackRepo.GetByID(ctx, chargebackID)
	if err != nil {
		logger.ExitMethodWithError("transactionService.ResolveChargeback", err)
		return nil, err
	}

	var cb *domain.Chargeback
	var customer *domain.Customer
	var absorbed decimal.Decimal
	err = s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		c, err := tx.LockCustomer(ctx, snapshot.CustomerID)
		if err != nil {
			return err
		}
		t, err := tx.LockTransaction(ctx, snapshot.TransactionID)
		if err != nil {
			return err
		}
		current, err := tx.LockChargeback(ctx, chargebackID)
		if err != nil {
			return err
		}
		if current.Status != domain.ChargebackStatusPending {
			return fmt.Errorf("%w: chargeback %s is %s", domain.ErrAlreadyResolved, current.ID, current.Status)
		}

		usd := decimal.Zero
		switch resolution {
		case domain.ChargebackStatusLost:
			usd = current.Amount
		case domain.ChargebackStatusPartial:
			if adjustment.IsNegative() || adjustment.GreaterThan(current.Amount) {
				return fmt.Errorf("%w: adjustment %s must be in [0, %s]", domain.ErrInvalidChargebackAmount, adjustment.String(), current.Amount.StringFixed(2))
			}
			usd = utils.RoundCurrency(adjustment)
		}

		taken := decimal.Zero
		if usd.IsPositive() {
			taken, absorbed = c.Debit(t.CreditsForUSD(usd))
			if err := tx.SaveCustomerBalance(ctx, c); err != nil {
				return err
			}
		}
		if resolution == domain.ChargebackStatusLost {
			t.Reversed = true
			if err := tx.UpdateTransaction(ctx, t); err != nil {
				return err
			}
		}

		now := s.now()
		current.Status = resolution
		current.AdjustmentAmount = usd
		current.CreditsDebited = taken
		current.ResolvedAt = &now
		if notes != "" {
			current.Notes = notes
		}
		cb, customer = current, c
		return tx.UpdateChargeback(ctx, current)
	})
	if err != nil {
		metrics.ObserveRejection("resolve_chargeback", err)
		if metrics.RejectionReason(err) != "" {
			logger.ExitMethodRejected("transactionService.ResolveChargeback", err)
		} else {
			logger.ExitMethodWithError("transactionService.ResolveChargeback", err)
		}
		return nil, err
	}

	metrics.ObserveChargeback(cb.Status)
	if cb.CreditsDebited.IsPositive() || absorbed.IsPositive() {
		metrics.ObserveCredits("chargeback", cb.CreditsDebited)
		logger.BalanceChange(ctx, customer.ID, "chargeback_"+string(cb.Status), cb.CreditsDebited.Neg().StringFixed(2), customer.Credits.StringFixed(2),
			"chargeback_id", cb.ID, "transaction_id", cb.TransactionID, "absorbed", absorbed.StringFixed(2))
	}

	logger.ExitMethod("transactionService.ResolveChargeback", "chargebackID", cb.ID, "status", cb.Status)
	return cb, nil
}

func (s *transactionService) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, transactionID)
}

func (s *transactionService) ListCustomerTransactions(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, domain.Validationf("unknown transaction status %q", st)
		}
	}
	if filter.Limit < 0 {
		return nil, domain.Validationf("limit must not be negative")
	}
	return s.transactionRepo.ListByCustomer(ctx, customerID, filter)
}

// FailStalePending explicitly fails pending purchases older than olderThan
// whose payment lease has lapsed. It returns how many were failed.
func (s *transactionService) FailStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	logger.EnterMethod("transactionService.FailStalePending", "olderThan", olderThan.String())

	cutoff := s.now().Add(-olderThan)
	stale, err := s.transactionRepo.ListStalePending(ctx, cutoff)
	if err != nil {
		logger.ExitMethodWithError("transactionService.FailStalePending", err)
		return 0, err
	}

	failed := 0
	for _, candidate := range stale {
		acquired, err := s.guard.Acquire(ctx, candidate.ID, staleSweepOwner, s.settings.LeaseTTL)
		if err != nil {
			logger.Warn("Skipping stale transaction, lease check failed", "transaction_id", candidate.ID, "error", err)
			continue
		}
		if !acquired {
			logger.Info("Skipping stale transaction with a live payment lease", "transaction_id", candidate.ID)
			continue
		}

		var changed bool
		err = s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
			t, err := tx.LockTransaction(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if t.Status != domain.TransactionStatusPending {
				return nil
			}
			t.Status = domain.TransactionStatusFailed
			t.FailureReason = fmt.Sprintf("expired: no payment completed within %s", olderThan)
			changed = true
			return tx.UpdateTransaction(ctx, t)
		})
		s.release(ctx, candidate.ID, staleSweepOwner)
		if err != nil {
			logger.Error("Failed to expire stale transaction", "transaction_id", candidate.ID, "error", err)
			continue
		}
		if changed {
			failed++
			metrics.ObserveTransaction(domain.TransactionStatusFailed)
		}
	}

	logger.ExitMethod("transactionService.FailStalePending", "candidates", len(stale), "failed", failed)
	return failed, nil
}

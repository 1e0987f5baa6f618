package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTransactionService_CreateTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, "5.50", 0)

	t.Run("Deluxe via stripe", func(t *testing.T) {
		txn, err := f.txns.CreateTransaction(ctx, c.ID, "deluxe", domain.PaymentMethodStripe)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusPending, txn.Status)
		assert.Equal(t, "49.99", txn.AmountUSD.StringFixed(2))
		assert.True(t, txn.TotalCredits().Equal(decimal.NewFromInt(1100)))
		assert.Equal(t, fixedNow, txn.CreatedAt)
		assert.Equal(t, "5.50", f.balance(t, c.ID).Credits.StringFixed(2), "creating a purchase never touches the balance")
	})

	t.Run("Unknown package", func(t *testing.T) {
		_, err := f.txns.CreateTransaction(ctx, c.ID, "platinum", domain.PaymentMethodStripe)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Unknown method", func(t *testing.T) {
		_, err := f.txns.CreateTransaction(ctx, c.ID, "deluxe", domain.PaymentMethod("paypal"))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Unknown customer", func(t *testing.T) {
		_, err := f.txns.CreateTransaction(ctx, "ghost", "deluxe", domain.PaymentMethodStripe)
		assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
	})
}

func TestTransactionService_ProcessPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Success credits total credits exactly once", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "5.50", 0)

		txn := f.completedPurchase(t, c.ID)
		assert.Equal(t, "pi_"+txn.ID, txn.ProcessorRef)
		require.NotNil(t, txn.CompletedAt)
		assert.Equal(t, "1105.50", f.balance(t, c.ID).Credits.StringFixed(2))

		_, err := f.txns.ProcessPayment(ctx, txn.ID, domain.PaymentData{Token: "pm_card_visa"})
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Equal(t, "1105.50", f.balance(t, c.ID).Credits.StringFixed(2))

		released, _ := f.guard.Acquire(ctx, txn.ID, "next-attempt", time.Minute)
		assert.True(t, released)
		f.notifier.AssertCalled(t, "SendPurchaseReceipt", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Declined marks failed without error", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "0", 0)
		txn, err := f.txns.CreateTransaction(ctx, c.ID, "starter", domain.PaymentMethodStripe)
		require.NoError(t, err)

		f.processor.On("Charge", mock.Anything, mock.Anything).
			Return(nil, &domain.ProcessorError{Method: domain.PaymentMethodStripe, Code: "card_declined", Message: "declined"}).Once()

		failed, err := f.txns.ProcessPayment(ctx, txn.ID, domain.PaymentData{Token: "pm_card_chargeDeclined"})
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusFailed, failed.Status)
		assert.Contains(t, failed.FailureReason, "card_declined")
		assert.True(t, f.balance(t, c.ID).Credits.IsZero())

		released, _ := f.guard.Acquire(ctx, txn.ID, "next-attempt", time.Minute)
		assert.True(t, released)
	})

	t.Run("Timeout leaves pending and keeps the lease", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "0", 0)
		txn, err := f.txns.CreateTransaction(ctx, c.ID, "starter", domain.PaymentMethodStripe)
		require.NoError(t, err)

		f.processor.On("Charge", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
			Return(nil, context.DeadlineExceeded).Once()

		_, err = f.txns.ProcessPayment(ctx, txn.ID, domain.PaymentData{Token: "pm_card_visa"})
		assert.ErrorIs(t, err, domain.ErrProcessorTimeout)

		got, err := f.txns.GetTransaction(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusPending, got.Status)
		assert.True(t, f.balance(t, c.ID).Credits.IsZero())

		_, err = f.txns.ProcessPayment(ctx, txn.ID, domain.PaymentData{Token: "pm_card_visa"})
		assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		f.processor.AssertNumberOfCalls(t, "Charge", 1)
	})

	t.Run("Unknown outcome stays pending", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "0", 0)
		txn, err := f.txns.CreateTransaction(ctx, c.ID, "starter", domain.PaymentMethodStripe)
		require.NoError(t, err)

		f.processor.On("Charge", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

		_, err = f.txns.ProcessPayment(ctx, txn.ID, domain.PaymentData{Token: "pm_card_visa"})
		assert.Error(t, err)
		got, _ := f.txns.GetTransaction(ctx, txn.ID)
		assert.Equal(t, domain.TransactionStatusPending, got.Status)
	})

	t.Run("Concurrent attempts charge once", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "0", 0)
		txn, err := f.txns.CreateTransaction(ctx, c.ID, "starter", domain.PaymentMethodStripe)
		require.NoError(t, err)
		f.txns.settings.ProcessorTimeout = 5 * time.Second

		started := make(chan struct{})
		release := make(chan struct{})
		f.processor.On("Charge", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				close(started)
				<-release
			}).
			Return(&payment.ChargeResult{Reference: "pi_once"}, nil).Once()

		var wg sync.WaitGroup
		var first *domain.Transaction
		var firstErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, firstErr = f.txns.ProcessPayment(ctx, txn.ID, domain.PaymentData{Token: "pm_card_visa"})
		}()

		<-started
		_, err = f.txns.ProcessPayment(ctx, txn.ID, domain.PaymentData{Token: "pm_card_visa"})
		assert.ErrorIs(t, err, domain.ErrPaymentInProgress)

		close(release)
		wg.Wait()
		require.NoError(t, firstErr)
		assert.Equal(t, domain.TransactionStatusCompleted, first.Status)
		assert.Equal(t, "100.00", f.balance(t, c.ID).Credits.StringFixed(2))
	})

	t.Run("Sandbox processor", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "0", 0)
		txn, err := f.txns.CreateTransaction(ctx, c.ID, "standard", domain.PaymentMethodSandbox)
		require.NoError(t, err)

		done, err := f.txns.ProcessPayment(ctx, txn.ID, domain.PaymentData{Token: "tok_visa"})
		require.NoError(t, err)
		assert.Equal(t, "sandbox_"+txn.ID, done.ProcessorRef)
		assert.Equal(t, "525.00", f.balance(t, c.ID).Credits.StringFixed(2))
	})
}

func TestTransactionService_RefundTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("Clamps at zero and records the absorbed deficit", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "0", 0)
		txn := f.completedPurchase(t, c.ID)

		_, err := f.activity.RecordActivity(ctx, domain.ActivityRequest{
			CustomerID: c.ID, OperatorID: "op-1", Type: domain.ActivityTypeCall, Amount: decimal.NewFromInt(1000),
		})
		require.NoError(t, err)
		require.Equal(t, "100.00", f.balance(t, c.ID).Credits.StringFixed(2))

		refunded, err := f.txns.RefundTransaction(ctx, txn.ID, "customer request")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusRefunded, refunded.Status)
		assert.Equal(t, "100.00", refunded.RefundedCredits.StringFixed(2))
		assert.Equal(t, "1000.00", refunded.AbsorbedCredits.StringFixed(2))
		assert.NotNil(t, refunded.RefundedAt)
		assert.True(t, f.balance(t, c.ID).Credits.IsZero())

		_, err = f.txns.RefundTransaction(ctx, txn.ID, "again")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("Full refund", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "3.00", 0)
		txn := f.completedPurchase(t, c.ID)

		refunded, err := f.txns.RefundTransaction(ctx, txn.ID, "duplicate purchase")
		require.NoError(t, err)
		assert.Equal(t, "1100.00", refunded.RefundedCredits.StringFixed(2))
		assert.True(t, refunded.AbsorbedCredits.IsZero())
		assert.Equal(t, "3.00", f.balance(t, c.ID).Credits.StringFixed(2))
	})

	t.Run("Pending cannot be refunded", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "0", 0)
		txn, err := f.txns.CreateTransaction(ctx, c.ID, "starter", domain.PaymentMethodStripe)
		require.NoError(t, err)

		_, err = f.txns.RefundTransaction(ctx, txn.ID, "nope")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("Blocked by an open chargeback", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "0", 0)
		txn := f.completedPurchase(t, c.ID)
		_, err := f.txns.CreateChargeback(ctx, txn.ID, "fraud", decimal.NewFromInt(10), domain.ChargebackMeta{})
		require.NoError(t, err)

		_, err = f.txns.RefundTransaction(ctx, txn.ID, "customer request")
		assert.ErrorIs(t, err, domain.ErrChargebackOpen)
		assert.Equal(t, "1100.00", f.balance(t, c.ID).Credits.StringFixed(2))
	})

	t.Run("Partial chargeback then refund takes only the remainder", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "0", 0)
		txn := f.completedPurchase(t, c.ID)
		cb, err := f.txns.CreateChargeback(ctx, txn.ID, "fraud", decimal.RequireFromString("20.00"), domain.ChargebackMeta{})
		require.NoError(t, err)
		_, err = f.txns.ResolveChargeback(ctx, cb.ID, domain.ChargebackStatusPartial, decimal.NewFromInt(10), "split")
		require.NoError(t, err)
		require.Equal(t, "879.96", f.balance(t, c.ID).Credits.StringFixed(2))

		refunded, err := f.txns.RefundTransaction(ctx, txn.ID, "customer request")
		require.NoError(t, err)
		assert.Equal(t, "879.96", refunded.RefundedCredits.StringFixed(2))
		assert.True(t, refunded.AbsorbedCredits.IsZero())
		assert.True(t, f.balance(t, c.ID).Credits.IsZero())
	})

	t.Run("Fully charged back purchase cannot be refunded", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "5000", 0)
		txn := f.completedPurchase(t, c.ID)
		cb, err := f.txns.CreateChargeback(ctx, txn.ID, "fraud", decimal.RequireFromString("49.99"), domain.ChargebackMeta{})
		require.NoError(t, err)
		resolved, err := f.txns.ResolveChargeback(ctx, cb.ID, domain.ChargebackStatusPartial, decimal.RequireFromString("49.99"), "")
		require.NoError(t, err)
		require.Equal(t, "1100.00", resolved.CreditsDebited.StringFixed(2))
		require.Equal(t, "5000.00", f.balance(t, c.ID).Credits.StringFixed(2))

		_, err = f.txns.RefundTransaction(ctx, txn.ID, "customer request")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Equal(t, "5000.00", f.balance(t, c.ID).Credits.StringFixed(2))
		got, _ := f.txns.GetTransaction(ctx, txn.ID)
		assert.Equal(t, domain.TransactionStatusCompleted, got.Status)
	})

	t.Run("Reason required", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.txns.RefundTransaction(ctx, "txn", " ")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestTransactionService_CreateChargeback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.customer(t, "0", 0)
	txn := f.completedPurchase(t, c.ID)

	t.Run("Amount above purchase price", func(t *testing.T) {
		_, err := f.txns.CreateChargeback(ctx, txn.ID, "fraud", decimal.RequireFromString("50.00"), domain.ChargebackMeta{})
		assert.ErrorIs(t, err, domain.ErrInvalidChargebackAmount)

		cbs, _ := f.store.ChargebackRepository.ListByTransaction(ctx, txn.ID)
		assert.Empty(t, cbs)
		assert.Equal(t, "1100.00", f.balance(t, c.ID).Credits.StringFixed(2))
	})

	t.Run("Zero amount", func(t *testing.T) {
		_, err := f.txns.CreateChargeback(ctx, txn.ID, "fraud", decimal.Zero, domain.ChargebackMeta{})
		assert.ErrorIs(t, err, domain.ErrInvalidChargebackAmount)
	})

	t.Run("Pending transaction", func(t *testing.T) {
		pending, err := f.txns.CreateTransaction(ctx, c.ID, "starter", domain.PaymentMethodStripe)
		require.NoError(t, err)
		_, err = f.txns.CreateChargeback(ctx, pending.ID, "fraud", decimal.NewFromInt(1), domain.ChargebackMeta{})
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("One open chargeback at a time", func(t *testing.T) {
		cb, err := f.txns.CreateChargeback(ctx, txn.ID, "not recognised", decimal.RequireFromString("49.99"),
			domain.ChargebackMeta{ProcessorCaseID: "dp_1", Notes: "first notice"})
		require.NoError(t, err)
		assert.Equal(t, domain.ChargebackStatusPending, cb.Status)
		assert.Equal(t, c.ID, cb.CustomerID)
		assert.Equal(t, "dp_1", cb.ProcessorCaseID)
		assert.Equal(t, "1100.00", f.balance(t, c.ID).Credits.StringFixed(2), "opening a dispute moves no credits")

		_, err = f.txns.CreateChargeback(ctx, txn.ID, "again", decimal.NewFromInt(1), domain.ChargebackMeta{})
		assert.ErrorIs(t, err, domain.ErrChargebackOpen)
		f.notifier.AssertNumberOfCalls(t, "SendChargebackAlert", 1)
	})
}

func TestTransactionService_ResolveChargeback(t *testing.T) {
	ctx := context.Background()

	open := func(t *testing.T, f *fixture, amount string) (*domain.Customer, *domain.Transaction, *domain.Chargeback) {
		c := f.customer(t, "0", 0)
		txn := f.completedPurchase(t, c.ID)
		cb, err := f.txns.CreateChargeback(ctx, txn.ID, "fraud", decimal.RequireFromString(amount), domain.ChargebackMeta{})
		require.NoError(t, err)
		return c, txn, cb
	}

	t.Run("Lost debits converted credits and reverses", func(t *testing.T) {
		f := newFixture(t)
		c, txn, cb := open(t, f, "49.99")

		resolved, err := f.txns.ResolveChargeback(ctx, cb.ID, domain.ChargebackStatusLost, decimal.Zero, "bank sided with cardholder")
		require.NoError(t, err)
		assert.Equal(t, domain.ChargebackStatusLost, resolved.Status)
		assert.Equal(t, "1100.00", resolved.CreditsDebited.StringFixed(2))
		assert.NotNil(t, resolved.ResolvedAt)
		assert.True(t, f.balance(t, c.ID).Credits.IsZero())

		got, _ := f.txns.GetTransaction(ctx, txn.ID)
		assert.True(t, got.Reversed)

		_, err = f.txns.ResolveChargeback(ctx, cb.ID, domain.ChargebackStatusLost, decimal.Zero, "")
		assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
		assert.True(t, f.balance(t, c.ID).Credits.IsZero())

		_, err = f.txns.RefundTransaction(ctx, txn.ID, "too late")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("Partial debits the adjustment", func(t *testing.T) {
		f := newFixture(t)
		c, _, cb := open(t, f, "20.00")

		_, err := f.txns.ResolveChargeback(ctx, cb.ID, domain.ChargebackStatusPartial, decimal.NewFromInt(25), "")
		assert.ErrorIs(t, err, domain.ErrInvalidChargebackAmount)
		still, _ := f.store.ChargebackRepository.GetByID(ctx, cb.ID)
		assert.Equal(t, domain.ChargebackStatusPending, still.Status)

		resolved, err := f.txns.ResolveChargeback(ctx, cb.ID, domain.ChargebackStatusPartial, decimal.NewFromInt(10), "split")
		require.NoError(t, err)
		assert.Equal(t, "10.00", resolved.AdjustmentAmount.StringFixed(2))
		assert.Equal(t, "220.04", resolved.CreditsDebited.StringFixed(2))
		assert.Equal(t, "879.96", f.balance(t, c.ID).Credits.StringFixed(2))
	})

	t.Run("Won changes nothing", func(t *testing.T) {
		f := newFixture(t)
		c, txn, cb := open(t, f, "49.99")

		resolved, err := f.txns.ResolveChargeback(ctx, cb.ID, domain.ChargebackStatusWon, decimal.Zero, "evidence accepted")
		require.NoError(t, err)
		assert.Equal(t, domain.ChargebackStatusWon, resolved.Status)
		assert.True(t, resolved.CreditsDebited.IsZero())
		assert.Equal(t, "1100.00", f.balance(t, c.ID).Credits.StringFixed(2))

		_, err = f.txns.CreateChargeback(ctx, txn.ID, "second dispute", decimal.NewFromInt(5), domain.ChargebackMeta{})
		assert.NoError(t, err, "a resolved dispute does not block a new one")
	})

	t.Run("Later disputes are bounded by earlier adjustments", func(t *testing.T) {
		f := newFixture(t)
		c, txn, cb := open(t, f, "20.00")
		_, err := f.txns.ResolveChargeback(ctx, cb.ID, domain.ChargebackStatusPartial, decimal.NewFromInt(10), "")
		require.NoError(t, err)

		_, err = f.txns.CreateChargeback(ctx, txn.ID, "second dispute", decimal.RequireFromString("40.00"), domain.ChargebackMeta{})
		assert.ErrorIs(t, err, domain.ErrInvalidChargebackAmount)

		second, err := f.txns.CreateChargeback(ctx, txn.ID, "second dispute", decimal.RequireFromString("39.99"), domain.ChargebackMeta{})
		require.NoError(t, err)
		lost, err := f.txns.ResolveChargeback(ctx, second.ID, domain.ChargebackStatusLost, decimal.Zero, "")
		require.NoError(t, err)
		assert.Equal(t, "879.96", lost.CreditsDebited.StringFixed(2))
		assert.True(t, f.balance(t, c.ID).Credits.IsZero())

		_, err = f.txns.CreateChargeback(ctx, txn.ID, "third dispute", decimal.RequireFromString("0.01"), domain.ChargebackMeta{})
		assert.Error(t, err)
	})

	t.Run("Pending is not a resolution", func(t *testing.T) {
		f := newFixture(t)
		_, _, cb := open(t, f, "1.00")
		_, err := f.txns.ResolveChargeback(ctx, cb.ID, domain.ChargebackStatusPending, decimal.Zero, "")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Unknown chargeback", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.txns.ResolveChargeback(ctx, "nope", domain.ChargebackStatusWon, decimal.Zero, "")
		assert.ErrorIs(t, err, domain.ErrChargebackNotFound)
	})
}

func TestTransactionService_FailStalePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.customer(t, "0", 0)

	stale, err := f.txns.CreateTransaction(ctx, c.ID, "starter", domain.PaymentMethodStripe)
	require.NoError(t, err)
	inFlight, err := f.txns.CreateTransaction(ctx, c.ID, "standard", domain.PaymentMethodStripe)
	require.NoError(t, err)
	ok, err := f.guard.Acquire(ctx, inFlight.ID, "someone-else", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	f.txns.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	fresh, err := f.txns.CreateTransaction(ctx, c.ID, "deluxe", domain.PaymentMethodStripe)
	require.NoError(t, err)

	n, err := f.txns.FailStalePending(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := f.txns.GetTransaction(ctx, stale.ID)
	assert.Equal(t, domain.TransactionStatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "expired")

	got, _ = f.txns.GetTransaction(ctx, inFlight.ID)
	assert.Equal(t, domain.TransactionStatusPending, got.Status)
	got, _ = f.txns.GetTransaction(ctx, fresh.ID)
	assert.Equal(t, domain.TransactionStatusPending, got.Status)
}

func TestTransactionService_ListCustomerTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.customer(t, "0", 0)
	f.completedPurchase(t, c.ID)
	_, err := f.txns.CreateTransaction(ctx, c.ID, "starter", domain.PaymentMethodStripe)
	require.NoError(t, err)

	txns, err := f.txns.ListCustomerTransactions(ctx, c.ID, domain.TransactionFilter{
		Statuses: []domain.TransactionStatus{domain.TransactionStatusCompleted},
	})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "deluxe", txns[0].PackageID)

	_, err = f.txns.ListCustomerTransactions(ctx, c.ID, domain.TransactionFilter{
		Statuses: []domain.TransactionStatus{"settled"},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

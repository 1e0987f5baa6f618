package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/idempotency"
	"creditline-backend/internal/payment"
	"creditline-backend/internal/repository/boltdb"
	"creditline-backend/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// MockProcessor
type MockProcessor struct {
	mock.Mock
	method domain.PaymentMethod
}

func (m *MockProcessor) Method() domain.PaymentMethod {
	return m.method
}

func (m *MockProcessor) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeResult), args.Error(1)
}

// MockNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendPurchaseReceipt(ctx context.Context, c *domain.Customer, t *domain.Transaction) error {
	args := m.Called(ctx, c, t)
	return args.Error(0)
}

func (m *MockNotifier) SendRefundNotice(ctx context.Context, c *domain.Customer, t *domain.Transaction) error {
	args := m.Called(ctx, c, t)
	return args.Error(0)
}

func (m *MockNotifier) SendChargebackAlert(ctx context.Context, cb *domain.Chargeback, t *domain.Transaction) error {
	args := m.Called(ctx, cb, t)
	return args.Error(0)
}

func (m *MockNotifier) SendDailyDigest(ctx context.Context, d *domain.DailyDigest) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

type fixture struct {
	store     *boltdb.Store
	rates     *utils.RateTable
	processor *MockProcessor
	notifier  *MockNotifier
	guard     *idempotency.LocalGuard

	txns      *transactionService
	activity  *activityService
	messaging *messagingService
	reporting *reportingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:     store,
		rates:     utils.DefaultRateTable(),
		processor: &MockProcessor{method: domain.PaymentMethodStripe},
		notifier:  new(MockNotifier),
		guard:     idempotency.NewLocalGuard(),
	}
	f.notifier.On("SendPurchaseReceipt", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.notifier.On("SendRefundNotice", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.notifier.On("SendChargebackAlert", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	registry := payment.NewRegistry(f.processor, payment.NewSandbox())
	settings := PaymentSettings{ProcessorTimeout: 50 * time.Millisecond, LeaseTTL: time.Minute}

	f.txns = NewTransactionService(store.CustomerRepository, store.TransactionRepository, store.ChargebackRepository,
		store.LedgerStore, f.rates, registry, f.guard, f.notifier, settings).(*transactionService)
	f.txns.now = fixedClock
	f.activity = NewActivityService(store.ActivityRepository, store.ViewRepository, store.LedgerStore, f.rates).(*activityService)
	f.activity.now = fixedClock
	f.messaging = NewMessagingService(store.ConversationRepository, store.LedgerStore, f.rates).(*messagingService)
	f.messaging.now = fixedClock
	f.reporting = NewReportingService(store.TransactionRepository, store.ChargebackRepository, store.ActivityRepository, store.ViewRepository).(*reportingService)
	f.reporting.now = fixedClock
	return f
}

func (f *fixture) customer(t *testing.T, credits string, freeMessages int32) *domain.Customer {
	t.Helper()
	c := &domain.Customer{Email: "cust@example.com", DisplayName: "Cust", Credits: decimal.RequireFromString(credits), FreeChatMessages: freeMessages}
	require.NoError(t, f.store.CustomerRepository.Create(context.Background(), c))
	return c
}

func (f *fixture) balance(t *testing.T, customerID string) *domain.Customer {
	t.Helper()
	c, err := f.store.CustomerRepository.GetByID(context.Background(), customerID)
	require.NoError(t, err)
	return c
}

func (f *fixture) conversation(t *testing.T, customerID, operatorID string) *domain.Conversation {
	t.Helper()
	conv := &domain.Conversation{CustomerID: customerID, OperatorID: operatorID, SiteDomain: "example.com"}
	require.NoError(t, f.store.ConversationRepository.Create(context.Background(), conv))
	return conv
}

// completedPurchase runs a deluxe stripe purchase through to completion.
func (f *fixture) completedPurchase(t *testing.T, customerID string) *domain.Transaction {
	t.Helper()
	ctx := context.Background()
	txn, err := f.txns.CreateTransaction(ctx, customerID, "deluxe", domain.PaymentMethodStripe)
	require.NoError(t, err)
	f.processor.On("Charge", mock.Anything, mock.MatchedBy(func(r payment.ChargeRequest) bool { return r.TransactionID == txn.ID })).
		Return(&payment.ChargeResult{Reference: "pi_" + txn.ID}, nil).Once()
	done, err := f.txns.ProcessPayment(ctx, txn.ID, domain.PaymentData{Token: "pm_card_visa"})
	require.NoError(t, err)
	require.Equal(t, domain.TransactionStatusCompleted, done.Status)
	return done
}

package service

import (
	"context"
	"time"

	"creditline-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// Clock returns the current instant. Services take one so date presets and
// timestamps are reproducible in tests.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

type TransactionService interface {
	CreateTransaction(ctx context.Context, customerID, packageID string, method domain.PaymentMethod) (*domain.Transaction, error)
	ProcessPayment(ctx context.Context, transactionID string, data domain.PaymentData) (*domain.Transaction, error)
	RefundTransaction(ctx context.Context, transactionID, reason string) (*domain.Transaction, error)
	CreateChargeback(ctx context.Context, transactionID, reason string, amount decimal.Decimal, meta domain.ChargebackMeta) (*domain.Chargeback, error)
	ResolveChargeback(ctx context.Context, chargebackID string, resolution domain.ChargebackStatus, adjustment decimal.Decimal, notes string) (*domain.Chargeback, error)
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
	ListCustomerTransactions(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error)
	FailStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

type ActivityService interface {
	RecordActivity(ctx context.Context, req domain.ActivityRequest) (*domain.Activity, error)
	GetActivity(ctx context.Context, activityID string) (*domain.Activity, error)
	RecordProfileView(ctx context.Context, viewerID, profileID string) (*domain.ProfileView, error)
}

// MessagingService is the billing hook the chat feature calls when an
// operator sends something to a customer.
type MessagingService interface {
	SendFreeReply(ctx context.Context, operatorID, conversationID, content string) (*domain.SentMessage, error)
	SendPaidReply(ctx context.Context, operatorID, conversationID, content string, price decimal.Decimal) (*domain.SentMessage, error)
	SendMarketing(ctx context.Context, operatorID, conversationID, content string) (*domain.SentMessage, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

type ReportingService interface {
	GetTransactionStats(ctx context.Context) (*domain.TransactionStats, error)
	GetAllChargebacks(ctx context.Context) (*domain.ChargebackReport, error)
	GetOperatorEarnings(ctx context.Context, operatorID string, r domain.DateRange, filter domain.ActivityFilter) (*domain.EarningsReport, error)
	GetCustomerSpending(ctx context.Context, customerID string, r domain.DateRange, filter domain.ActivityFilter) (*domain.SpendingReport, error)
	GetMostViewedOperators(ctx context.Context, customerID string, limit int) ([]domain.ViewCount, error)
	GetProfileViewers(ctx context.Context, profileID string, r domain.DateRange) ([]domain.ViewCount, error)
	GetDateRangePreset(name string) domain.DateRange
	GetDailyDigest(ctx context.Context, r domain.DateRange) (*domain.DailyDigest, error)
}

// Notifier delivers ledger notifications. Failures never roll back a
// committed ledger change; callers only log them.
type Notifier interface {
	SendPurchaseReceipt(ctx context.Context, customer *domain.Customer, txn *domain.Transaction) error
	SendRefundNotice(ctx context.Context, customer *domain.Customer, txn *domain.Transaction) error
	SendChargebackAlert(ctx context.Context, cb *domain.Chargeback, txn *domain.Transaction) error
	SendDailyDigest(ctx context.Context, digest *domain.DailyDigest) error
}

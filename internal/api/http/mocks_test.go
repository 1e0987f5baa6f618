package http

import (
	"context"
	"time"

	"creditline-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockTransactionService
type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) CreateTransaction(ctx context.Context, customerID, packageID string, method domain.PaymentMethod) (*domain.Transaction, error) {
	args := m.Called(ctx, customerID, packageID, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionService) ProcessPayment(ctx context.Context, transactionID string, data domain.PaymentData) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionService) RefundTransaction(ctx context.Context, transactionID, reason string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionService) CreateChargeback(ctx context.Context, transactionID, reason string, amount decimal.Decimal, meta domain.ChargebackMeta) (*domain.Chargeback, error) {
	args := m.Called(ctx, transactionID, reason, amount, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chargeback), args.Error(1)
}
func (m *MockTransactionService) ResolveChargeback(ctx context.Context, chargebackID string, resolution domain.ChargebackStatus, adjustment decimal.Decimal, notes string) (*domain.Chargeback, error) {
	args := m.Called(ctx, chargebackID, resolution, adjustment, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chargeback), args.Error(1)
}
func (m *MockTransactionService) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionService) ListCustomerTransactions(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	args := m.Called(ctx, customerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}
func (m *MockTransactionService) FailStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

// MockActivityService
type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) RecordActivity(ctx context.Context, req domain.ActivityRequest) (*domain.Activity, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Activity), args.Error(1)
}
func (m *MockActivityService) GetActivity(ctx context.Context, activityID string) (*domain.Activity, error) {
	args := m.Called(ctx, activityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Activity), args.Error(1)
}
func (m *MockActivityService) RecordProfileView(ctx context.Context, viewerID, profileID string) (*domain.ProfileView, error) {
	args := m.Called(ctx, viewerID, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProfileView), args.Error(1)
}

// MockMessagingService
type MockMessagingService struct {
	mock.Mock
}

func (m *MockMessagingService) SendFreeReply(ctx context.Context, operatorID, conversationID, content string) (*domain.SentMessage, error) {
	args := m.Called(ctx, operatorID, conversationID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SentMessage), args.Error(1)
}
func (m *MockMessagingService) SendPaidReply(ctx context.Context, operatorID, conversationID, content string, price decimal.Decimal) (*domain.SentMessage, error) {
	args := m.Called(ctx, operatorID, conversationID, content, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SentMessage), args.Error(1)
}
func (m *MockMessagingService) SendMarketing(ctx context.Context, operatorID, conversationID, content string) (*domain.SentMessage, error) {
	args := m.Called(ctx, operatorID, conversationID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SentMessage), args.Error(1)
}
func (m *MockMessagingService) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

// MockReportingService
type MockReportingService struct {
	mock.Mock
}

func (m *MockReportingService) GetTransactionStats(ctx context.Context) (*domain.TransactionStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionStats), args.Error(1)
}
func (m *MockReportingService) GetAllChargebacks(ctx context.Context) (*domain.ChargebackReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChargebackReport), args.Error(1)
}
func (m *MockReportingService) GetOperatorEarnings(ctx context.Context, operatorID string, r domain.DateRange, filter domain.ActivityFilter) (*domain.EarningsReport, error) {
	args := m.Called(ctx, operatorID, r, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EarningsReport), args.Error(1)
}
func (m *MockReportingService) GetCustomerSpending(ctx context.Context, customerID string, r domain.DateRange, filter domain.ActivityFilter) (*domain.SpendingReport, error) {
	args := m.Called(ctx, customerID, r, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SpendingReport), args.Error(1)
}
func (m *MockReportingService) GetMostViewedOperators(ctx context.Context, customerID string, limit int) ([]domain.ViewCount, error) {
	args := m.Called(ctx, customerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ViewCount), args.Error(1)
}
func (m *MockReportingService) GetProfileViewers(ctx context.Context, profileID string, r domain.DateRange) ([]domain.ViewCount, error) {
	args := m.Called(ctx, profileID, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ViewCount), args.Error(1)
}
func (m *MockReportingService) GetDateRangePreset(name string) domain.DateRange {
	args := m.Called(name)
	return args.Get(0).(domain.DateRange)
}
func (m *MockReportingService) GetDailyDigest(ctx context.Context, r domain.DateRange) (*domain.DailyDigest, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DailyDigest), args.Error(1)
}

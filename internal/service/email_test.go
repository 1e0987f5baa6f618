package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"creditline-backend/internal/domain"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func sampleTxn() (*domain.Customer, *domain.Transaction) {
	c := &domain.Customer{ID: "cust-1", Email: "ann@example.com", DisplayName: "Ann", Credits: decimal.RequireFromString("1105.50")}
	t := &domain.Transaction{
		ID: "txn-1", CustomerID: c.ID, PackageID: "deluxe", AmountUSD: decimal.RequireFromString("49.99"),
		Credits: decimal.NewFromInt(1000), Bonus: decimal.NewFromInt(100), Status: domain.TransactionStatusCompleted,
	}
	return c, t
}

func TestEmailService(t *testing.T) {
	ctx := context.Background()
	var sent []*gomail.Message
	svc := &emailService{from: "billing@example.com", admin: "ops@example.com", dialAndSend: func(m ...*gomail.Message) error {
		sent = append(sent, m...)
		return nil
	}}
	c, txn := sampleTxn()

	t.Run("Purchase receipt", func(t *testing.T) {
		require.NoError(t, svc.SendPurchaseReceipt(ctx, c, txn))
		require.Len(t, sent, 1)
		assert.Equal(t, []string{"ann@example.com"}, sent[0].GetHeader("To"))
		assert.Equal(t, []string{"Your credit purchase receipt"}, sent[0].GetHeader("Subject"))
	})

	t.Run("Chargeback alert goes to admin", func(t *testing.T) {
		cb := &domain.Chargeback{ID: "cb-1", CustomerID: c.ID, Amount: decimal.NewFromInt(10), Reason: "fraud"}
		require.NoError(t, svc.SendChargebackAlert(ctx, cb, txn))
		assert.Equal(t, []string{"ops@example.com"}, sent[len(sent)-1].GetHeader("To"))
	})

	t.Run("Dial failure is wrapped", func(t *testing.T) {
		failing := &emailService{from: "billing@example.com", dialAndSend: func(m ...*gomail.Message) error {
			return errors.New("connection refused")
		}}
		err := failing.SendRefundNotice(ctx, c, txn)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("No admin configured", func(t *testing.T) {
		before := len(sent)
		noAdmin := &emailService{from: "billing@example.com", dialAndSend: svc.dialAndSend}
		require.NoError(t, noAdmin.SendDailyDigest(ctx, &domain.DailyDigest{}))
		assert.Len(t, sent, before)
	})
}

type fakeSendGrid struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeSendGrid) Send(email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridService(t *testing.T) {
	ctx := context.Background()
	c, txn := sampleTxn()

	t.Run("Success", func(t *testing.T) {
		client := &fakeSendGrid{status: 202}
		svc := &sendGridService{client: client, fromEmail: "billing@example.com", fromName: "Billing", admin: "ops@example.com"}

		require.NoError(t, svc.SendPurchaseReceipt(ctx, c, txn))
		require.Len(t, client.sent, 1)
		assert.Equal(t, "Your credit purchase receipt", client.sent[0].Subject)
		assert.Equal(t, "billing@example.com", client.sent[0].From.Address)
	})

	t.Run("API rejection", func(t *testing.T) {
		client := &fakeSendGrid{status: 401}
		svc := &sendGridService{client: client, fromEmail: "billing@example.com", admin: "ops@example.com"}

		now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
		digest := &domain.DailyDigest{Range: domain.DateRange{Start: now, End: now.Add(24*time.Hour - time.Second)}, Transactions: domain.NewTransactionStats()}
		err := svc.SendDailyDigest(ctx, digest)
		assert.ErrorContains(t, err, "status 401")
	})
}

func TestDailyDigestContent(t *testing.T) {
	stats := domain.NewTransactionStats()
	stats.AddStatus(domain.TransactionStatusCompleted, domain.StatusTotal{Count: 2, AmountUSD: decimal.RequireFromString("99.98"), Credits: decimal.NewFromInt(2200)}, 1, decimal.RequireFromString("49.99"))
	day := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)

	e := dailyDigest("ops@example.com", &domain.DailyDigest{
		Range:            domain.DateRange{Start: day, End: day.Add(24*time.Hour - time.Second)},
		Transactions:     stats,
		OpenChargebacks:  1,
		ChargebackAmount: decimal.NewFromInt(10),
	})
	assert.Equal(t, "Daily ledger digest 2024-03-14", e.Subject)
	assert.Contains(t, e.Body, "Net revenue: $49.99 (1 reversed)")
	assert.Contains(t, e.Body, "Open chargebacks: 1 ($10.00)")
}

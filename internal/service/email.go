package service

import (
	"context"
	"fmt"
	"strings"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/logger"

	"gopkg.in/gomail.v2"
)

// emailContent is a rendered notification shared by every notifier.
type emailContent struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

func purchaseReceipt(c *domain.Customer, t *domain.Transaction) emailContent {
	body := fmt.Sprintf("Hello %s,\n\nThank you for your purchase.\n\nPackage: %s\nAmount charged: $%s\nCredits: %s\nBonus: %s\nNew balance: %s\n\nReference: %s\n\nBest regards,\nThe Billing Team",
		displayName(c), t.PackageID, t.AmountUSD.StringFixed(2), t.Credits.StringFixed(2), t.Bonus.StringFixed(2), c.Credits.StringFixed(2), t.ID)
	return emailContent{To: c.Email, ToName: c.DisplayName, Subject: "Your credit purchase receipt", Body: body}
}

func refundNotice(c *domain.Customer, t *domain.Transaction) emailContent {
	body := fmt.Sprintf("Hello %s,\n\nYour purchase of the %s package ($%s) has been refunded.\n\nCredits removed: %s\nReason: %s\nNew balance: %s\n\nBest regards,\nThe Billing Team",
		displayName(c), t.PackageID, t.AmountUSD.StringFixed(2), t.RefundedCredits.StringFixed(2), t.RefundReason, c.Credits.StringFixed(2))
	return emailContent{To: c.Email, ToName: c.DisplayName, Subject: "Your purchase has been refunded", Body: body}
}

func chargebackAlert(admin string, cb *domain.Chargeback, t *domain.Transaction) emailContent {
	body := fmt.Sprintf("A chargeback was opened.\n\nChargeback: %s\nTransaction: %s\nCustomer: %s\nDisputed: $%s of $%s\nReason: %s\nProcessor case: %s",
		cb.ID, t.ID, cb.CustomerID, cb.Amount.StringFixed(2), t.AmountUSD.StringFixed(2), cb.Reason, cb.ProcessorCaseID)
	return emailContent{To: admin, Subject: fmt.Sprintf("Chargeback opened: $%s on %s", cb.Amount.StringFixed(2), t.ID), Body: body}
}

func dailyDigest(admin string, d *domain.DailyDigest) emailContent {
	var b strings.Builder
	fmt.Fprintf(&b, "Ledger summary for %s to %s\n\n", d.Range.Start.Format("2006-01-02 15:04"), d.Range.End.Format("2006-01-02 15:04"))
	if d.Transactions != nil {
		for _, st := range domain.AllTransactionStatuses {
			t := d.Transactions.ByStatus[st]
			fmt.Fprintf(&b, "%-10s %5d  $%s  %s credits\n", st, t.Count, t.AmountUSD.StringFixed(2), t.Credits.StringFixed(2))
		}
		fmt.Fprintf(&b, "\nNet revenue: $%s (%d reversed)\n", d.Transactions.NetRevenueUSD.StringFixed(2), d.Transactions.ReversedCount)
	}
	fmt.Fprintf(&b, "Open chargebacks: %d ($%s)\n", d.OpenChargebacks, d.ChargebackAmount.StringFixed(2))
	return emailContent{To: admin, Subject: "Daily ledger digest " + d.Range.Start.Format("2006-01-02"), Body: b.String()}
}

func displayName(c *domain.Customer) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Email
}

type emailService struct {
	from        string
	admin       string
	dialAndSend func(m ...*gomail.Message) error
}

// NewEmailService sends notifications over SMTP.
func NewEmailService(host string, port int, username, password, from, admin string) Notifier {
	d := gomail.NewDialer(host, port, username, password)
	return &emailService{from: from, admin: admin, dialAndSend: d.DialAndSend}
}

func (s *emailService) SendPurchaseReceipt(ctx context.Context, c *domain.Customer, t *domain.Transaction) error {
	return s.send(purchaseReceipt(c, t))
}

func (s *emailService) SendRefundNotice(ctx context.Context, c *domain.Customer, t *domain.Transaction) error {
	return s.send(refundNotice(c, t))
}

func (s *emailService) SendChargebackAlert(ctx context.Context, cb *domain.Chargeback, t *domain.Transaction) error {
	return s.send(chargebackAlert(s.admin, cb, t))
}

func (s *emailService) SendDailyDigest(ctx context.Context, d *domain.DailyDigest) error {
	return s.send(dailyDigest(s.admin, d))
}

func (s *emailService) send(e emailContent) error {
	if e.To == "" {
		logger.Debug("Skipping email without recipient", "subject", e.Subject)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/plain", e.Body)

	logger.ExternalServiceCall("smtp", "DialAndSend", "to", e.To, "subject", e.Subject)
	err := s.dialAndSend(m)
	logger.ExternalServiceResult("smtp", "DialAndSend", err)
	if err != nil {
		return fmt.Errorf("failed to send email via gomail: %w", err)
	}
	return nil
}

type noopNotifier struct{}

// NewNoopNotifier logs notifications instead of sending them.
func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) SendPurchaseReceipt(ctx context.Context, c *domain.Customer, t *domain.Transaction) error {
	logger.DebugContext(ctx, "Notification suppressed", "kind", "purchase_receipt", "transaction_id", t.ID)
	return nil
}

func (noopNotifier) SendRefundNotice(ctx context.Context, c *domain.Customer, t *domain.Transaction) error {
	logger.DebugContext(ctx, "Notification suppressed", "kind", "refund_notice", "transaction_id", t.ID)
	return nil
}

func (noopNotifier) SendChargebackAlert(ctx context.Context, cb *domain.Chargeback, t *domain.Transaction) error {
	logger.DebugContext(ctx, "Notification suppressed", "kind", "chargeback_alert", "chargeback_id", cb.ID)
	return nil
}

func (noopNotifier) SendDailyDigest(ctx context.Context, d *domain.DailyDigest) error {
	logger.DebugContext(ctx, "Notification suppressed", "kind", "daily_digest")
	return nil
}

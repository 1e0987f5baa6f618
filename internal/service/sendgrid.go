package service

import (
	"context"
	"fmt"
	"html"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/logger"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendGridClient interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type sendGridService struct {
	client    sendGridClient
	fromEmail string
	fromName  string
	admin     string
}

// NewSendGridService sends notifications through the SendGrid v3 API.
func NewSendGridService(apiKey, fromEmail, fromName, admin string) Notifier {
	return &sendGridService{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		admin:     admin,
	}
}

func (s *sendGridService) SendPurchaseReceipt(ctx context.Context, c *domain.Customer, t *domain.Transaction) error {
	return s.send(purchaseReceipt(c, t))
}

func (s *sendGridService) SendRefundNotice(ctx context.Context, c *domain.Customer, t *domain.Transaction) error {
	return s.send(refundNotice(c, t))
}

func (s *sendGridService) SendChargebackAlert(ctx context.Context, cb *domain.Chargeback, t *domain.Transaction) error {
	return s.send(chargebackAlert(s.admin, cb, t))
}

func (s *sendGridService) SendDailyDigest(ctx context.Context, d *domain.DailyDigest) error {
	return s.send(dailyDigest(s.admin, d))
}

func (s *sendGridService) send(e emailContent) error {
	if e.To == "" {
		return nil
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(e.ToName, e.To)
	message := mail.NewSingleEmail(from, e.Subject, recipient, e.Body, "<pre>"+html.EscapeString(e.Body)+"</pre>")

	logger.ExternalServiceCall("sendgrid", "Send", "to", e.To, "subject", e.Subject)
	response, err := s.client.Send(message)
	if err != nil {
		logger.ExternalServiceResult("sendgrid", "Send", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		err := fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("sendgrid", "Send", err)
		return err
	}
	logger.ExternalServiceResult("sendgrid", "Send", nil, "status", response.StatusCode)
	return nil
}

package service

import (
	"context"
	"errors"
	"strings"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/metrics"
	"creditline-backend/internal/repository"
	"creditline-backend/internal/utils"

	"github.com/shopspring/decimal"
)

type messagingService struct {
	conversationRepo repository.ConversationRepository
	ledger           repository.LedgerStore
	rates            *utils.RateTable
	now              Clock
}

func NewMessagingService(
	conversationRepo repository.ConversationRepository,
	ledger repository.LedgerStore,
	rates *utils.RateTable,
) MessagingService {
	return &messagingService{
		conversationRepo: conversationRepo,
		ledger:           ledger,
		rates:            rates,
		now:              systemClock,
	}
}

func (s *messagingService) SendFreeReply(ctx context.Context, operatorID, conversationID, content string) (*domain.SentMessage, error) {
	return s.send(ctx, "SendFreeReply", operatorID, conversationID, content, domain.MessageKindFreeReply, domain.ActivityTypeMessage, decimal.Zero)
}

func (s *messagingService) SendPaidReply(ctx context.Context, operatorID, conversationID, content string, price decimal.Decimal) (*domain.SentMessage, error) {
	if price.IsNegative() {
		return nil, domain.Validationf("price must not be negative")
	}
	return s.send(ctx, "SendPaidReply", operatorID, conversationID, content, domain.MessageKindPaidReply, domain.ActivityTypePaidOperatorMessage, price)
}

func (s *messagingService) SendMarketing(ctx context.Context, operatorID, conversationID, content string) (*domain.SentMessage, error) {
	return s.send(ctx, "SendMarketing", operatorID, conversationID, content, domain.MessageKindMarketing, domain.ActivityTypeMarketing, decimal.Zero)
}

func (s *messagingService) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	if _, err := s.conversationRepo.GetByID(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.conversationRepo.ListMessages(ctx, conversationID)
}

func (s *messagingService) send(
	ctx context.Context,
	method, operatorID, conversationID, content string,
	kind domain.MessageKind,
	typ domain.ActivityType,
	price decimal.Decimal,
) (*domain.SentMessage, error) {
	methodName := "messagingService." + method
	logger.EnterMethod(methodName, "operatorID", operatorID, "conversationID", conversationID)

	if strings.TrimSpace(content) == "" {
		err := domain.Validationf("message content is required")
		logger.ExitMethodRejected(methodName, err)
		return nil, err
	}

	conv, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		logger.ExitMethodWithError(methodName, err)
		return nil, err
	}
	if conv.OperatorID != operatorID {
		err := domain.Validationf("operator %s does not own conversation %s", operatorID, conversationID)
		logger.ExitMethodRejected(methodName, err)
		return nil, err
	}

	req := domain.ActivityRequest{
		CustomerID: conv.CustomerID,
		OperatorID: operatorID,
		Type:       typ,
		SiteDomain: conv.SiteDomain,
		Amount:     price,
	}

	var sent domain.SentMessage
	var balance *domain.Customer
	err = s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		c, err := tx.LockCustomer(ctx, conv.CustomerID)
		if err != nil {
			return err
		}
		// A free reply never falls back to charging the customer.
		if kind == domain.MessageKindFreeReply && c.FreeChatMessages <= 0 {
			return domain.ErrNoFreeMessages
		}

		now := s.now()
		act, err := applyActivity(ctx, tx, s.rates, c, req, now)
		if err != nil {
			return err
		}

		msg := &domain.Message{
			ConversationID: conv.ID,
			OperatorID:     operatorID,
			CustomerID:     conv.CustomerID,
			Kind:           kind,
			Content:        content,
			Price:          act.Amount,
			ActivityID:     act.ID,
			CreatedAt:      now.UTC(),
		}
		if err := tx.CreateMessage(ctx, msg); err != nil {
			return err
		}

		sent = domain.SentMessage{Message: msg, Activity: act}
		balance = c
		return nil
	})
	if err != nil {
		metrics.ObserveRejection(string(kind), err)
		if errors.Is(err, domain.ErrNoFreeMessages) || errors.Is(err, domain.ErrInsufficientCredits) || errors.Is(err, domain.ErrValidation) {
			logger.ExitMethodRejected(methodName, err)
		} else {
			logger.ExitMethodWithError(methodName, err)
		}
		return nil, err
	}

	observeActivity(ctx, sent.Activity, balance)
	logger.ExitMethod(methodName, "messageID", sent.Message.ID, "activityID", sent.Activity.ID)
	return &sent, nil
}

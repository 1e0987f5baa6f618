package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/metrics"
	"creditline-backend/internal/repository"
	"creditline-backend/internal/utils"

	"github.com/shopspring/decimal"
)

type activityService struct {
	activityRepo repository.ActivityRepository
	viewRepo     repository.ViewRepository
	ledger       repository.LedgerStore
	rates        *utils.RateTable
	now          Clock
}

func NewActivityService(
	activityRepo repository.ActivityRepository,
	viewRepo repository.ViewRepository,
	ledger repository.LedgerStore,
	rates *utils.RateTable,
) ActivityService {
	return &activityService{
		activityRepo: activityRepo,
		viewRepo:     viewRepo,
		ledger:       ledger,
		rates:        rates,
		now:          systemClock,
	}
}

func (s *activityService) RecordActivity(ctx context.Context, req domain.ActivityRequest) (*domain.Activity, error) {
	logger.EnterMethod("activityService.RecordActivity", "customerID", req.CustomerID, "operatorID", req.OperatorID, "type", req.Type)

	if err := validateActivityRequest(req); err != nil {
		logger.ExitMethodRejected("activityService.RecordActivity", err)
		return nil, err
	}

	var act *domain.Activity
	var balance *domain.Customer
	err := s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		c, err := tx.LockCustomer(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		act, err = applyActivity(ctx, tx, s.rates, c, req, s.now())
		balance = c
		return err
	})
	if err != nil {
		metrics.ObserveRejection("record_activity", err)
		if metrics.RejectionReason(err) != "" {
			logger.ExitMethodRejected("activityService.RecordActivity", err)
		} else {
			logger.ExitMethodWithError("activityService.RecordActivity", err)
		}
		return nil, err
	}

	observeActivity(ctx, act, balance)
	logger.ExitMethod("activityService.RecordActivity", "activityID", act.ID, "billed", act.Billed)
	return act, nil
}

func (s *activityService) GetActivity(ctx context.Context, activityID string) (*domain.Activity, error) {
	return s.activityRepo.GetByID(ctx, activityID)
}

func (s *activityService) RecordProfileView(ctx context.Context, viewerID, profileID string) (*domain.ProfileView, error) {
	if strings.TrimSpace(viewerID) == "" || strings.TrimSpace(profileID) == "" {
		return nil, domain.Validationf("viewer and profile are required")
	}
	view := &domain.ProfileView{ViewerID: viewerID, ProfileID: profileID, ViewedAt: s.now()}
	if err := s.viewRepo.Record(ctx, view); err != nil {
		return nil, fmt.Errorf("failed to record profile view: %w", err)
	}
	return view, nil
}

func validateActivityRequest(req domain.ActivityRequest) error {
	if strings.TrimSpace(req.CustomerID) == "" {
		return domain.Validationf("customer_id is required")
	}
	if strings.TrimSpace(req.OperatorID) == "" {
		return domain.Validationf("operator_id is required")
	}
	if !req.Type.Valid() {
		return domain.Validationf("unknown activity type %q", req.Type)
	}
	if req.Amount.IsNegative() {
		return domain.Validationf("amount must not be negative")
	}
	return nil
}

// applyActivity is the single balance-mutation primitive for billable
// events. c must already be locked in tx. Nothing is written when it returns
// an error.
func applyActivity(
	ctx context.Context,
	tx repository.LedgerTx,
	rates *utils.RateTable,
	c *domain.Customer,
	req domain.ActivityRequest,
	now time.Time,
) (*domain.Activity, error) {
	act := &domain.Activity{
		CustomerID:       c.ID,
		OperatorID:       req.OperatorID,
		SiteDomain:       req.SiteDomain,
		Type:             req.Type,
		Amount:           decimal.Zero,
		OperatorEarnings: decimal.Zero,
		OccurredAt:       now.UTC(),
	}

	switch {
	case req.Type == domain.ActivityTypeMessage && c.FreeChatMessages > 0:
		c.FreeChatMessages--
		if err := tx.SaveCustomerBalance(ctx, c); err != nil {
			return nil, err
		}

	case req.Type == domain.ActivityTypeMarketing:
		// free to the customer and earns nothing

	default:
		amount := utils.RoundCurrency(req.Amount)
		if !amount.IsPositive() {
			if fixed, ok := rates.FixedPrice(req.Type); ok {
				amount = fixed
			}
		}
		if !amount.IsPositive() {
			return nil, domain.Validationf("%s requires a positive amount", req.Type)
		}
		if c.Credits.LessThan(amount) {
			return nil, fmt.Errorf("%w: balance %s, need %s", domain.ErrInsufficientCredits, c.Credits.StringFixed(2), amount.StringFixed(2))
		}

		c.Credits = c.Credits.Sub(amount)
		if err := tx.SaveCustomerBalance(ctx, c); err != nil {
			return nil, err
		}

		act.Amount = amount
		act.OperatorEarnings = rates.Earnings(amount, req.Type)
		act.Billed = true
		if act.OperatorEarnings.IsPositive() {
			if err := tx.CreditOperatorEarnings(ctx, req.OperatorID, act.OperatorEarnings); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.CreateActivity(ctx, act); err != nil {
		return nil, err
	}
	return act, nil
}

// observeActivity runs after commit.
func observeActivity(ctx context.Context, act *domain.Activity, c *domain.Customer) {
	metrics.ObserveActivity(act)
	if act.Billed {
		metrics.ObserveCredits("activity", act.Amount)
		logger.BalanceChange(ctx, c.ID, string(act.Type), act.Amount.Neg().StringFixed(2), c.Credits.StringFixed(2),
			"activity_id", act.ID, "operator_id", act.OperatorID, "operator_earnings", act.OperatorEarnings.StringFixed(2))
	} else if act.Type == domain.ActivityTypeMessage {
		logger.InfoContext(ctx, "Free message consumed", "customer_id", c.ID, "remaining", c.FreeChatMessages, "activity_id", act.ID)
	}
}

package service

import (
	"context"
	"strings"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/repository"
	"creditline-backend/internal/utils"

	"github.com/shopspring/decimal"
)

const (
	defaultMostViewedLimit = 10
	maxMostViewedLimit     = 100
)

type reportingService struct {
	transactionRepo repository.TransactionRepository
	chargebackRepo  repository.ChargebackRepository
	activityRepo    repository.ActivityRepository
	viewRepo        repository.ViewRepository
	now             Clock
}

func NewReportingService(
	transactionRepo repository.TransactionRepository,
	chargebackRepo repository.ChargebackRepository,
	activityRepo repository.ActivityRepository,
	viewRepo repository.ViewRepository,
) ReportingService {
	return &reportingService{
		transactionRepo: transactionRepo,
		chargebackRepo:  chargebackRepo,
		activityRepo:    activityRepo,
		viewRepo:        viewRepo,
		now:             systemClock,
	}
}

func (s *reportingService) GetTransactionStats(ctx context.Context) (*domain.TransactionStats, error) {
	return s.transactionRepo.Stats(ctx, nil)
}

func (s *reportingService) GetAllChargebacks(ctx context.Context) (*domain.ChargebackReport, error) {
	cbs, err := s.chargebackRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &domain.ChargebackReport{
		Chargebacks: cbs,
		ByStatus:    make(map[domain.ChargebackStatus]domain.StatusTotal, len(domain.AllChargebackStatuses)),
		TotalAmount: decimal.Zero,
	}
	for _, st := range domain.AllChargebackStatuses {
		report.ByStatus[st] = domain.StatusTotal{AmountUSD: decimal.Zero, Credits: decimal.Zero}
	}
	for _, cb := range cbs {
		t := report.ByStatus[cb.Status]
		t.Count++
		t.AmountUSD = t.AmountUSD.Add(cb.Amount)
		t.Credits = t.Credits.Add(cb.CreditsDebited)
		report.ByStatus[cb.Status] = t

		report.TotalCount++
		report.TotalAmount = report.TotalAmount.Add(cb.Amount)
	}
	return report, nil
}

func (s *reportingService) GetOperatorEarnings(ctx context.Context, operatorID string, r domain.DateRange, filter domain.ActivityFilter) (*domain.EarningsReport, error) {
	logger.EnterMethod("reportingService.GetOperatorEarnings", "operatorID", operatorID)

	if strings.TrimSpace(operatorID) == "" {
		return nil, domain.Validationf("operator_id is required")
	}
	if err := validateReportQuery(r, filter); err != nil {
		return nil, err
	}
	filter.OperatorID = operatorID

	rows, err := s.activityRepo.SummarizeByType(ctx, r, filter)
	if err != nil {
		logger.ExitMethodWithError("reportingService.GetOperatorEarnings", err)
		return nil, err
	}

	report := &domain.EarningsReport{
		OperatorID:    operatorID,
		Range:         r,
		TotalRevenue:  decimal.Zero,
		TotalEarnings: decimal.Zero,
		Breakdown:     make(map[domain.ActivityType]domain.TypeBreakdown, len(rows)),
	}
	// Totals are summed from the breakdown so the two always agree.
	for _, row := range rows {
		report.Breakdown[row.Type] = row
		report.Count += row.Count
		report.TotalRevenue = report.TotalRevenue.Add(row.TotalRevenue)
		report.TotalEarnings = report.TotalEarnings.Add(row.TotalEarnings)
	}

	logger.ExitMethod("reportingService.GetOperatorEarnings", "count", report.Count, "earnings", report.TotalEarnings.StringFixed(2))
	return report, nil
}

func (s *reportingService) GetCustomerSpending(ctx context.Context, customerID string, r domain.DateRange, filter domain.ActivityFilter) (*domain.SpendingReport, error) {
	logger.EnterMethod("reportingService.GetCustomerSpending", "customerID", customerID)

	if strings.TrimSpace(customerID) == "" {
		return nil, domain.Validationf("customer_id is required")
	}
	if err := validateReportQuery(r, filter); err != nil {
		return nil, err
	}
	filter.CustomerID = customerID

	rows, err := s.activityRepo.SummarizeByType(ctx, r, filter)
	if err != nil {
		logger.ExitMethodWithError("reportingService.GetCustomerSpending", err)
		return nil, err
	}

	report := &domain.SpendingReport{
		CustomerID: customerID,
		Range:      r,
		TotalSpent: decimal.Zero,
		Breakdown:  make(map[domain.ActivityType]domain.TypeBreakdown, len(rows)),
	}
	for _, row := range rows {
		report.Breakdown[row.Type] = row
		report.Count += row.Count
		report.TotalSpent = report.TotalSpent.Add(row.TotalRevenue)
	}

	logger.ExitMethod("reportingService.GetCustomerSpending", "count", report.Count, "spent", report.TotalSpent.StringFixed(2))
	return report, nil
}

func (s *reportingService) GetMostViewedOperators(ctx context.Context, customerID string, limit int) ([]domain.ViewCount, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.Validationf("customer_id is required")
	}
	if limit <= 0 {
		limit = defaultMostViewedLimit
	}
	if limit > maxMostViewedLimit {
		limit = maxMostViewedLimit
	}
	return s.viewRepo.MostViewed(ctx, customerID, limit)
}

func (s *reportingService) GetProfileViewers(ctx context.Context, profileID string, r domain.DateRange) ([]domain.ViewCount, error) {
	if strings.TrimSpace(profileID) == "" {
		return nil, domain.Validationf("profile_id is required")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return s.viewRepo.Viewers(ctx, profileID, r)
}

func (s *reportingService) GetDateRangePreset(name string) domain.DateRange {
	return utils.DateRangePreset(name, s.now())
}

func (s *reportingService) GetDailyDigest(ctx context.Context, r domain.DateRange) (*domain.DailyDigest, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	stats, err := s.transactionRepo.Stats(ctx, &r)
	if err != nil {
		return nil, err
	}
	cbs, err := s.chargebackRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	digest := &domain.DailyDigest{Range: r, Transactions: stats, ChargebackAmount: decimal.Zero}
	for _, cb := range cbs {
		if cb.Status == domain.ChargebackStatusPending {
			digest.OpenChargebacks++
			digest.ChargebackAmount = digest.ChargebackAmount.Add(cb.Amount)
		}
	}
	return digest, nil
}

func validateReportQuery(r domain.DateRange, filter domain.ActivityFilter) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return domain.Validationf("unknown activity type %q", filter.Type)
	}
	return nil
}

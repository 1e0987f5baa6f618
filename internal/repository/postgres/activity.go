package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/repository"
)

const activityColumns = `id, customer_id, operator_id, site_domain, type, amount, operator_earnings, billed, occurred_at`

type activityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) repository.ActivityRepository {
	return &activityRepository{db: db}
}

func scanActivity(row rowScanner) (*domain.Activity, error) {
	a := &domain.Activity{}
	err := row.Scan(&a.ID, &a.CustomerID, &a.OperatorID, &a.SiteDomain, &a.Type, &a.Amount, &a.OperatorEarnings, &a.Billed, &a.OccurredAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// activityWhere builds the shared range and filter clause.
func activityWhere(r domain.DateRange, f domain.ActivityFilter) (string, []any) {
	args := []any{r.Start, r.Until()}
	where := []string{"occurred_at >= $1", "occurred_at < $2"}

	if f.OperatorID != "" {
		args = append(args, f.OperatorID)
		where = append(where, fmt.Sprintf("operator_id = $%d", len(args)))
	}
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	return strings.Join(where, " AND "), args
}

func (r *activityRepository) GetByID(ctx context.Context, id string) (*domain.Activity, error) {
	a, err := scanActivity(r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrActivityNotFound, id)
	}
	return a, err
}

func (r *activityRepository) List(ctx context.Context, dr domain.DateRange, f domain.ActivityFilter) ([]domain.Activity, error) {
	logger.EnterMethod("activityRepository.List", "operatorID", f.OperatorID, "customerID", f.CustomerID)

	where, args := activityWhere(dr, f)
	rows, err := r.db.QueryContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE `+where+` ORDER BY occurred_at`, args...)
	if err != nil {
		logger.ExitMethodWithError("activityRepository.List", err)
		return nil, err
	}
	defer rows.Close()

	var acts []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		acts = append(acts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.ExitMethod("activityRepository.List", "count", len(acts))
	return acts, nil
}

func (r *activityRepository) SummarizeByType(ctx context.Context, dr domain.DateRange, f domain.ActivityFilter) ([]domain.TypeBreakdown, error) {
	logger.EnterMethod("activityRepository.SummarizeByType", "operatorID", f.OperatorID, "customerID", f.CustomerID)

	where, args := activityWhere(dr, f)
	query := `
		SELECT type, COUNT(*), COALESCE(SUM(amount), 0), COALESCE(SUM(operator_earnings), 0)
		FROM activities
		WHERE ` + where + `
		GROUP BY type
		ORDER BY type`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.ExitMethodWithError("activityRepository.SummarizeByType", err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.TypeBreakdown
	for rows.Next() {
		var b domain.TypeBreakdown
		if err := rows.Scan(&b.Type, &b.Count, &b.TotalRevenue, &b.TotalEarnings); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.ExitMethod("activityRepository.SummarizeByType", "types", len(out))
	return out, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/repository"
)

const chargebackColumns = `id, transaction_id, customer_id, amount, reason, status, notes, processor_case_id,
	adjustment_amount, credits_debited, created_at, resolved_at`

type chargebackRepository struct {
	db *sql.DB
}

func NewChargebackRepository(db *sql.DB) repository.ChargebackRepository {
	return &chargebackRepository{db: db}
}

func scanChargeback(row rowScanner) (*domain.Chargeback, error) {
	cb := &domain.Chargeback{}
	err := row.Scan(
		&cb.ID, &cb.TransactionID, &cb.CustomerID, &cb.Amount, &cb.Reason, &cb.Status, &cb.Notes, &cb.ProcessorCaseID,
		&cb.AdjustmentAmount, &cb.CreditsDebited, &cb.CreatedAt, &cb.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return cb, nil
}

func getChargeback(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Chargeback, error) {
	query := `SELECT ` + chargebackColumns + ` FROM chargebacks WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	cb, err := scanChargeback(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrChargebackNotFound, id)
	}
	return cb, err
}

func listChargebacks(ctx context.Context, q querier, query string, args ...any) ([]domain.Chargeback, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cbs []domain.Chargeback
	for rows.Next() {
		cb, err := scanChargeback(rows)
		if err != nil {
			return nil, err
		}
		cbs = append(cbs, *cb)
	}
	return cbs, rows.Err()
}

func (r *chargebackRepository) GetByID(ctx context.Context, id string) (*domain.Chargeback, error) {
	return getChargeback(ctx, r.db, id, false)
}

func (r *chargebackRepository) ListAll(ctx context.Context) ([]domain.Chargeback, error) {
	logger.EnterMethod("chargebackRepository.ListAll")

	cbs, err := listChargebacks(ctx, r.db, `SELECT `+chargebackColumns+` FROM chargebacks ORDER BY created_at DESC`)
	if err != nil {
		logger.ExitMethodWithError("chargebackRepository.ListAll", err)
		return nil, err
	}

	logger.ExitMethod("chargebackRepository.ListAll", "count", len(cbs))
	return cbs, nil
}

func (r *chargebackRepository) ListByTransaction(ctx context.Context, transactionID string) ([]domain.Chargeback, error) {
	return listChargebacks(ctx, r.db,
		`SELECT `+chargebackColumns+` FROM chargebacks WHERE transaction_id = $1 ORDER BY created_at`, transactionID)
}

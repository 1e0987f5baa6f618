package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, customer_id, package_id, payment_method, amount_usd, credits, bonus, status,
	processor_ref, failure_reason, refund_reason, refunded_credits, absorbed_credits, reversed,
	created_at, updated_at, completed_at, refunded_at`

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.CustomerID, &t.PackageID, &t.PaymentMethod, &t.AmountUSD, &t.Credits, &t.Bonus, &t.Status,
		&t.ProcessorRef, &t.FailureReason, &t.RefundReason, &t.RefundedCredits, &t.AbsorbedCredits, &t.Reversed,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt, &t.RefundedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func getTransaction(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM credit_transactions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTransaction(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	return t, err
}

func (r *transactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	logger.EnterMethod("transactionRepository.Create", "customerID", t.CustomerID, "packageID", t.PackageID)

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `INSERT INTO credit_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.CustomerID, t.PackageID, t.PaymentMethod, t.AmountUSD, t.Credits, t.Bonus, t.Status,
		t.ProcessorRef, t.FailureReason, t.RefundReason, t.RefundedCredits, t.AbsorbedCredits, t.Reversed,
		t.CreatedAt, t.UpdatedAt, t.CompletedAt, t.RefundedAt,
	)
	if err != nil {
		logger.ExitMethodWithError("transactionRepository.Create", err, "customerID", t.CustomerID)
		return err
	}

	logger.ExitMethod("transactionRepository.Create", "transactionID", t.ID)
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return getTransaction(ctx, r.db, id, false)
}

func (r *transactionRepository) ListByCustomer(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	logger.EnterMethod("transactionRepository.ListByCustomer", "customerID", customerID)

	var where []string
	args := []any{customerID}
	where = append(where, "customer_id = $1")

	if len(filter.Statuses) > 0 {
		statusStrs := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statusStrs[i] = string(s)
		}
		args = append(args, pq.Array(statusStrs))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Start != nil {
		args = append(args, *filter.Start)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.End != nil {
		args = append(args, domain.UpperBound(*filter.End))
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM credit_transactions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.ExitMethodWithError("transactionRepository.ListByCustomer", err, "customerID", customerID)
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.ExitMethod("transactionRepository.ListByCustomer", "count", len(txns))
	return txns, nil
}

func (r *transactionRepository) ListStalePending(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM credit_transactions
		WHERE status = 'pending' AND created_at < $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

func (r *transactionRepository) Stats(ctx context.Context, dr *domain.DateRange) (*domain.TransactionStats, error) {
	logger.EnterMethod("transactionRepository.Stats")

	query := `
		SELECT status, COUNT(*), COALESCE(SUM(amount_usd), 0), COALESCE(SUM(credits + bonus), 0),
		       COUNT(*) FILTER (WHERE reversed), COALESCE(SUM(amount_usd) FILTER (WHERE reversed), 0)
		FROM credit_transactions`
	var args []any
	if dr != nil {
		query += ` WHERE created_at >= $1 AND created_at < $2`
		args = append(args, dr.Start, dr.Until())
	}
	query += ` GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.ExitMethodWithError("transactionRepository.Stats", err)
		return nil, err
	}
	defer rows.Close()

	stats := domain.NewTransactionStats()
	for rows.Next() {
		var (
			status         domain.TransactionStatus
			total          domain.StatusTotal
			reversedCount  int64
			reversedAmount decimal.Decimal
		)
		if err := rows.Scan(&status, &total.Count, &total.AmountUSD, &total.Credits, &reversedCount, &reversedAmount); err != nil {
			return nil, err
		}
		stats.AddStatus(status, total, reversedCount, reversedAmount)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.ExitMethod("transactionRepository.Stats", "total", stats.TotalCount)
	return stats, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

type ledgerStore struct {
	db *sql.DB
}

// NewLedgerStore returns a unit-of-work runner. Per-customer serialisation
// comes from SELECT ... FOR UPDATE on the customer row.
func NewLedgerStore(db *sql.DB) repository.LedgerStore {
	return &ledgerStore{db: db}
}

func (s *ledgerStore) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

type ledgerTx struct {
	tx *sql.Tx
}

func (l *ledgerTx) LockCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	logger.DatabaseCall("LockCustomer", "SELECT customers FOR UPDATE", "customerID", id)
	c, err := getCustomer(ctx, l.tx, id, true)
	if err != nil && !errors.Is(err, domain.ErrCustomerNotFound) {
		logger.DatabaseResult("LockCustomer", 0, err)
	}
	return c, err
}

func (l *ledgerTx) SaveCustomerBalance(ctx context.Context, c *domain.Customer) error {
	c.UpdatedAt = time.Now().UTC()
	query := `UPDATE customers SET credits = $1, free_chat_messages = $2, updated_at = $3 WHERE id = $4`
	res, err := l.tx.ExecContext(ctx, query, c.Credits, c.FreeChatMessages, c.UpdatedAt, c.ID)
	if err != nil {
		logger.DatabaseResult("SaveCustomerBalance", 0, err, "customerID", c.ID)
		return err
	}
	return expectOneRow(res, domain.ErrCustomerNotFound, c.ID)
}

func (l *ledgerTx) LockTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return getTransaction(ctx, l.tx, id, true)
}

func (l *ledgerTx) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	t.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE credit_transactions
		SET status = $1, processor_ref = $2, failure_reason = $3, refund_reason = $4,
		    refunded_credits = $5, absorbed_credits = $6, reversed = $7,
		    updated_at = $8, completed_at = $9, refunded_at = $10
		WHERE id = $11`
	res, err := l.tx.ExecContext(ctx, query,
		t.Status, t.ProcessorRef, t.FailureReason, t.RefundReason,
		t.RefundedCredits, t.AbsorbedCredits, t.Reversed,
		t.UpdatedAt, t.CompletedAt, t.RefundedAt, t.ID,
	)
	if err != nil {
		logger.DatabaseResult("UpdateTransaction", 0, err, "transactionID", t.ID)
		return err
	}
	return expectOneRow(res, domain.ErrTransactionNotFound, t.ID)
}

func (l *ledgerTx) CreateActivity(ctx context.Context, a *domain.Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	query := `INSERT INTO activities (` + activityColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := l.tx.ExecContext(ctx, query,
		a.ID, a.CustomerID, a.OperatorID, a.SiteDomain, a.Type, a.Amount, a.OperatorEarnings, a.Billed, a.OccurredAt,
	)
	return err
}

func (l *ledgerTx) CreditOperatorEarnings(ctx context.Context, operatorID string, amount decimal.Decimal) error {
	query := `
		INSERT INTO operator_earnings (operator_id, total_earnings, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (operator_id)
		DO UPDATE SET total_earnings = operator_earnings.total_earnings + EXCLUDED.total_earnings,
		              updated_at = EXCLUDED.updated_at`
	_, err := l.tx.ExecContext(ctx, query, operatorID, amount, time.Now().UTC())
	return err
}

func (l *ledgerTx) CreateMessage(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	query := `INSERT INTO messages (id, conversation_id, operator_id, customer_id, kind, content, price, activity_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := l.tx.ExecContext(ctx, query,
		m.ID, m.ConversationID, m.OperatorID, m.CustomerID, m.Kind, m.Content, m.Price, m.ActivityID, m.CreatedAt,
	)
	return err
}

func (l *ledgerTx) ListChargebacks(ctx context.Context, transactionID string) ([]domain.Chargeback, error) {
	logger.DatabaseCall("ListChargebacks", "SELECT chargebacks FOR UPDATE", "transactionID", transactionID)
	return listChargebacks(ctx, l.tx,
		`SELECT `+chargebackColumns+` FROM chargebacks WHERE transaction_id = $1 ORDER BY created_at FOR UPDATE`, transactionID)
}

func (l *ledgerTx) CreateChargeback(ctx context.Context, cb *domain.Chargeback) error {
	if cb.ID == "" {
		cb.ID = uuid.NewString()
	}
	query := `INSERT INTO chargebacks (` + chargebackColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := l.tx.ExecContext(ctx, query,
		cb.ID, cb.TransactionID, cb.CustomerID, cb.Amount, cb.Reason, cb.Status, cb.Notes, cb.ProcessorCaseID,
		cb.AdjustmentAmount, cb.CreditsDebited, cb.CreatedAt, cb.ResolvedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.ErrChargebackOpen
	}
	return err
}

func (l *ledgerTx) LockChargeback(ctx context.Context, id string) (*domain.Chargeback, error) {
	return getChargeback(ctx, l.tx, id, true)
}

func (l *ledgerTx) UpdateChargeback(ctx context.Context, cb *domain.Chargeback) error {
	query := `
		UPDATE chargebacks
		SET status = $1, notes = $2, adjustment_amount = $3, credits_debited = $4, resolved_at = $5
		WHERE id = $6`
	res, err := l.tx.ExecContext(ctx, query, cb.Status, cb.Notes, cb.AdjustmentAmount, cb.CreditsDebited, cb.ResolvedAt, cb.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res, domain.ErrChargebackNotFound, cb.ID)
}

func expectOneRow(res sql.Result, notFound error, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}

package boltdb

import (
	"context"
	"encoding/json"
	"time"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/repository"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ledgerStore struct {
	db *bolt.DB
}

// WithinTx runs fn inside one exclusive bolt write transaction.
func (s *ledgerStore) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx *bolt.Tx
}

func (l *ledgerTx) LockCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getJSON[domain.Customer](l.tx, bucketCustomers, id, domain.ErrCustomerNotFound)
}

func (l *ledgerTx) SaveCustomerBalance(ctx context.Context, c *domain.Customer) error {
	stored, err := getJSON[domain.Customer](l.tx, bucketCustomers, c.ID, domain.ErrCustomerNotFound)
	if err != nil {
		return err
	}
	stored.Credits = c.Credits
	stored.FreeChatMessages = c.FreeChatMessages
	stored.UpdatedAt = time.Now().UTC()
	c.UpdatedAt = stored.UpdatedAt
	return putJSON(l.tx, bucketCustomers, c.ID, stored)
}

func (l *ledgerTx) LockTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return getJSON[domain.Transaction](l.tx, bucketTransactions, id, domain.ErrTransactionNotFound)
}

func (l *ledgerTx) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	if _, err := getJSON[domain.Transaction](l.tx, bucketTransactions, t.ID, domain.ErrTransactionNotFound); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()
	return putJSON(l.tx, bucketTransactions, t.ID, t)
}

func (l *ledgerTx) CreateActivity(ctx context.Context, a *domain.Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return insertJSON(l.tx, bucketActivities, a.ID, a)
}

func (l *ledgerTx) CreditOperatorEarnings(ctx context.Context, operatorID string, amount decimal.Decimal) error {
	b := &domain.OperatorBalance{OperatorID: operatorID}
	if v := l.tx.Bucket([]byte(bucketEarnings)).Get([]byte(operatorID)); v != nil {
		if err := json.Unmarshal(v, b); err != nil {
			return err
		}
	}
	b.TotalEarnings = b.TotalEarnings.Add(amount)
	b.UpdatedAt = time.Now().UTC()
	return putJSON(l.tx, bucketEarnings, operatorID, b)
}

func (l *ledgerTx) CreateMessage(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return insertJSON(l.tx, bucketMessages, m.ID, m)
}

func (l *ledgerTx) ListChargebacks(ctx context.Context, transactionID string) ([]domain.Chargeback, error) {
	return scan(l.tx, bucketChargebacks, func(cb *domain.Chargeback) bool {
		return cb.TransactionID == transactionID
	})
}

func (l *ledgerTx) CreateChargeback(ctx context.Context, cb *domain.Chargeback) error {
	if cb.Status == domain.ChargebackStatusPending {
		open, err := scan(l.tx, bucketChargebacks, func(c *domain.Chargeback) bool {
			return c.TransactionID == cb.TransactionID && c.Status == domain.ChargebackStatusPending
		})
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return domain.ErrChargebackOpen
		}
	}
	if cb.ID == "" {
		cb.ID = uuid.NewString()
	}
	return insertJSON(l.tx, bucketChargebacks, cb.ID, cb)
}

func (l *ledgerTx) LockChargeback(ctx context.Context, id string) (*domain.Chargeback, error) {
	return getJSON[domain.Chargeback](l.tx, bucketChargebacks, id, domain.ErrChargebackNotFound)
}

func (l *ledgerTx) UpdateChargeback(ctx context.Context, cb *domain.Chargeback) error {
	if _, err := getJSON[domain.Chargeback](l.tx, bucketChargebacks, cb.ID, domain.ErrChargebackNotFound); err != nil {
		return err
	}
	return putJSON(l.tx, bucketChargebacks, cb.ID, cb)
}

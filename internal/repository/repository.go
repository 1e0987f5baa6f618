package repository

import (
	"context"
	"time"

	"creditline-backend/internal/domain"

	"github.com/shopspring/decimal"
)

type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetOperatorBalance(ctx context.Context, operatorID string) (*domain.OperatorBalance, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListByCustomer(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error)
	// ListStalePending returns pending transactions created before the cutoff.
	ListStalePending(ctx context.Context, before time.Time) ([]domain.Transaction, error)
	// Stats aggregates by status. A nil range covers all history.
	Stats(ctx context.Context, r *domain.DateRange) (*domain.TransactionStats, error)
}

type ChargebackRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Chargeback, error)
	ListAll(ctx context.Context) ([]domain.Chargeback, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]domain.Chargeback, error)
}

type ActivityRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Activity, error)
	List(ctx context.Context, r domain.DateRange, filter domain.ActivityFilter) ([]domain.Activity, error)
	// SummarizeByType groups matching activities by type. Types with no
	// activity are omitted.
	SummarizeByType(ctx context.Context, r domain.DateRange, filter domain.ActivityFilter) ([]domain.TypeBreakdown, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

type ViewRepository interface {
	Record(ctx context.Context, view *domain.ProfileView) error
	// MostViewed counts profiles viewed by viewerID, most viewed first.
	MostViewed(ctx context.Context, viewerID string, limit int) ([]domain.ViewCount, error)
	// Viewers counts who viewed profileID within the range, most frequent first.
	Viewers(ctx context.Context, profileID string, r domain.DateRange) ([]domain.ViewCount, error)
}

// LedgerTx is one atomic unit of balance mutation. Implementations must
// serialise units touching the same customer; callers lock in the order
// customer, transaction, chargeback.
type LedgerTx interface {
	LockCustomer(ctx context.Context, id string) (*domain.Customer, error)
	SaveCustomerBalance(ctx context.Context, customer *domain.Customer) error

	LockTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *domain.Transaction) error

	CreateActivity(ctx context.Context, activity *domain.Activity) error
	CreditOperatorEarnings(ctx context.Context, operatorID string, amount decimal.Decimal) error
	CreateMessage(ctx context.Context, msg *domain.Message) error

	// ListChargebacks returns every dispute filed against the transaction,
	// locked for the rest of the unit.
	ListChargebacks(ctx context.Context, transactionID string) ([]domain.Chargeback, error)
	CreateChargeback(ctx context.Context, cb *domain.Chargeback) error
	LockChargeback(ctx context.Context, id string) (*domain.Chargeback, error)
	UpdateChargeback(ctx context.Context, cb *domain.Chargeback) error
}

// LedgerStore runs fn in a unit of work. Any error from fn rolls the whole
// unit back.
type LedgerStore interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

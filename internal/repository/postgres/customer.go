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
)

const customerColumns = `id, email, display_name, credits, free_chat_messages, updated_at`

type customerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) repository.CustomerRepository {
	return &customerRepository{db: db}
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	c := &domain.Customer{}
	if err := row.Scan(&c.ID, &c.Email, &c.DisplayName, &c.Credits, &c.FreeChatMessages, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func getCustomer(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	c, err := scanCustomer(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
	}
	return c, err
}

func (r *customerRepository) Create(ctx context.Context, c *domain.Customer) error {
	logger.EnterMethod("customerRepository.Create", "email", c.Email)

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.UpdatedAt = time.Now().UTC()

	query := `INSERT INTO customers (` + customerColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.Email, c.DisplayName, c.Credits, c.FreeChatMessages, c.UpdatedAt)
	if err != nil {
		logger.ExitMethodWithError("customerRepository.Create", err, "customerID", c.ID)
		return err
	}

	logger.ExitMethod("customerRepository.Create", "customerID", c.ID)
	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, r.db, id, false)
}

func (r *customerRepository) GetOperatorBalance(ctx context.Context, operatorID string) (*domain.OperatorBalance, error) {
	b := &domain.OperatorBalance{OperatorID: operatorID}
	query := `SELECT total_earnings, updated_at FROM operator_earnings WHERE operator_id = $1`
	err := r.db.QueryRowContext(ctx, query, operatorID).Scan(&b.TotalEarnings, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// An operator with no billed activity has earned nothing yet.
		return b, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

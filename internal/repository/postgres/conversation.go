package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/repository"

	"github.com/google/uuid"
)

type conversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) repository.ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO conversations (id, customer_id, operator_id, site_domain, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.CustomerID, c.OperatorID, c.SiteDomain, c.CreatedAt)
	return err
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	query := `SELECT id, customer_id, operator_id, site_domain, created_at FROM conversations WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.CustomerID, &c.OperatorID, &c.SiteDomain, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrConversationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	query := `SELECT id, conversation_id, operator_id, customer_id, kind, content, price, activity_id, created_at
	          FROM messages WHERE conversation_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.OperatorID, &m.CustomerID, &m.Kind, &m.Content, &m.Price, &m.ActivityID, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

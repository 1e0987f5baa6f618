package boltdb

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"creditline-backend/internal/domain"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type customerRepository struct {
	db *bolt.DB
}

func (r *customerRepository) Create(ctx context.Context, c *domain.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.UpdatedAt = time.Now().UTC()
	return r.db.Update(func(tx *bolt.Tx) error {
		return insertJSON(tx, bucketCustomers, c.ID, c)
	})
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c *domain.Customer
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		c, err = getJSON[domain.Customer](tx, bucketCustomers, id, domain.ErrCustomerNotFound)
		return err
	})
	return c, err
}

func (r *customerRepository) GetOperatorBalance(ctx context.Context, operatorID string) (*domain.OperatorBalance, error) {
	b := &domain.OperatorBalance{OperatorID: operatorID}
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketEarnings)).Get([]byte(operatorID))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, b)
	})
	return b, err
}

type transactionRepository struct {
	db *bolt.DB
}

func (r *transactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return r.db.Update(func(tx *bolt.Tx) error {
		if _, err := getJSON[domain.Customer](tx, bucketCustomers, t.CustomerID, domain.ErrCustomerNotFound); err != nil {
			return err
		}
		return insertJSON(tx, bucketTransactions, t.ID, t)
	})
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var t *domain.Transaction
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		t, err = getJSON[domain.Transaction](tx, bucketTransactions, id, domain.ErrTransactionNotFound)
		return err
	})
	return t, err
}

func (r *transactionRepository) ListByCustomer(ctx context.Context, customerID string, f domain.TransactionFilter) ([]domain.Transaction, error) {
	statuses := make(map[domain.TransactionStatus]bool, len(f.Statuses))
	for _, s := range f.Statuses {
		statuses[s] = true
	}

	var txns []domain.Transaction
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		txns, err = scan(tx, bucketTransactions, func(t *domain.Transaction) bool {
			if t.CustomerID != customerID {
				return false
			}
			if len(statuses) > 0 && !statuses[t.Status] {
				return false
			}
			if f.Start != nil && t.CreatedAt.Before(*f.Start) {
				return false
			}
			if f.End != nil && !t.CreatedAt.Before(domain.UpperBound(*f.End)) {
				return false
			}
			return true
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(txns, func(i, j int) bool { return txns[i].CreatedAt.After(txns[j].CreatedAt) })
	if f.Limit > 0 && len(txns) > f.Limit {
		txns = txns[:f.Limit]
	}
	return txns, nil
}

func (r *transactionRepository) ListStalePending(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		txns, err = scan(tx, bucketTransactions, func(t *domain.Transaction) bool {
			return t.Status == domain.TransactionStatusPending && t.CreatedAt.Before(before)
		})
		return err
	})
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.Before(txns[j].CreatedAt) })
	return txns, err
}

func (r *transactionRepository) Stats(ctx context.Context, dr *domain.DateRange) (*domain.TransactionStats, error) {
	type acc struct {
		total          domain.StatusTotal
		reversedCount  int64
		reversedAmount decimal.Decimal
	}
	groups := make(map[domain.TransactionStatus]*acc)

	err := r.db.View(func(tx *bolt.Tx) error {
		_, err := scan(tx, bucketTransactions, func(t *domain.Transaction) bool {
			if dr != nil && !dr.Contains(t.CreatedAt) {
				return false
			}
			g, ok := groups[t.Status]
			if !ok {
				g = &acc{}
				groups[t.Status] = g
			}
			g.total.Count++
			g.total.AmountUSD = g.total.AmountUSD.Add(t.AmountUSD)
			g.total.Credits = g.total.Credits.Add(t.TotalCredits())
			if t.Reversed {
				g.reversedCount++
				g.reversedAmount = g.reversedAmount.Add(t.AmountUSD)
			}
			return false
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	stats := domain.NewTransactionStats()
	for _, s := range domain.AllTransactionStatuses {
		if g, ok := groups[s]; ok {
			stats.AddStatus(s, g.total, g.reversedCount, g.reversedAmount)
		}
	}
	return stats, nil
}

type chargebackRepository struct {
	db *bolt.DB
}

func (r *chargebackRepository) GetByID(ctx context.Context, id string) (*domain.Chargeback, error) {
	var cb *domain.Chargeback
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		cb, err = getJSON[domain.Chargeback](tx, bucketChargebacks, id, domain.ErrChargebackNotFound)
		return err
	})
	return cb, err
}

func (r *chargebackRepository) ListAll(ctx context.Context) ([]domain.Chargeback, error) {
	return r.list(nil, func(a, b *domain.Chargeback) bool { return a.CreatedAt.After(b.CreatedAt) })
}

func (r *chargebackRepository) ListByTransaction(ctx context.Context, transactionID string) ([]domain.Chargeback, error) {
	return r.list(
		func(cb *domain.Chargeback) bool { return cb.TransactionID == transactionID },
		func(a, b *domain.Chargeback) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
}

func (r *chargebackRepository) list(keep func(*domain.Chargeback) bool, less func(a, b *domain.Chargeback) bool) ([]domain.Chargeback, error) {
	var cbs []domain.Chargeback
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		cbs, err = scan(tx, bucketChargebacks, keep)
		return err
	})
	sort.SliceStable(cbs, func(i, j int) bool { return less(&cbs[i], &cbs[j]) })
	return cbs, err
}

type activityRepository struct {
	db *bolt.DB
}

func matchActivity(a *domain.Activity, dr domain.DateRange, f domain.ActivityFilter) bool {
	if !dr.Contains(a.OccurredAt) {
		return false
	}
	if f.OperatorID != "" && a.OperatorID != f.OperatorID {
		return false
	}
	if f.CustomerID != "" && a.CustomerID != f.CustomerID {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	return true
}

func (r *activityRepository) GetByID(ctx context.Context, id string) (*domain.Activity, error) {
	var a *domain.Activity
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		a, err = getJSON[domain.Activity](tx, bucketActivities, id, domain.ErrActivityNotFound)
		return err
	})
	return a, err
}

func (r *activityRepository) List(ctx context.Context, dr domain.DateRange, f domain.ActivityFilter) ([]domain.Activity, error) {
	var acts []domain.Activity
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		acts, err = scan(tx, bucketActivities, func(a *domain.Activity) bool { return matchActivity(a, dr, f) })
		return err
	})
	sort.SliceStable(acts, func(i, j int) bool { return acts[i].OccurredAt.Before(acts[j].OccurredAt) })
	return acts, err
}

func (r *activityRepository) SummarizeByType(ctx context.Context, dr domain.DateRange, f domain.ActivityFilter) ([]domain.TypeBreakdown, error) {
	acts, err := r.List(ctx, dr, f)
	if err != nil {
		return nil, err
	}

	byType := make(map[domain.ActivityType]*domain.TypeBreakdown)
	for _, a := range acts {
		b, ok := byType[a.Type]
		if !ok {
			b = &domain.TypeBreakdown{Type: a.Type}
			byType[a.Type] = b
		}
		b.Count++
		b.TotalRevenue = b.TotalRevenue.Add(a.Amount)
		b.TotalEarnings = b.TotalEarnings.Add(a.OperatorEarnings)
	}

	out := make([]domain.TypeBreakdown, 0, len(byType))
	for _, b := range byType {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

type conversationRepository struct {
	db *bolt.DB
}

func (r *conversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return insertJSON(tx, bucketConversations, c.ID, c)
	})
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var c *domain.Conversation
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		c, err = getJSON[domain.Conversation](tx, bucketConversations, id, domain.ErrConversationNotFound)
		return err
	})
	return c, err
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var msgs []domain.Message
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		msgs, err = scan(tx, bucketMessages, func(m *domain.Message) bool { return m.ConversationID == conversationID })
		return err
	})
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, err
}

type viewRepository struct {
	db *bolt.DB
}

func (r *viewRepository) Record(ctx context.Context, v *domain.ProfileView) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.ViewedAt.IsZero() {
		v.ViewedAt = time.Now().UTC()
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return insertJSON(tx, bucketViews, v.ID, v)
	})
}

func (r *viewRepository) MostViewed(ctx context.Context, viewerID string, limit int) ([]domain.ViewCount, error) {
	out, err := r.count(
		func(v *domain.ProfileView) bool { return v.ViewerID == viewerID },
		func(v *domain.ProfileView) string { return v.ProfileID },
	)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *viewRepository) Viewers(ctx context.Context, profileID string, dr domain.DateRange) ([]domain.ViewCount, error) {
	return r.count(
		func(v *domain.ProfileView) bool { return v.ProfileID == profileID && dr.Contains(v.ViewedAt) },
		func(v *domain.ProfileView) string { return v.ViewerID },
	)
}

func (r *viewRepository) count(keep func(*domain.ProfileView) bool, key func(*domain.ProfileView) string) ([]domain.ViewCount, error) {
	var views []domain.ProfileView
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		views, err = scan(tx, bucketViews, keep)
		return err
	})
	if err != nil {
		return nil, err
	}

	bySubject := make(map[string]*domain.ViewCount)
	for i := range views {
		k := key(&views[i])
		vc, ok := bySubject[k]
		if !ok {
			vc = &domain.ViewCount{SubjectID: k}
			bySubject[k] = vc
		}
		vc.Views++
		if views[i].ViewedAt.After(vc.LastViewed) {
			vc.LastViewed = views[i].ViewedAt
		}
	}

	out := make([]domain.ViewCount, 0, len(bySubject))
	for _, vc := range bySubject {
		out = append(out, *vc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].LastViewed.After(out[j].LastViewed)
	})
	return out, nil
}

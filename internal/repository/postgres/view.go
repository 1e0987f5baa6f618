package postgres

import (
	"context"
	"database/sql"
	"time"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/repository"

	"github.com/google/uuid"
)

type viewRepository struct {
	db *sql.DB
}

func NewViewRepository(db *sql.DB) repository.ViewRepository {
	return &viewRepository{db: db}
}

func (r *viewRepository) Record(ctx context.Context, v *domain.ProfileView) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.ViewedAt.IsZero() {
		v.ViewedAt = time.Now().UTC()
	}
	query := `INSERT INTO profile_views (id, viewer_id, profile_id, viewed_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, v.ID, v.ViewerID, v.ProfileID, v.ViewedAt)
	return err
}

func (r *viewRepository) MostViewed(ctx context.Context, viewerID string, limit int) ([]domain.ViewCount, error) {
	query := `
		SELECT profile_id, COUNT(*), MAX(viewed_at)
		FROM profile_views
		WHERE viewer_id = $1
		GROUP BY profile_id
		ORDER BY COUNT(*) DESC, MAX(viewed_at) DESC
		LIMIT $2`
	return r.counts(ctx, query, viewerID, limit)
}

func (r *viewRepository) Viewers(ctx context.Context, profileID string, dr domain.DateRange) ([]domain.ViewCount, error) {
	query := `
		SELECT viewer_id, COUNT(*), MAX(viewed_at)
		FROM profile_views
		WHERE profile_id = $1 AND viewed_at >= $2 AND viewed_at < $3
		GROUP BY viewer_id
		ORDER BY COUNT(*) DESC, MAX(viewed_at) DESC`
	return r.counts(ctx, query, profileID, dr.Start, dr.Until())
}

func (r *viewRepository) counts(ctx context.Context, query string, args ...any) ([]domain.ViewCount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ViewCount
	for rows.Next() {
		var vc domain.ViewCount
		if err := rows.Scan(&vc.SubjectID, &vc.Views, &vc.LastViewed); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"buckit/business/recommend"
	"buckit/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserVectorRepository reads the long-term trait vector from the
// user_vectors table and the recent engagement rows the state vector is
// built from.
type UserVectorRepository struct {
	DB *gorm.DB
}

var _ recommend.VectorRepository = (*UserVectorRepository)(nil)

func NewUserVectorRepository(db *gorm.DB) *UserVectorRepository {
	return &UserVectorRepository{DB: db}
}

func (r *UserVectorRepository) TraitVector(ctx context.Context, userID string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var row struct {
		Emb datatypes.JSON `gorm:"column:emb"`
	}
	err := r.DB.WithContext(ctx).
		Table("user_vectors").
		Select("emb").
		Where("user_id = ?", userID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user_vectors: %w", err)
	}

	if len(row.Emb) == 0 {
		return nil, nil
	}
	var vec []float64
	if err := json.Unmarshal(row.Emb, &vec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user vector: %w", err)
	}
	return vec, nil
}

type engagementJoinRow struct {
	CreatedAt time.Time      `gorm:"column:created_at"`
	Embedding datatypes.JSON `gorm:"column:embedding"`
}

func (r *UserVectorRepository) RecentEngagement(ctx context.Context, userID string, limit int) ([]domain.EngagementRow, error) {
	return r.recentRows(ctx, userID, limit,
		"e.event_type IN ('view', 'like', 'save', 'start', 'complete')")
}

func (r *UserVectorRepository) RecentCompletions(ctx context.Context, userID string, limit int) ([]domain.EngagementRow, error) {
	return r.recentRows(ctx, userID, limit, "e.event_type = 'complete'")
}

func (r *UserVectorRepository) recentRows(ctx context.Context, userID string, limit int, eventFilter string) ([]domain.EngagementRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []engagementJoinRow
	err := r.DB.WithContext(ctx).
		Table("events AS e").
		Select("e.created_at, i.embedding").
		Joins("JOIN items i ON i.id = e.item_id").
		Where("e.user_id = ?", userID).
		Where(eventFilter).
		Order("e.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}

	out := make([]domain.EngagementRow, 0, len(rows))
	for _, row := range rows {
		er := domain.EngagementRow{CreatedAt: row.CreatedAt}
		if len(row.Embedding) > 0 {
			if err := json.Unmarshal(row.Embedding, &er.Embedding); err != nil {
				// skip rows with broken embeddings, the state vector
				// tolerates gaps
				continue
			}
		}
		out = append(out, er)
	}

	return out, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"buckit/business/recommend"
	"buckit/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventRepository writes impressions and feedback to the events table
// and derives the exposure dampening factor by counting recent
// impressions for a (user, item) pair.
type EventRepository struct {
	DB *gorm.DB
}

var _ recommend.ImpressionRepository = (*EventRepository)(nil)

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{DB: db}
}

func (r *EventRepository) LogImpressions(ctx context.Context, userID string, itemIDs []string, lat, lon float64, experimentID, variant string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(itemIDs) == 0 {
		return nil
	}

	rows := make([]domain.EngagementEvent, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		rows = append(rows, domain.EngagementEvent{
			ID:        uuid.NewString(),
			UserID:    userID,
			ItemID:    itemID,
			EventType: "impression",
			Strength:  0.0,
			Context: datatypes.JSONMap{
				"lat":           lat,
				"lon":           lon,
				"experiment_id": experimentID,
				"variant":       variant,
			},
		})
	}

	if err := r.DB.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("failed to log impressions: %w", err)
	}

	return nil
}

func (r *EventRepository) LogEvent(ctx context.Context, event domain.EngagementEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	return nil
}

// ExposureFactor counts impressions inside the window and maps the count
// onto a multiplier: a never-shown item keeps its score, an item at or
// past maxExposures is dampened to 0.3.
func (r *EventRepository) ExposureFactor(ctx context.Context, userID, itemID string, maxExposures, windowDays int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	since := time.Now().AddDate(0, 0, -windowDays)

	var count int64
	err := r.DB.WithContext(ctx).
		Model(&domain.EngagementEvent{}).
		Where("user_id = ? AND item_id = ? AND event_type = ? AND created_at > ?",
			userID, itemID, "impression", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count impressions: %w", err)
	}

	if maxExposures <= 0 {
		return 1.0, nil
	}
	if count >= int64(maxExposures) {
		return 0.3, nil
	}
	return 1.0 - 0.7*float64(count)/float64(maxExposures), nil
}

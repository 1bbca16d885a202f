package postgres

import (
	"context"
	"fmt"
	"time"

	"buckit/business/recommend"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MetricRepository appends per-request timings to performance_metrics.
type MetricRepository struct {
	DB *gorm.DB
}

var _ recommend.PerformanceRepository = (*MetricRepository)(nil)

func NewMetricRepository(db *gorm.DB) *MetricRepository {
	return &MetricRepository{DB: db}
}

type performanceMetricRow struct {
	ID           string    `gorm:"column:id;primaryKey"`
	UserID       string    `gorm:"column:user_id"`
	FunctionName string    `gorm:"column:function_name"`
	DurationMs   float64   `gorm:"column:duration_ms"`
	Success      bool      `gorm:"column:success"`
	ErrorMessage string    `gorm:"column:error_message"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (performanceMetricRow) TableName() string {
	return "performance_metrics"
}

func (r *MetricRepository) LogMetric(ctx context.Context, userID, functionName string, duration time.Duration, success bool, errMessage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	row := performanceMetricRow{
		ID:           uuid.NewString(),
		UserID:       userID,
		FunctionName: functionName,
		DurationMs:   float64(duration.Microseconds()) / 1000.0,
		Success:      success,
		ErrorMessage: errMessage,
	}

	if err := r.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save performance metric: %w", err)
	}

	return nil
}

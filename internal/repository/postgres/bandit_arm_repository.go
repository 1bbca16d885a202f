package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"buckit/business/bandit"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BanditArmRepository persists one LinUCB arm per (user, item) pair in
// the bandit_arms table, with the matrix state as a jsonb blob.
type BanditArmRepository struct {
	DB *gorm.DB
}

var _ bandit.ArmRepository = (*BanditArmRepository)(nil)

func NewBanditArmRepository(db *gorm.DB) *BanditArmRepository {
	return &BanditArmRepository{DB: db}
}

type banditArmRow struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	ItemID    string    `gorm:"column:item_id;primaryKey"`
	StateJSON []byte    `gorm:"column:state_json"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (banditArmRow) TableName() string {
	return "bandit_arms"
}

func (r *BanditArmRepository) GetArm(ctx context.Context, userID, itemID string) (*bandit.ArmState, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var row banditArmRow
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bandit_arms: %w", err)
	}

	var state bandit.ArmState
	if err := json.Unmarshal(row.StateJSON, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arm state: %w", err)
	}

	return &state, nil
}

func (r *BanditArmRepository) SaveArm(ctx context.Context, userID, itemID string, arm *bandit.ArmState) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	raw, err := json.Marshal(arm)
	if err != nil {
		return fmt.Errorf("failed to marshal arm state: %w", err)
	}

	row := banditArmRow{
		UserID:    userID,
		ItemID:    itemID,
		StateJSON: raw,
		UpdatedAt: time.Now(),
	}

	if err := r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
			UpdateAll: true,
		},
	).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to upsert bandit arm: %w", err)
	}

	return nil
}

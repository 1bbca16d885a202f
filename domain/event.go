package domain

import (
	"time"

	"gorm.io/datatypes"
)

// EngagementEvent is one row in the events table: impressions written
// by the recommender and explicit feedback sent by the client.
type EngagementEvent struct {
	ID        string            `gorm:"column:id;primaryKey" json:"id"`
	UserID    string            `gorm:"column:user_id;not null" json:"user_id"`
	ItemID    string            `gorm:"column:item_id;not null" json:"item_id"`
	EventType string            `gorm:"column:event_type;not null" json:"event_type"`
	Strength  float64           `gorm:"column:strength" json:"strength"`
	Context   datatypes.JSONMap `gorm:"column:context;type:jsonb" json:"context"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (EngagementEvent) TableName() string {
	return "events"
}

// EngagementRow is the slice of an event the state vector needs: when
// it happened and the embedding of the item it touched.
type EngagementRow struct {
	CreatedAt time.Time
	Embedding []float64
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"buckit/business/recommend"
	"buckit/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CandidateRepository fetches scoring candidates through the
// get_recommendation_candidates SQL function, which does the geo
// filtering and joins the social counters in one round trip.
type CandidateRepository struct {
	DB *gorm.DB
}

// Compile-time check that the struct implements the interface.
var _ recommend.CandidateRepository = (*CandidateRepository)(nil)

func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{DB: db}
}

type candidateRow struct {
	ID              string          `gorm:"column:id"`
	BucketID        sql.NullString  `gorm:"column:bucket_id"`
	Embedding       datatypes.JSON  `gorm:"column:embedding"`
	DistanceKm      sql.NullFloat64 `gorm:"column:distance_km"`
	PriceMin        sql.NullFloat64 `gorm:"column:price_min"`
	PriceMax        sql.NullFloat64 `gorm:"column:price_max"`
	Difficulty      sql.NullFloat64 `gorm:"column:difficulty"`
	Completes       sql.NullInt64   `gorm:"column:completes"`
	FriendCompletes sql.NullFloat64 `gorm:"column:friend_completes"`
	FriendSaves     sql.NullFloat64 `gorm:"column:friend_saves"`
	FriendLikes     sql.NullFloat64 `gorm:"column:friend_likes"`
	CollabHint      sql.NullBool    `gorm:"column:collab_hint"`
	CreatedAt       sql.NullTime    `gorm:"column:created_at"`
	AppealScore     sql.NullFloat64 `gorm:"column:appeal_score"`
}

func (r *CandidateRepository) GetCandidates(ctx context.Context, userID string, lat, lon, radiusKm float64, limit int) ([]domain.RawCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []candidateRow
	err := r.DB.WithContext(ctx).
		Raw("SELECT * FROM get_recommendation_candidates(?, ?, ?, ?, ?)",
			userID, lat, lon, radiusKm, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	candidates := make([]domain.RawCandidate, 0, len(rows))
	for _, row := range rows {
		c := domain.RawCandidate{
			ID:              row.ID,
			FriendCompletes: nullFloat(row.FriendCompletes),
			FriendSaves:     nullFloat(row.FriendSaves),
			FriendLikes:     nullFloat(row.FriendLikes),
			CollabHint:      row.CollabHint.Valid && row.CollabHint.Bool,
			DistanceKm:      nullFloatPtr(row.DistanceKm),
			PriceMin:        nullFloatPtr(row.PriceMin),
			PriceMax:        nullFloatPtr(row.PriceMax),
			Difficulty:      nullFloatPtr(row.Difficulty),
			AppealScore:     nullFloatPtr(row.AppealScore),
		}
		if row.BucketID.Valid {
			c.BucketID = row.BucketID.String
		}
		if row.Completes.Valid {
			c.Completes = int(row.Completes.Int64)
		}
		if row.CreatedAt.Valid {
			t := row.CreatedAt.Time
			c.CreatedAt = &t
		}
		if len(row.Embedding) > 0 {
			if err := json.Unmarshal(row.Embedding, &c.Embedding); err != nil {
				return nil, fmt.Errorf("failed to unmarshal embedding for item %s: %w", row.ID, err)
			}
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

func nullFloat(v sql.NullFloat64) float64 {
	if v.Valid {
		return v.Float64
	}
	return 0
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

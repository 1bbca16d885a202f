package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"

	"buckit/business/recommend"
	"buckit/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExperimentRepository resolves the active A/B variant for a user.
// Users are assigned lazily on first request, with a deterministic hash
// so re-running an assignment never flips the variant.
type ExperimentRepository struct {
	DB *gorm.DB
}

var _ recommend.ExperimentRepository = (*ExperimentRepository)(nil)

func NewExperimentRepository(db *gorm.DB) *ExperimentRepository {
	return &ExperimentRepository{DB: db}
}

type experimentRow struct {
	ID     string `gorm:"column:id;primaryKey"`
	Name   string `gorm:"column:name"`
	Active bool   `gorm:"column:active"`
}

func (experimentRow) TableName() string {
	return "experiments"
}

type experimentVariantRow struct {
	ExperimentID string         `gorm:"column:experiment_id"`
	Variant      string         `gorm:"column:variant"`
	Params       datatypes.JSON `gorm:"column:params"`
}

func (experimentVariantRow) TableName() string {
	return "experiment_variants"
}

type experimentAssignmentRow struct {
	UserID       string `gorm:"column:user_id;primaryKey"`
	ExperimentID string `gorm:"column:experiment_id;primaryKey"`
	Variant      string `gorm:"column:variant"`
}

func (experimentAssignmentRow) TableName() string {
	return "experiment_assignments"
}

// variantParams mirrors the params jsonb column. Every field is
// optional; absent fields fall back to the scorer defaults.
type variantParams struct {
	SocialWeight *float64 `json:"social_weight"`
	AppealWeight *float64 `json:"appeal_weight"`
	TraitWeight  *float64 `json:"trait_weight"`
	StateWeight  *float64 `json:"state_weight"`
	CostWeight   *float64 `json:"cost_weight"`
	MMRLambda    *float64 `json:"mmr_lambda"`
	ExploreSlots *int     `json:"explore_slots"`
}

func (r *ExperimentRepository) GetAssignment(ctx context.Context, userID, experimentName string) (*domain.ExperimentAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var exp experimentRow
	err := r.DB.WithContext(ctx).
		Where("name = ? AND active = ?", experimentName, true).
		Take(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// no active experiment: everyone is control
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query experiments: %w", err)
	}

	variant, err := r.resolveVariant(ctx, userID, exp.ID)
	if err != nil {
		return nil, err
	}
	if variant == "" {
		return nil, nil
	}

	var vr experimentVariantRow
	err = r.DB.WithContext(ctx).
		Where("experiment_id = ? AND variant = ?", exp.ID, variant).
		Take(&vr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &domain.ExperimentAssignment{ExperimentID: exp.ID, Variant: variant}, nil
		}
		return nil, fmt.Errorf("failed to query experiment_variants: %w", err)
	}

	assignment := &domain.ExperimentAssignment{
		ExperimentID: exp.ID,
		Variant:      variant,
	}
	if len(vr.Params) > 0 {
		var params variantParams
		if err := json.Unmarshal(vr.Params, &params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variant params: %w", err)
		}
		assignment.SocialWeight = params.SocialWeight
		assignment.AppealWeight = params.AppealWeight
		assignment.TraitWeight = params.TraitWeight
		assignment.StateWeight = params.StateWeight
		assignment.CostWeight = params.CostWeight
		assignment.MMRLambda = params.MMRLambda
		assignment.ExploreSlots = params.ExploreSlots
	}

	return assignment, nil
}

// resolveVariant returns the stored assignment, creating one on first
// contact by hashing the user over the experiment's variant list.
func (r *ExperimentRepository) resolveVariant(ctx context.Context, userID, experimentID string) (string, error) {
	var row experimentAssignmentRow
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND experiment_id = ?", userID, experimentID).
		Take(&row).Error
	if err == nil {
		return row.Variant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to query experiment_assignments: %w", err)
	}

	var variants []string
	err = r.DB.WithContext(ctx).
		Model(&experimentVariantRow{}).
		Where("experiment_id = ?", experimentID).
		Order("variant ASC").
		Pluck("variant", &variants).Error
	if err != nil {
		return "", fmt.Errorf("failed to list experiment variants: %w", err)
	}
	if len(variants) == 0 {
		return "", nil
	}

	h := fnv.New32a()
	h.Write([]byte(userID))
	h.Write([]byte(experimentID))
	picked := variants[int(h.Sum32())%len(variants)]

	assignment := experimentAssignmentRow{
		UserID:       userID,
		ExperimentID: experimentID,
		Variant:      picked,
	}
	err = r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "experiment_id"}},
			DoNothing: true,
		},
	).Create(&assignment).Error
	if err != nil {
		return "", fmt.Errorf("failed to persist experiment assignment: %w", err)
	}

	return picked, nil
}

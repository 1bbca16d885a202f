package bandit

import (
	"context"
	"fmt"
	"time"

	"buckit/pkg/logger"
)

const defaultAlpha = 1.0

// ArmRepository persists per-(user, item) LinUCB arms. A nil arm from
// GetArm means the pair has never been observed.
type ArmRepository interface {
	GetArm(ctx context.Context, userID, itemID string) (*ArmState, error)
	SaveArm(ctx context.Context, userID, itemID string, arm *ArmState) error
}

// Service computes upper-confidence-bound scores for exploration and
// folds observed rewards back into the arm statistics. All cross-request
// state lives in the repository; the service itself is stateless.
type Service struct {
	armRepo ArmRepository
	alpha   float64
}

func NewService(armRepo ArmRepository) *Service {
	return &Service{
		armRepo: armRepo,
		alpha:   defaultAlpha,
	}
}

// UCBScore returns theta·x + alpha*sqrt(x^T A^-1 x) for the arm keyed by
// (userID, itemID). An unseen pair scores against a fresh arm, which is
// all uncertainty and no mean.
func (s *Service) UCBScore(ctx context.Context, userID, itemID string, features [FeatureDim]float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	arm, err := s.armRepo.GetArm(ctx, userID, itemID)
	if err != nil {
		return 0, fmt.Errorf("load bandit arm: %w", err)
	}
	if arm == nil {
		arm = NewArmState()
	}

	aInv, err := invert(arm.A)
	if err != nil {
		// singular state is unrecoverable; score as if unseen
		arm = NewArmState()
		aInv, _ = invert(arm.A)
	}
	theta := matVecMul(aInv, arm.B)

	return ucbScore(theta, features, aInv, s.alpha), nil
}

// UpdateArm applies one observed reward to the arm. Alpha only matters
// at scoring time; it is accepted here to match the wire contract.
func (s *Service) UpdateArm(ctx context.Context, userID, itemID string, features [FeatureDim]float64, reward, alpha float64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	arm, err := s.armRepo.GetArm(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("load bandit arm: %w", err)
	}
	if arm == nil {
		arm = NewArmState()
	}

	applyDecay(arm)
	addOuter(&arm.A, features)
	addScaled(&arm.B, features, reward)
	arm.Count++
	arm.LastUpdated = time.Now()

	logger.Debug("bandit_arm_update",
		"user_id", userID,
		"item_id", itemID,
		"reward", reward,
		"alpha", alpha,
		"count", arm.Count,
	)

	if err := s.armRepo.SaveArm(ctx, userID, itemID, arm); err != nil {
		return fmt.Errorf("save bandit arm: %w", err)
	}

	return nil
}

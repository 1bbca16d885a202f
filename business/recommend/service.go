package recommend

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"buckit/business/bandit"
	"buckit/domain"
	"buckit/pkg/config"
	"buckit/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const (
	defaultRadiusKm = 15.0
	defaultK        = 20
)

// ---- Repository interfaces ----

// RateLimiter is the external check-then-increment pair. Check never
// mutates the window.
type RateLimiter interface {
	Check(ctx context.Context, userID, ip string, limit int, window time.Duration) (domain.RateLimitStatus, error)
	Increment(ctx context.Context, userID, ip string) error
}

type ExperimentRepository interface {
	// GetAssignment returns nil, nil when the user has no assignment;
	// all weight defaults apply in that case.
	GetAssignment(ctx context.Context, userID, experimentName string) (*domain.ExperimentAssignment, error)
}

type CacheRepository interface {
	// Get returns nil, nil on a cache miss.
	Get(ctx context.Context, userID string, lat, lon float64, variant string) (*domain.RecommendResponse, error)
	Set(ctx context.Context, userID string, lat, lon float64, variant string, payload *domain.RecommendResponse, ttl time.Duration) error
}

type CandidateRepository interface {
	GetCandidates(ctx context.Context, userID string, lat, lon, radiusKm float64, limit int) ([]domain.RawCandidate, error)
}

type VectorRepository interface {
	// TraitVector returns nil, nil when the user has no stored vector.
	TraitVector(ctx context.Context, userID string) ([]float64, error)
	RecentEngagement(ctx context.Context, userID string, limit int) ([]domain.EngagementRow, error)
	RecentCompletions(ctx context.Context, userID string, limit int) ([]domain.EngagementRow, error)
}

type ImpressionRepository interface {
	LogImpressions(ctx context.Context, userID string, itemIDs []string, lat, lon float64, experimentID, variant string) error
	LogEvent(ctx context.Context, event domain.EngagementEvent) error
	// ExposureFactor returns a dampening multiplier in (0, 1].
	ExposureFactor(ctx context.Context, userID, itemID string, maxExposures, windowDays int) (float64, error)
}

// BanditScorer is the injected bandit contract, so the exploration step
// stays unit-testable without a live store.
type BanditScorer interface {
	UCBScore(ctx context.Context, userID, itemID string, features [bandit.FeatureDim]float64) (float64, error)
	UpdateArm(ctx context.Context, userID, itemID string, features [bandit.FeatureDim]float64, reward, alpha float64) error
}

type PerformanceRepository interface {
	LogMetric(ctx context.Context, userID, functionName string, duration time.Duration, success bool, errMessage string) error
}

// ---- Service ----

// Service runs the per-request recommendation pipeline: rate check,
// experiment assignment, cache lookup, candidate scoring, MMR
// diversification, bandit exploration, cache write and impression
// logging. It holds no mutable state across requests.
type Service struct {
	limiter     RateLimiter
	experiments ExperimentRepository
	cache       CacheRepository
	candidates  CandidateRepository
	vectors     VectorRepository
	impressions ImpressionRepository
	bandit      BanditScorer
	perf        PerformanceRepository
	cfg         config.RecommendConfig
}

func NewService(
	limiter RateLimiter,
	experiments ExperimentRepository,
	cache CacheRepository,
	candidates CandidateRepository,
	vectors VectorRepository,
	impressions ImpressionRepository,
	banditScorer BanditScorer,
	perf PerformanceRepository,
	cfg config.RecommendConfig,
) *Service {
	return &Service{
		limiter:     limiter,
		experiments: experiments,
		cache:       cache,
		candidates:  candidates,
		vectors:     vectors,
		impressions: impressions,
		bandit:      banditScorer,
		perf:        perf,
		cfg:         cfg,
	}
}

// Recommend runs the full pipeline for one request. A *domain.
// RateLimitError means the caller was rejected; any other error is a
// hard failure. Soft failures (cache, impressions, metrics, single UCB
// lookups) are logged and swallowed.
func (s *Service) Recommend(ctx context.Context, req domain.RecommendRequest, clientIP string) (*domain.RecommendResponse, error) {
	start := time.Now()

	resp, err := s.recommend(ctx, req, clientIP)

	if _, limited := errAsRateLimit(err); !limited {
		if perr := s.perf.LogMetric(ctx, req.UserID, "recommend", time.Since(start), err == nil, errMessage(err)); perr != nil {
			logger.Warn("performance metric logging failed", "error", perr)
		}
	}

	return resp, err
}

func (s *Service) recommend(ctx context.Context, req domain.RecommendRequest, clientIP string) (*domain.RecommendResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidRequest)
	}

	radiusKm := req.RadiusKm
	if radiusKm <= 0 {
		radiusKm = defaultRadiusKm
	}
	k := req.K
	if k <= 0 {
		k = defaultK
	}

	// 1) rate check, before any expensive work. A limiter outage is a
	// soft failure: the request proceeds unthrottled.
	rate := domain.RateLimitStatus{Allowed: true}
	if st, err := s.limiter.Check(ctx, req.UserID, clientIP, s.cfg.RateLimit, s.cfg.RateWindow); err != nil {
		logger.Warn("rate limit check failed", "user_id", req.UserID, "error", err)
	} else {
		rate = st
	}
	if !rate.Allowed {
		return nil, &domain.RateLimitError{
			Remaining: rate.Remaining,
			ResetAt:   rate.ResetAt,
			Window:    s.cfg.RateWindow,
		}
	}

	// 2) experiment assignment; absence means control with defaults
	assignment, err := s.experiments.GetAssignment(ctx, req.UserID, s.cfg.ExperimentName)
	if err != nil {
		logger.Warn("experiment assignment failed", "user_id", req.UserID, "error", err)
		assignment = nil
	}
	variant := controlVariant
	experimentID := ""
	if assignment != nil {
		variant = assignment.Variant
		experimentID = assignment.ExperimentID
	}

	// 3) cache lookup; the key carries the variant so variants never
	// share a payload
	cached, err := s.cache.Get(ctx, req.UserID, req.Lat, req.Lon, variant)
	if err != nil {
		logger.Warn("cache lookup failed", "user_id", req.UserID, "error", err)
	}
	if cached != nil {
		if err := s.limiter.Increment(ctx, req.UserID, clientIP); err != nil {
			logger.Warn("rate limit increment failed", "user_id", req.UserID, "error", err)
		}
		RecommendationsServedTotal.WithLabelValues(variant, "true").Inc()
		return &domain.RecommendResponse{
			Items:      cached.Items,
			Cached:     true,
			Remaining:  rate.Remaining,
			Experiment: experimentRef(experimentID, variant, assignment),
		}, nil
	}

	// 4) candidate fetch is the one caller-visible dependency
	candidates, err := s.candidates.GetCandidates(ctx, req.UserID, req.Lat, req.Lon, radiusKm, s.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCandidateFetch, err)
	}
	if len(candidates) == 0 {
		logger.Info("no candidates found", "user_id", req.UserID)
		return &domain.RecommendResponse{
			Items:      []domain.RecommendedItem{},
			Cached:     false,
			Remaining:  rate.Remaining,
			Experiment: experimentRef(experimentID, variant, assignment),
		}, nil
	}

	traitVec, stateVec := s.loadUserVectors(ctx, req.UserID)
	weights := resolveWeights(assignment)

	logger.Debug("recommend_pipeline",
		"trace_id", TraceIDFromContext(ctx),
		"user_id", req.UserID,
		"variant", variant,
		"candidate_count", len(candidates),
		"k", k,
	)

	// 5) enrichment is embarrassingly parallel
	enriched := s.enrich(ctx, candidates, traitVec, stateVec, weights)

	// 6) bucket cap, exposure dampening, then MMR
	filtered := capPerBucket(enriched, maxPerBucket)
	filtered = s.dampenExposure(ctx, req.UserID, filtered)
	diversified := mmrSelect(filtered, k, weights.MMRLambda)

	// 7) exploration under its own deadline; on expiry the diversified
	// list ships unspliced
	exploreCtx, cancel := context.WithTimeout(ctx, s.cfg.ExploreTimeout)
	final := s.injectExplore(exploreCtx, req.UserID, diversified, enriched, weights.ExploreSlots)
	cancel()

	items := make([]domain.RecommendedItem, 0, len(final))
	ids := make([]string, 0, len(final))
	for _, it := range final {
		items = append(items, domain.RecommendedItem{ID: it.ID, Score: it.Score, Reasons: it.Reasons})
		ids = append(ids, it.ID)
	}

	resp := &domain.RecommendResponse{
		Items:      items,
		Cached:     false,
		Remaining:  rate.Remaining,
		Experiment: experimentRef(experimentID, variant, assignment),
	}

	// 8) cache write, impressions and limiter increment are all soft
	if err := s.cache.Set(ctx, req.UserID, req.Lat, req.Lon, variant, resp, s.cfg.CacheTTL); err != nil {
		logger.Warn("cache write failed", "user_id", req.UserID, "error", err)
	}
	if err := s.impressions.LogImpressions(ctx, req.UserID, ids, req.Lat, req.Lon, experimentID, variant); err != nil {
		logger.Warn("impression logging failed", "user_id", req.UserID, "error", err)
	}
	if err := s.limiter.Increment(ctx, req.UserID, clientIP); err != nil {
		logger.Warn("rate limit increment failed", "user_id", req.UserID, "error", err)
	}

	RecommendationsServedTotal.WithLabelValues(variant, "false").Inc()

	return resp, nil
}

// loadUserVectors fetches the static trait vector and builds the
// short-term state vector. Both degrade to nil on any failure.
func (s *Service) loadUserVectors(ctx context.Context, userID string) (traitVec, stateVec []float64) {
	traitVec, err := s.vectors.TraitVector(ctx, userID)
	if err != nil {
		logger.Warn("trait vector fetch failed", "user_id", userID, "error", err)
		traitVec = nil
	}

	rows, err := s.vectors.RecentEngagement(ctx, userID, 20)
	if err != nil {
		logger.Warn("engagement fetch failed", "user_id", userID, "error", err)
		rows = nil
	}
	if len(rows) == 0 {
		rows, err = s.vectors.RecentCompletions(ctx, userID, 10)
		if err != nil {
			logger.Warn("completions fetch failed", "user_id", userID, "error", err)
			rows = nil
		}
	}

	return traitVec, ComputeStateVector(rows, time.Now())
}

func (s *Service) enrich(ctx context.Context, candidates []domain.RawCandidate, traitVec, stateVec []float64, w Weights) []domain.ScoredItem {
	now := time.Now()
	scored := make([]domain.ScoredItem, len(candidates))
	valid := make([]bool, len(candidates))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range candidates {
		g.Go(func() error {
			item, err := ScoreCandidate(c, traitVec, stateVec, now, w)
			if err != nil {
				logger.Warn("candidate rejected", "error", err)
				return nil
			}
			scored[i] = item
			valid[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.ScoredItem, 0, len(candidates))
	for i, ok := range valid {
		if ok {
			out = append(out, scored[i])
		}
	}
	return out
}

// dampenExposure multiplies each score by the item's exposure factor so
// repeatedly shown items sink. A lookup failure leaves the score alone.
func (s *Service) dampenExposure(ctx context.Context, userID string, items []domain.ScoredItem) []domain.ScoredItem {
	factors := make([]float64, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(banditFanout)
	for i, it := range items {
		g.Go(func() error {
			f, err := s.impressions.ExposureFactor(gctx, userID, it.ID, exposureMaxExposures, exposureWindowDays)
			if err != nil || f <= 0 {
				f = 1.0
			}
			factors[i] = f
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.ScoredItem, len(items))
	for i, it := range items {
		it.Score = finite(it.Score * factors[i])
		out[i] = it
	}
	return out
}

// LogFeedback records one explicit feedback event and folds its reward
// into the bandit arm for (userID, itemID).
func (s *Service) LogFeedback(ctx context.Context, userID, itemID, eventType string, features [bandit.FeatureDim]float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	reward, err := bandit.RewardForEvent(eventType)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	event := domain.EngagementEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		ItemID:    itemID,
		EventType: eventType,
		Strength:  reward,
		Context:   datatypes.JSONMap{"source": "feedback"},
	}
	if err := s.impressions.LogEvent(ctx, event); err != nil {
		return 0, fmt.Errorf("save feedback event: %w", err)
	}

	if err := s.bandit.UpdateArm(ctx, userID, itemID, features, reward, 1.0); err != nil {
		return 0, fmt.Errorf("update bandit arm: %w", err)
	}

	FeedbackEventsTotal.WithLabelValues(eventType).Inc()

	return reward, nil
}

func experimentRef(id, variant string, assignment *domain.ExperimentAssignment) domain.ExperimentRef {
	if assignment == nil {
		// no assignment: id and variant are null in the response body
		return domain.ExperimentRef{}
	}
	return domain.ExperimentRef{ID: &id, Variant: &variant}
}

func errAsRateLimit(err error) (*domain.RateLimitError, bool) {
	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"buckit/domain"
	"buckit/pkg/config"
)

// ---- stubs ----

type stubLimiter struct {
	status     domain.RateLimitStatus
	err        error
	checks     int
	increments int
}

func (l *stubLimiter) Check(_ context.Context, _, _ string, _ int, _ time.Duration) (domain.RateLimitStatus, error) {
	l.checks++
	return l.status, l.err
}

func (l *stubLimiter) Increment(_ context.Context, _, _ string) error {
	l.increments++
	return nil
}

type stubExperiments struct {
	assignment *domain.ExperimentAssignment
	err        error
}

func (e *stubExperiments) GetAssignment(_ context.Context, _, _ string) (*domain.ExperimentAssignment, error) {
	return e.assignment, e.err
}

type stubCache struct {
	mu      sync.Mutex
	entries map[string]*domain.RecommendResponse
	gets    []string
	sets    []string
	err     error
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string]*domain.RecommendResponse)}
}

func cacheKey(userID string, lat, lon float64, variant string) string {
	return fmt.Sprintf("%s:%.4f:%.4f:%s", userID, lat, lon, variant)
}

func (c *stubCache) Get(_ context.Context, userID string, lat, lon float64, variant string) (*domain.RecommendResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(userID, lat, lon, variant)
	c.gets = append(c.gets, key)
	if c.err != nil {
		return nil, c.err
	}
	return c.entries[key], nil
}

func (c *stubCache) Set(_ context.Context, userID string, lat, lon float64, variant string, payload *domain.RecommendResponse, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(userID, lat, lon, variant)
	c.sets = append(c.sets, key)
	if c.err != nil {
		return c.err
	}
	c.entries[key] = payload
	return nil
}

type stubCandidates struct {
	candidates []domain.RawCandidate
	err        error
	calls      int
}

func (s *stubCandidates) GetCandidates(_ context.Context, _ string, _, _, _ float64, _ int) ([]domain.RawCandidate, error) {
	s.calls++
	return s.candidates, s.err
}

type stubVectors struct {
	trait []float64
}

func (s *stubVectors) TraitVector(_ context.Context, _ string) ([]float64, error) {
	return s.trait, nil
}

func (s *stubVectors) RecentEngagement(_ context.Context, _ string, _ int) ([]domain.EngagementRow, error) {
	return nil, nil
}

func (s *stubVectors) RecentCompletions(_ context.Context, _ string, _ int) ([]domain.EngagementRow, error) {
	return nil, nil
}

type stubImpressions struct {
	mu        sync.Mutex
	logged    [][]string
	events    []domain.EngagementEvent
	exposures map[string]float64
}

func newStubImpressions() *stubImpressions {
	return &stubImpressions{exposures: make(map[string]float64)}
}

func (s *stubImpressions) LogImpressions(_ context.Context, _ string, itemIDs []string, _, _ float64, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logged = append(s.logged, itemIDs)
	return nil
}

func (s *stubImpressions) LogEvent(_ context.Context, event domain.EngagementEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubImpressions) ExposureFactor(_ context.Context, _, itemID string, _, _ int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.exposures[itemID]; ok {
		return f, nil
	}
	return 1.0, nil
}

type stubPerf struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubPerf) LogMetric(_ context.Context, _, functionName string, _ time.Duration, success bool, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("%s:%t", functionName, success))
	return nil
}

// ---- fixtures ----

func testConfig() config.RecommendConfig {
	return config.RecommendConfig{
		ExperimentName: "social_weight_test",
		RateLimit:      30,
		RateWindow:     10 * time.Minute,
		CacheTTL:       5 * time.Minute,
		CandidateLimit: 300,
		ExploreTimeout: time.Second,
	}
}

func candidateFixture(n int) []domain.RawCandidate {
	out := make([]domain.RawCandidate, 0, n)
	for i := 0; i < n; i++ {
		dist := float64(i) * 2
		price := float64(i) * 15
		created := time.Now().Add(-time.Duration(i) * 24 * time.Hour)
		out = append(out, domain.RawCandidate{
			ID:         fmt.Sprintf("item-%d", i),
			BucketID:   fmt.Sprintf("bucket-%d", i%4),
			Embedding:  []float64{float64(i), 1, 0.5, float64(i % 2)},
			DistanceKm: &dist,
			PriceMax:   &price,
			Completes:  i * 3,
			CreatedAt:  &created,
		})
	}
	return out
}

type serviceFixture struct {
	svc         *Service
	limiter     *stubLimiter
	cache       *stubCache
	candidates  *stubCandidates
	impressions *stubImpressions
	banditStub  *stubBandit
	perf        *stubPerf
	experiments *stubExperiments
}

func newServiceFixture(n int) *serviceFixture {
	f := &serviceFixture{
		limiter:     &stubLimiter{status: domain.RateLimitStatus{Allowed: true, Remaining: 29, ResetAt: time.Now().Add(10 * time.Minute)}},
		experiments: &stubExperiments{},
		cache:       newStubCache(),
		candidates:  &stubCandidates{candidates: candidateFixture(n)},
		impressions: newStubImpressions(),
		banditStub:  &stubBandit{scores: map[string]float64{}},
		perf:        &stubPerf{},
	}
	f.svc = NewService(
		f.limiter,
		f.experiments,
		f.cache,
		f.candidates,
		&stubVectors{trait: []float64{0.5, 0.5, 0.5, 0.5}},
		f.impressions,
		f.banditStub,
		f.perf,
		testConfig(),
	)
	return f
}

func baseRequest() domain.RecommendRequest {
	return domain.RecommendRequest{UserID: "U1", Lat: 37.7, Lon: -122.4, K: 5}
}

// ---- tests ----

func TestRecommendRateLimitShortCircuit(t *testing.T) {
	f := newServiceFixture(8)
	f.limiter.status = domain.RateLimitStatus{Allowed: false, Remaining: 0, ResetAt: time.Now().Add(time.Minute)}

	_, err := f.svc.Recommend(context.Background(), baseRequest(), "1.2.3.4")

	var rl *domain.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.RetryAfter() != testConfig().RateWindow {
		t.Errorf("RetryAfter = %v, want the full window %v", rl.RetryAfter(), testConfig().RateWindow)
	}
	if f.candidates.calls != 0 {
		t.Error("rate-limited request must not fetch candidates")
	}
	if len(f.cache.sets) != 0 {
		t.Error("rate-limited request must not write the cache")
	}
	if f.limiter.increments != 0 {
		t.Error("rate-limited request must not increment the window")
	}
}

func TestRecommendEndToEnd(t *testing.T) {
	f := newServiceFixture(8)
	req := baseRequest()

	resp, err := f.svc.Recommend(context.Background(), req, "1.2.3.4")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	// k=5 plus two exploration picks
	if len(resp.Items) != 7 {
		t.Fatalf("got %d items, want 7 (k=5 + 2 explore slots)", len(resp.Items))
	}
	if resp.Cached {
		t.Error("first call should not be cached")
	}
	if resp.Remaining != 29 {
		t.Errorf("remaining = %d, want 29", resp.Remaining)
	}

	for _, it := range resp.Items {
		for name, v := range map[string]float64{
			"score": it.Score, "appeal": it.Reasons.Appeal, "trait": it.Reasons.Trait,
			"state": it.Reasons.State, "social": it.Reasons.Social,
			"cost": it.Reasons.Cost, "poprec": it.Reasons.Poprec,
		} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("item %s %s is not finite: %v", it.ID, name, v)
			}
		}
	}

	if f.limiter.increments != 1 {
		t.Errorf("limiter incremented %d times, want 1", f.limiter.increments)
	}
	if len(f.impressions.logged) != 1 || len(f.impressions.logged[0]) != 7 {
		t.Errorf("expected one impression batch of 7 ids, got %+v", f.impressions.logged)
	}
	if len(f.perf.calls) != 1 || f.perf.calls[0] != "recommend:true" {
		t.Errorf("expected one success metric, got %v", f.perf.calls)
	}

	// immediate repeat with the same coordinates and variant hits cache
	again, err := f.svc.Recommend(context.Background(), req, "1.2.3.4")
	if err != nil {
		t.Fatalf("second Recommend failed: %v", err)
	}
	if !again.Cached {
		t.Error("second call should be served from cache")
	}
	if f.candidates.calls != 1 {
		t.Errorf("cache hit must skip candidate fetch, fetches = %d", f.candidates.calls)
	}
	if len(again.Items) != len(resp.Items) {
		t.Errorf("cached items differ: %d vs %d", len(again.Items), len(resp.Items))
	}
}

func TestRecommendCacheKeyVariantIsolation(t *testing.T) {
	f := newServiceFixture(8)
	req := baseRequest()

	// first request under control fills the control cache entry
	if _, err := f.svc.Recommend(context.Background(), req, "ip"); err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	// same user and coordinates under a different variant must miss
	f.experiments.assignment = &domain.ExperimentAssignment{ExperimentID: "exp-1", Variant: "treatment"}
	resp, err := f.svc.Recommend(context.Background(), req, "ip")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if resp.Cached {
		t.Error("different variant must not read another variant's cache entry")
	}
	if f.candidates.calls != 2 {
		t.Errorf("expected a second candidate fetch, got %d", f.candidates.calls)
	}
}

func TestRecommendCandidateFetchFailure(t *testing.T) {
	f := newServiceFixture(0)
	f.candidates.err = errors.New("db down")

	_, err := f.svc.Recommend(context.Background(), baseRequest(), "ip")
	if !errors.Is(err, domain.ErrCandidateFetch) {
		t.Fatalf("expected ErrCandidateFetch, got %v", err)
	}

	if len(f.perf.calls) != 1 || f.perf.calls[0] != "recommend:false" {
		t.Errorf("failure path should log a failed metric, got %v", f.perf.calls)
	}
}

func TestRecommendEmptyCandidates(t *testing.T) {
	f := newServiceFixture(0)

	resp, err := f.svc.Recommend(context.Background(), baseRequest(), "ip")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Errorf("got %d items, want 0", len(resp.Items))
	}
	if resp.Cached {
		t.Error("empty result should not be marked cached")
	}
}

func TestRecommendLimiterOutageProceeds(t *testing.T) {
	f := newServiceFixture(8)
	f.limiter.err = errors.New("redis down")

	resp, err := f.svc.Recommend(context.Background(), baseRequest(), "ip")
	if err != nil {
		t.Fatalf("limiter outage should not fail the request: %v", err)
	}
	if len(resp.Items) == 0 {
		t.Error("expected items despite limiter outage")
	}
}

func TestRecommendExperimentDefaultsOnNoAssignment(t *testing.T) {
	f := newServiceFixture(8)

	resp, err := f.svc.Recommend(context.Background(), baseRequest(), "ip")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if resp.Experiment.ID != nil || resp.Experiment.Variant != nil {
		t.Errorf("no assignment should surface null experiment, got %+v", resp.Experiment)
	}
}

func TestRecommendStripsEmbeddings(t *testing.T) {
	f := newServiceFixture(8)

	resp, err := f.svc.Recommend(context.Background(), baseRequest(), "ip")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	// RecommendedItem has no embedding field at all; what we can check
	// is that the payload cached for replay equals the returned items.
	cachedKey := cacheKey("U1", 37.7, -122.4, controlVariant)
	if f.cache.entries[cachedKey] == nil {
		t.Fatal("expected a cache write")
	}
	if len(f.cache.entries[cachedKey].Items) != len(resp.Items) {
		t.Error("cached payload diverges from response")
	}
}

func TestRecommendExposureDampeningSinksItem(t *testing.T) {
	f := newServiceFixture(8)
	// hammer the top item so it drops out of the first positions
	f.impressions.exposures["item-0"] = 0.01

	resp, err := f.svc.Recommend(context.Background(), baseRequest(), "ip")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	for i, it := range resp.Items {
		if it.ID == "item-0" && i == 0 {
			t.Error("heavily exposed item should not lead the feed")
		}
	}
}

func TestLogFeedback(t *testing.T) {
	f := newServiceFixture(0)

	reward, err := f.svc.LogFeedback(context.Background(), "U1", "item-1", "complete", [6]float64{0.5, 0.1, 0.2, 0.05, 0.3, 0.4})
	if err != nil {
		t.Fatalf("LogFeedback failed: %v", err)
	}
	if reward != 1.0 {
		t.Errorf("reward = %v, want 1.0", reward)
	}
	if len(f.impressions.events) != 1 {
		t.Fatalf("expected one stored event, got %d", len(f.impressions.events))
	}
	if f.impressions.events[0].EventType != "complete" {
		t.Errorf("event type = %s", f.impressions.events[0].EventType)
	}
	if len(f.banditStub.updated) != 1 || f.banditStub.updated[0] != "item-1" {
		t.Errorf("bandit arm not updated: %v", f.banditStub.updated)
	}
}

func TestLogFeedbackUnknownEvent(t *testing.T) {
	f := newServiceFixture(0)

	if _, err := f.svc.LogFeedback(context.Background(), "U1", "item-1", "purchase", [6]float64{}); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

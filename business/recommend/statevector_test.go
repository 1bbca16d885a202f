package recommend

import (
	"math"
	"testing"
	"time"

	"buckit/domain"
)

func TestComputeStateVectorEmpty(t *testing.T) {
	if got := ComputeStateVector(nil, time.Now()); got != nil {
		t.Errorf("expected nil for no rows, got %v", got)
	}
	rows := []domain.EngagementRow{{CreatedAt: time.Now()}}
	if got := ComputeStateVector(rows, time.Now()); got != nil {
		t.Errorf("expected nil when no row has an embedding, got %v", got)
	}
}

func TestComputeStateVectorSingleRow(t *testing.T) {
	now := time.Now()
	rows := []domain.EngagementRow{
		{CreatedAt: now, Embedding: []float64{1, 2, 3}},
	}

	got := ComputeStateVector(rows, now)
	want := []float64{1, 2, 3}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestComputeStateVectorRecencyWeighting(t *testing.T) {
	now := time.Now()
	rows := []domain.EngagementRow{
		{CreatedAt: now, Embedding: []float64{1, 0}},
		{CreatedAt: now.Add(-70 * 24 * time.Hour), Embedding: []float64{0, 1}},
	}

	got := ComputeStateVector(rows, now)

	// the fresh row dominates a ten-half-lives-old one
	if got[0] <= got[1] {
		t.Errorf("recent embedding should dominate: %v", got)
	}
	if got[0] < 0.99 {
		t.Errorf("got[0] = %v, want ~1 (old row weight ~2^-10)", got[0])
	}
}

func TestComputeStateVectorHalfLife(t *testing.T) {
	now := time.Now()
	rows := []domain.EngagementRow{
		{CreatedAt: now, Embedding: []float64{1}},
		{CreatedAt: now.Add(-7 * 24 * time.Hour), Embedding: []float64{0}},
	}

	got := ComputeStateVector(rows, now)

	// weights 1 and 0.5, so the average is 1/(1.5)
	want := 1.0 / 1.5
	if math.Abs(got[0]-want) > 1e-9 {
		t.Errorf("got[0] = %v, want %v", got[0], want)
	}
}

func TestComputeStateVectorMixedDims(t *testing.T) {
	now := time.Now()
	rows := []domain.EngagementRow{
		{CreatedAt: now, Embedding: []float64{1, 1, 1, 1}},
		{CreatedAt: now, Embedding: []float64{1, 1}},
	}

	got := ComputeStateVector(rows, now)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4 (longest embedding)", len(got))
	}
	if got[0] != 1 || got[3] != 0.5 {
		t.Errorf("unexpected blend: %v", got)
	}
}

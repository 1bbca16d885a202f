package recommend

import (
	"testing"

	"buckit/domain"
)

func TestCapPerBucket(t *testing.T) {
	items := []domain.ScoredItem{
		{ID: "a1", BucketID: "a"},
		{ID: "a2", BucketID: "a"},
		{ID: "b1", BucketID: "b"},
		{ID: "a3", BucketID: "a"},
		{ID: "a4", BucketID: "a"},
		{ID: "b2", BucketID: "b"},
	}

	got := capPerBucket(items, 3)

	want := []string{"a1", "a2", "b1", "a3", "b2"}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestCapPerBucketDefaultBucket(t *testing.T) {
	items := []domain.ScoredItem{
		{ID: "x1"}, {ID: "x2"}, {ID: "x3"}, {ID: "x4"},
	}

	got := capPerBucket(items, 3)
	if len(got) != 3 {
		t.Errorf("unbucketed items share one group: got %d, want 3", len(got))
	}
}

func TestCapPerBucketNoCap(t *testing.T) {
	items := itemsFixture(5)
	got := capPerBucket(items, 0)
	if len(got) != 5 {
		t.Errorf("cap <= 0 should pass everything through, got %d", len(got))
	}
}

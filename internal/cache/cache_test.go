package cache

import (
	"testing"
	"time"

	"digestgate/internal/model"
)

func TestDigest_StableAcrossFieldOrder(t *testing.T) {
	q1 := model.SearchQuery{Text: "golang", Count: 5, Categories: []string{"general", "news"}}
	q2 := model.SearchQuery{Text: "golang", Count: 5, Categories: []string{"news", "general"}}

	if Digest(q1) != Digest(q2) {
		t.Fatalf("expected identical digests regardless of categories order")
	}
}

func TestDigest_ChangesWithAnyField(t *testing.T) {
	base := model.SearchQuery{Text: "golang", Count: 5}
	variants := []model.SearchQuery{
		{Text: "golang2", Count: 5},
		{Text: "golang", Count: 6},
		{Text: "golang", Count: 5, Language: "en"},
		{Text: "golang", Count: 5, PageNumber: 2},
	}

	baseDigest := Digest(base)
	for i, v := range variants {
		if Digest(v) == baseDigest {
			t.Fatalf("variant %d: expected digest to change when a field changes", i)
		}
	}
}

func TestClassifyAge(t *testing.T) {
	c := &Cache{validMs: model.ValidMs, retentionMs: model.RetentionMs}
	now := time.Now().UTC()

	if got := c.classify(now.Add(-30 * time.Minute)); got != model.Fresh {
		t.Fatalf("expected Fresh, got %v", got)
	}
	if got := c.classify(now.Add(-2 * time.Hour)); got != model.Stale {
		t.Fatalf("expected Stale, got %v", got)
	}
	if got := c.classify(now.Add(-8 * 24 * time.Hour)); got != model.Expired {
		t.Fatalf("expected Expired, got %v", got)
	}
}

package aggregator

import (
	"context"
	"testing"
	"time"

	"digestgate/internal/model"
	"digestgate/internal/scraper"
)

// fakeBrowser emits one pre-built snapshot per URL then closes the stream.
type fakeBrowser struct {
	snapshots map[string]*model.PageSnapshot
}

func (f *fakeBrowser) Scrape(ctx context.Context, rawURL string, opts scraper.ScrapeOptions) (<-chan *model.PageSnapshot, error) {
	ch := make(chan *model.PageSnapshot, 1)
	go func() {
		defer close(ch)
		if snap, ok := f.snapshots[rawURL]; ok {
			ch <- snap
		}
	}()
	return ch, nil
}

func TestScrapeMany_EmitsInitialNilSlotsThenFinalState(t *testing.T) {
	urls := []string{"https://a.example", "https://b.example"}
	browser := &fakeBrowser{snapshots: map[string]*model.PageSnapshot{
		"https://a.example": {Title: "A"},
		"https://b.example": {Title: "B"},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch := ScrapeMany(ctx, browser, urls, scraper.ScrapeOptions{}, nil)

	first, ok := <-ch
	if !ok {
		t.Fatalf("expected an initial emission")
	}
	if len(first) != 2 || first[0] != nil || first[1] != nil {
		t.Fatalf("expected initial slots to be nil-filled, got %+v", first)
	}

	var last []*model.PageSnapshot
	for slots := range ch {
		last = slots
	}
	if last == nil {
		t.Fatalf("expected a final emission before channel close")
	}
	if last[0] == nil || last[0].Title != "A" {
		t.Fatalf("expected slot 0 filled with A, got %+v", last[0])
	}
	if last[1] == nil || last[1].Title != "B" {
		t.Fatalf("expected slot 1 filled with B, got %+v", last[1])
	}
}

func TestScrapeMany_EmissionsAreImmutableCopies(t *testing.T) {
	urls := []string{"https://a.example"}
	browser := &fakeBrowser{snapshots: map[string]*model.PageSnapshot{
		"https://a.example": {Title: "A"},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch := ScrapeMany(ctx, browser, urls, scraper.ScrapeOptions{}, nil)

	first := <-ch
	first[0] = &model.PageSnapshot{Title: "mutated"}

	var last []*model.PageSnapshot
	for slots := range ch {
		last = slots
	}
	if last[0].Title == "mutated" {
		t.Fatalf("mutating a received slice must not affect later emissions")
	}
}

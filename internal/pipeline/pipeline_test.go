package pipeline

import (
	"testing"

	"digestgate/internal/model"
)

func qualifiedPage(title string) *model.FormattedPage {
	return &model.FormattedPage{Title: title, Content: "body text"}
}

func unqualifiedPage(title string) *model.FormattedPage {
	return &model.FormattedPage{Title: title}
}

func TestReorganize_QualifiedFirstThenFillToCount(t *testing.T) {
	pages := []*model.FormattedPage{
		unqualifiedPage("a"),
		qualifiedPage("b"),
		unqualifiedPage("c"),
		qualifiedPage("d"),
	}
	urls := []string{"a", "b", "c", "d"}

	out, outURLs := reorganize(pages, urls, 3)
	if len(out) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(out))
	}
	// qualified (b, d) plus one unqualified filler (a), restored to
	// original order: a, b, d.
	want := []string{"a", "b", "d"}
	for i, u := range want {
		if outURLs[i] != u {
			t.Fatalf("slot %d: want url %q, got %q", i, u, outURLs[i])
		}
	}
}

func TestReorganize_DropsQualifiedSlotsBeyondCount(t *testing.T) {
	pages := []*model.FormattedPage{
		qualifiedPage("a"),
		qualifiedPage("b"),
		qualifiedPage("c"),
	}
	urls := []string{"a", "b", "c"}

	out, outURLs := reorganize(pages, urls, 2)
	if len(out) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(out))
	}
	if outURLs[0] != "a" || outURLs[1] != "b" {
		t.Fatalf("expected first two qualified slots kept, got %v", outURLs)
	}
}

func TestAnyQualifiedAndAllQualified(t *testing.T) {
	mixed := []*model.FormattedPage{qualifiedPage("a"), unqualifiedPage("b")}
	if !anyQualified(mixed) {
		t.Fatalf("expected anyQualified true")
	}
	if allQualified(mixed) {
		t.Fatalf("expected allQualified false")
	}

	allGood := []*model.FormattedPage{qualifiedPage("a"), qualifiedPage("b")}
	if !allQualified(allGood) {
		t.Fatalf("expected allQualified true")
	}

	if allQualified(nil) {
		t.Fatalf("expected allQualified false on empty slice")
	}
}

func TestRenderStubBatch(t *testing.T) {
	results := []model.UpstreamResult{
		{Title: "Result One", URL: "https://example.com/1", Content: "desc one"},
	}
	p := &Pipeline{}
	out := p.renderStubBatch(results)
	if out == "" {
		t.Fatalf("expected non-empty stub batch")
	}
}

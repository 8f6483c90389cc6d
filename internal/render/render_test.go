package render

import (
	"strings"
	"testing"

	"digestgate/internal/model"
)

func TestPage_MarkdownContentUsesFullTemplate(t *testing.T) {
	p := &model.FormattedPage{Title: "Example", URL: "https://example.com", Content: "body"}
	out := Page(p)
	if !strings.Contains(out, "Title: Example") {
		t.Fatalf("expected title line, got %q", out)
	}
	if !strings.Contains(out, "Markdown Content:\nbody") {
		t.Fatalf("expected markdown content section, got %q", out)
	}
}

func TestPage_FallsBackToTextRepresentation(t *testing.T) {
	p := &model.FormattedPage{TextRepresentation: "plain text body"}
	if got := Page(p); got != "plain text body" {
		t.Fatalf("expected plain passthrough, got %q", got)
	}
}

func TestPage_Nil(t *testing.T) {
	if got := Page(nil); got != "" {
		t.Fatalf("expected empty string for nil page, got %q", got)
	}
}

func TestBatchEntry_NilPage(t *testing.T) {
	got := BatchEntry(nil, 1, "https://example.com")
	if !strings.Contains(got, "No content available") {
		t.Fatalf("expected no-content placeholder, got %q", got)
	}
}

func TestBatchEntry_StubWhenNoContent(t *testing.T) {
	p := &model.FormattedPage{Title: "T", URL: "https://example.com", Description: "D"}
	got := BatchEntry(p, 2, "https://example.com")
	if !strings.HasPrefix(got, "[2] Title: T") {
		t.Fatalf("expected stub entry prefixed with index, got %q", got)
	}
	if strings.Contains(got, "Markdown Content:") {
		t.Fatalf("stub entry should not include the full content template, got %q", got)
	}
}

func TestBatch_JoinsWithBlankLineAndTrailingNewline(t *testing.T) {
	out := Batch([]string{"first", "second"})
	if out != "first\n\nsecond\n" {
		t.Fatalf("unexpected batch join: %q", out)
	}
}

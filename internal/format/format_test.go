package format

import (
	"os"
	"strings"
	"testing"

	"digestgate/internal/markdown"
	"digestgate/internal/model"
)

func TestFormat_TextModePassesThroughVerbatim(t *testing.T) {
	f := New("", "")
	snap := &model.PageSnapshot{Href: "https://example.com", Title: "Example", Text: "plain body"}

	page, err := f.Format(ModeText, snap, "https://example.com", RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Text != "plain body" || page.TextRepresentation != "plain body" {
		t.Fatalf("expected text mode to pass through verbatim, got %+v", page)
	}
}

func TestFormat_MarkdownModeDegradesForDeepOrHugeDocuments(t *testing.T) {
	f := New("", "")
	snap := &model.PageSnapshot{
		Href:      "https://example.com",
		Title:     "Example",
		HTML:      "<p>hello</p>",
		Text:      "raw fallback text",
		ElemCount: maxElemCount + 1,
	}

	page, err := f.Format(ModeMarkdown, snap, "https://example.com", RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Content != "raw fallback text" {
		t.Fatalf("expected degrade-to-text for oversized docs, got %q", page.Content)
	}
}

func TestFormat_ScreenshotModeWritesFileAndURL(t *testing.T) {
	dir := t.TempDir()
	f := New(dir, "gateway.local")
	snap := &model.PageSnapshot{Href: "https://example.com", Screenshot: []byte{0x89, 'P', 'N', 'G'}}

	page, err := f.Format(ModeScreenshot, snap, "https://example.com", RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(page.ScreenshotURL, "http://gateway.local/instant-screenshots/") {
		t.Fatalf("unexpected screenshot url: %q", page.ScreenshotURL)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one screenshot file written, entries=%v err=%v", entries, err)
	}
}

func TestBuildImagesMixin_GroupsBySrc(t *testing.T) {
	occ := []markdown.ImageOccurrence{
		{Index: 1, Alt: "cat", Src: "https://example.com/cat.png"},
		{Index: 2, Alt: "cat", Src: "https://example.com/cat.png"},
	}
	mixin := buildImagesMixin(occ)
	if len(mixin) != 1 {
		t.Fatalf("expected one grouped entry, got %d", len(mixin))
	}
	for k, v := range mixin {
		if !strings.Contains(k, "1,2") {
			t.Fatalf("expected grouped indices in key, got %q", k)
		}
		if v != "https://example.com/cat.png" {
			t.Fatalf("unexpected src: %q", v)
		}
	}
}

func TestBuildImagesMixin_Empty(t *testing.T) {
	if mixin := buildImagesMixin(nil); len(mixin) != 0 {
		t.Fatalf("expected empty mixin for no occurrences")
	}
}

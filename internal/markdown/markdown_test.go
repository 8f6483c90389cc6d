package markdown

import (
	"strings"
	"testing"
)

func TestToMarkdown_RemovesIrrelevantTags(t *testing.T) {
	res := ToMarkdown(`<style>.x{color:red}</style><p>hello</p><script>evil()</script>`, Options{})
	if strings.Contains(res.Markdown, "color:red") || strings.Contains(res.Markdown, "evil()") {
		t.Fatalf("expected style/script content stripped, got %q", res.Markdown)
	}
	if !strings.Contains(res.Markdown, "hello") {
		t.Fatalf("expected paragraph text preserved, got %q", res.Markdown)
	}
}

func TestToMarkdown_TitleAsH1(t *testing.T) {
	res := ToMarkdown(`<title>My Page</title>`, Options{})
	if !strings.Contains(res.Markdown, "My Page\n===") {
		t.Fatalf("expected underline-style h1, got %q", res.Markdown)
	}
}

func TestToMarkdown_InlineLink(t *testing.T) {
	res := ToMarkdown(`<a href="/about" title="About us">About</a>`, Options{BaseURL: "https://example.com"})
	if !strings.Contains(res.Markdown, `[About](https://example.com/about "About us")`) {
		t.Fatalf("unexpected link rendering: %q", res.Markdown)
	}
	if len(res.Links) != 1 || res.Links[0].Text != "About" {
		t.Fatalf("expected one tracked link occurrence, got %+v", res.Links)
	}
}

func TestToMarkdown_ImageGeneratedAlt(t *testing.T) {
	res := ToMarkdown(`<img src="/a.png" alt="A"><img src="/a.png" alt="A">`, Options{BaseURL: "https://example.com"})
	if len(res.Images) != 2 {
		t.Fatalf("expected 2 image occurrences, got %d", len(res.Images))
	}
	if res.Images[0].Index != 1 || res.Images[1].Index != 2 {
		t.Fatalf("expected monotonic 1-based indices, got %+v", res.Images)
	}
	if res.Images[0].Src != res.Images[1].Src {
		t.Fatalf("expected same resolved src for repeated image")
	}
}

func TestToMarkdown_InlineCodeFencing(t *testing.T) {
	res := ToMarkdown("<code>a `b` c</code>", Options{})
	if !strings.Contains(res.Markdown, "``") {
		t.Fatalf("expected escalated backtick fence for embedded backtick, got %q", res.Markdown)
	}
}

func TestToMarkdown_NoRulesSkipsStructural(t *testing.T) {
	res := ToMarkdown(`<title>Skipped</title><a href="/x">link</a>`, Options{NoRules: true, BaseURL: "https://example.com"})
	if strings.Contains(res.Markdown, "===") {
		t.Fatalf("expected title-as-h1 rule to be inactive under NoRules, got %q", res.Markdown)
	}
	if !strings.Contains(res.Markdown, "[link](https://example.com/x)") {
		t.Fatalf("expected inline-link rule to remain active under NoRules, got %q", res.Markdown)
	}
}

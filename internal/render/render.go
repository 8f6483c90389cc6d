// Package render turns a FormattedPage (or a batch of them) into the
// plain-text string form the HTTP layer returns.
package render

import (
	"fmt"
	"strings"

	"digestgate/internal/model"
)

// Page renders a single FormattedPage's string form. A page with Content
// renders with the full Title/URL Source/Markdown Content template; Page
// does not know the mode, so a markdown-mode page also gets the template
// and never renders as bare content. A page without Content (the
// html/text/screenshot/pageshot modes, where C4 set TextRepresentation
// directly) renders as its TextRepresentation.
func Page(p *model.FormattedPage) string {
	if p == nil {
		return ""
	}
	if p.Content == "" {
		return p.TextRepresentation
	}
	return entryBody(p)
}

// entryBody builds the "Title: ... / URL Source: ... / Markdown
// Content: ..." template, with optional Published Time, Images, and
// Links/Buttons sections.
func entryBody(p *model.FormattedPage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", p.Title)
	fmt.Fprintf(&b, "URL Source: %s\n", p.URL)
	if p.PublishedTime != "" {
		fmt.Fprintf(&b, "Published Time: %s\n", p.PublishedTime)
	}
	b.WriteString("Markdown Content:\n")
	b.WriteString(p.Content)

	if len(p.Images) > 0 {
		b.WriteString("\n\nImages:\n")
		for k, v := range p.Images {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}
	if len(p.Links) > 0 {
		b.WriteString("\n\nLinks/Buttons:\n")
		for k, v := range p.Links {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}
	return b.String()
}

// BatchEntry renders one slot of a search batch at 1-based position i:
// the full template when content is present, or the title/url/
// description stub with an optional Content subsection (populated from
// TextRepresentation) otherwise. A nil page renders the "no content
// available" placeholder.
func BatchEntry(p *model.FormattedPage, i int, url string) string {
	if p == nil {
		return fmt.Sprintf("[%d] No content available for %s", i, url)
	}
	if p.Content != "" {
		return fmt.Sprintf("[%d] %s", i, entryBody(p))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%d] Title: %s\n", i, p.Title)
	fmt.Fprintf(&b, "[%d] URL Source: %s\n", i, p.URL)
	fmt.Fprintf(&b, "[%d] Description: %s\n", i, p.Description)
	if p.TextRepresentation != "" {
		fmt.Fprintf(&b, "[%d] Content:\n%s\n", i, p.TextRepresentation)
	}
	return b.String()
}

// Batch joins per-slot entries with a blank-line separator and a single
// trailing newline.
func Batch(entries []string) string {
	joined := strings.Join(entries, "\n\n")
	return strings.TrimRight(joined, "\n") + "\n"
}

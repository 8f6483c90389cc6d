// Package format implements C4, the Snapshot Formatter: mode-dispatched
// conversion from a raw page snapshot to a unified FormattedPage, plus
// image/link summary mixins.
package format

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"digestgate/internal/markdown"
	"digestgate/internal/model"
)

// Mode selects the output format.
type Mode string

const (
	ModeMarkdown   Mode = "markdown"
	ModeHTML       Mode = "html"
	ModeText       Mode = "text"
	ModeScreenshot Mode = "screenshot"
	ModePageshot   Mode = "pageshot"
)

// RequestContext carries the per-request flags the formatter's mixins
// read, passed explicitly rather than riding an ambient/process-wide
// carrier.
type RequestContext struct {
	WithImagesSummary bool
	WithLinksSummary  bool
	WithGeneratedAlt  bool
}

// Formatter persists screenshots to disk and runs the markdown pipeline.
type Formatter struct {
	ScreenshotDir  string
	PublicHost     string
}

func New(screenshotDir, publicHost string) *Formatter {
	return &Formatter{ScreenshotDir: screenshotDir, PublicHost: publicHost}
}

const maxElemDepth = 256
const maxElemCount = 70000

// Format dispatches on mode and returns a FormattedPage. nominalURL is
// used when the snapshot itself doesn't carry one (e.g. synthesized
// error/stub snapshots).
func (f *Formatter) Format(mode Mode, snap *model.PageSnapshot, nominalURL string, rc RequestContext) (*model.FormattedPage, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}

	page := &model.FormattedPage{URL: firstNonEmpty(snap.Href, nominalURL)}
	if snap.Parsed != nil {
		page.Title = snap.Parsed.Title
		page.PublishedTime = snap.Parsed.PublishedTime
	}
	if page.Title == "" {
		page.Title = snap.Title
	}

	switch mode {
	case ModeScreenshot:
		if err := f.handleShot(page, snap.Screenshot, "screenshot", &page.ScreenshotURL); err != nil {
			return nil, err
		}
		page.TextRepresentation = page.ScreenshotURL + "\n"
		return page, nil

	case ModePageshot:
		if err := f.handleShot(page, snap.Pageshot, "pageshot", &page.PageshotURL); err != nil {
			return nil, err
		}
		page.HTML = snap.HTML
		page.TextRepresentation = page.PageshotURL + "\n"
		return page, nil

	case ModeHTML:
		page.HTML = snap.HTML
		page.TextRepresentation = snap.HTML
		return page, nil

	case ModeText:
		page.Text = snap.Text
		page.TextRepresentation = snap.Text
		return page, nil

	default: // markdown
		return f.formatMarkdown(page, snap, rc)
	}
}

func (f *Formatter) handleShot(page *model.FormattedPage, data []byte, kind string, out *string) error {
	if len(data) == 0 || *out != "" {
		return nil
	}
	name := fmt.Sprintf("%s-%s.png", kind, uuid.NewString())
	if f.ScreenshotDir != "" {
		if err := os.MkdirAll(f.ScreenshotDir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(f.ScreenshotDir, name), data, 0o644); err != nil {
			return err
		}
	}
	*out = fmt.Sprintf("http://%s/instant-screenshots/%s", f.PublicHost, name)
	return nil
}

func (f *Formatter) formatMarkdown(page *model.FormattedPage, snap *model.PageSnapshot, rc RequestContext) (*model.FormattedPage, error) {
	var content string
	var mdResult markdown.Result

	switch {
	case snap.IsPDF:
		if snap.Parsed != nil && snap.Parsed.Content != "" {
			content = snap.Parsed.Content
		} else {
			content = snap.Text
		}

	case snap.MaxElemDepth > maxElemDepth || snap.ElemCount > maxElemCount:
		content = snap.Text

	default:
		baseURL := firstNonEmpty(snap.Rebase, snap.Href)
		par1 := markdown.ToMarkdown(snap.HTML, markdown.Options{BaseURL: baseURL, ImgDataURLToObjectURL: rc.WithGeneratedAlt})

		var par2 markdown.Result
		haveParsed := snap.Parsed != nil && snap.Parsed.Content != ""
		if haveParsed {
			par2 = markdown.ToMarkdown(snap.Parsed.Content, markdown.Options{BaseURL: baseURL, ImgDataURLToObjectURL: rc.WithGeneratedAlt})
		}

		if haveParsed && float64(len(par2.Markdown)) >= 0.3*float64(len(par1.Markdown)) {
			mdResult = markdown.ToMarkdown(snap.Parsed.Content, markdown.Options{NoRules: true, BaseURL: baseURL, ImgDataURLToObjectURL: rc.WithGeneratedAlt})
		} else {
			mdResult = par1
		}
		content = mdResult.Markdown

		if looksLikeRawHTML(content) || content == "" {
			fallback := markdown.ToMarkdown(snap.HTML, markdown.Options{BaseURL: baseURL})
			content = fallback.Markdown
			mdResult = fallback
			if looksLikeRawHTML(content) || content == "" {
				content = snap.Text
				mdResult = markdown.Result{}
			}
		}
	}

	page.Content = content
	page.TextRepresentation = content

	if rc.WithImagesSummary && len(mdResult.Images) > 0 {
		page.Images = buildImagesMixin(mdResult.Images)
	}
	if rc.WithLinksSummary && len(mdResult.Links) > 0 {
		page.Links = buildLinksMixin(mdResult.Links)
	}

	return page, nil
}

func looksLikeRawHTML(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "<") && strings.HasSuffix(t, ">")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// buildImagesMixin groups markdown image occurrences by src into
// "Image i,j: alt" -> src entries.
func buildImagesMixin(occurrences []markdown.ImageOccurrence) map[string]string {
	indicesBySrc := map[string][]int{}
	altBySrc := map[string]string{}
	var order []string
	for _, o := range occurrences {
		if _, seen := indicesBySrc[o.Src]; !seen {
			order = append(order, o.Src)
		}
		indicesBySrc[o.Src] = append(indicesBySrc[o.Src], o.Index)
		altBySrc[o.Src] = o.Alt
	}

	out := make(map[string]string, len(order))
	for _, src := range order {
		idxs := indicesBySrc[src]
		parts := make([]string, len(idxs))
		for i, n := range idxs {
			parts[i] = fmt.Sprintf("%d", n)
		}
		key := fmt.Sprintf("Image %s: %s", strings.Join(parts, ","), altBySrc[src])
		out[key] = src
	}
	return out
}

// buildLinksMixin maps anchor text to href; later duplicates overwrite
// earlier.
func buildLinksMixin(occurrences []markdown.LinkOccurrence) map[string]string {
	out := make(map[string]string, len(occurrences))
	for _, o := range occurrences {
		out[o.Text] = o.Href
	}
	return out
}

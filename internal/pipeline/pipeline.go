// Package pipeline implements C6, the Search Pipeline: pagination via
// C2, fan-out scraping via C5, an early-return timer racing a
// qualification gate, and slot reorganization into the final batch.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"digestgate/internal/apierr"
	"digestgate/internal/cache"
	"digestgate/internal/format"
	"digestgate/internal/model"
	"digestgate/internal/render"
	"digestgate/internal/scraper"
	"digestgate/internal/search"
	"digestgate/internal/aggregator"
)

const defaultEarlyReturnMs = 15000

// Request is C6's input.
type Request struct {
	SearchText       string
	Count            int
	Categories       []string
	Engines          []string
	Language         string
	NoCache          bool
	Mode             format.Mode
	TimeoutMs        int
	CacheToleranceMs int
	RequestContext   format.RequestContext
	UserAgent        string
}

// Pipeline wires C2 (via cache.Cache), C5, and C4 together.
type Pipeline struct {
	Cache     *cache.Cache
	Browser   scraper.Browser
	Formatter *format.Formatter
	Log       *slog.Logger
}

func New(c *cache.Cache, browser scraper.Browser, formatter *format.Formatter, log *slog.Logger) *Pipeline {
	return &Pipeline{Cache: c, Browser: browser, Formatter: formatter, Log: log}
}

// Run executes the full C6 algorithm and returns the rendered batch
// string form.
func (p *Pipeline) Run(ctx context.Context, req Request) (string, error) {
	q := model.SearchQuery{
		Text:       req.SearchText,
		Count:      req.Count,
		Categories: req.Categories,
		Engines:    req.Engines,
		Language:   req.Language,
	}

	resp, err := p.Cache.Search(ctx, q, req.NoCache, search.Options{UserAgent: req.UserAgent})
	if err != nil {
		return "", err
	}

	results := resp.Results
	if req.Count > 0 && len(results) > req.Count {
		results = results[:req.Count]
	}

	if req.Count == 0 {
		return p.renderStubBatch(results), nil
	}

	if len(results) == 0 {
		return "", apierr.New(apierr.AssertionFailure, "no search results")
	}

	urls := make([]string, len(results))
	for i, r := range results {
		urls[i] = r.URL
	}

	timeoutMs := req.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultEarlyReturnMs
	}

	aggCh := aggregator.ScrapeMany(ctx, p.Browser, urls, scraper.ScrapeOptions{UserAgent: req.UserAgent}, p.Log)

	formatted := make(map[*model.PageSnapshot]*model.FormattedPage)
	var lastBatch []*model.FormattedPage
	var lastURLs []string

	var timerCh <-chan time.Time
	armed := false

	for aggCh != nil {
		select {
		case slots, ok := <-aggCh:
			if !ok {
				aggCh = nil
				continue
			}
			pages := p.formatSlots(slots, results, req, formatted)
			batch, batchURLs := reorganize(pages, urls, req.Count)
			lastBatch, lastURLs = batch, batchURLs

			if !armed && anyQualified(pages) {
				armed = true
				timerCh = time.After(time.Duration(timeoutMs) * time.Millisecond)
			}

			if allQualified(batch) && len(batch) >= req.Count {
				return p.renderBatch(batch, lastURLs), nil
			}

		case <-timerCh:
			if lastBatch != nil {
				return p.renderBatch(lastBatch, lastURLs), nil
			}

		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if lastBatch != nil {
		return p.renderBatch(lastBatch, lastURLs), nil
	}
	return "", apierr.New(apierr.AssertionFailure, "no content produced")
}

// formatSlots runs C4 over every non-nil slot in parallel
// ("Promise.all-equivalent fan-in"), falling back to a stub page on
// formatter failure, and caches formatted results by snapshot identity
// so repeated emissions of the same snapshot don't re-format.
func (p *Pipeline) formatSlots(slots []*model.PageSnapshot, results []model.UpstreamResult, req Request, cache map[*model.PageSnapshot]*model.FormattedPage) []*model.FormattedPage {
	pages := make([]*model.FormattedPage, len(slots))

	var g errgroup.Group
	for i := range slots {
		i := i
		snap := slots[i]
		if snap == nil {
			pages[i] = stubPage(results[i])
			continue
		}
		if cached, ok := cache[snap]; ok {
			pages[i] = cached
			continue
		}
		g.Go(func() error {
			fp, err := p.Formatter.Format(req.Mode, snap, results[i].URL, req.RequestContext)
			if err != nil {
				if p.Log != nil {
					p.Log.Warn("formatter failed for slot", slog.Int("slot", i), slog.String("error", err.Error()))
				}
				fp = stubPage(results[i])
				fp.Content = snap.Text
			}
			cache[snap] = fp
			pages[i] = fp
			return nil
		})
	}
	_ = g.Wait()
	return pages
}

func stubPage(r model.UpstreamResult) *model.FormattedPage {
	return &model.FormattedPage{Title: r.Title, Description: r.Content, URL: r.URL}
}

func anyQualified(pages []*model.FormattedPage) bool {
	for _, p := range pages {
		if p.Qualified() {
			return true
		}
	}
	return false
}

func allQualified(pages []*model.FormattedPage) bool {
	if len(pages) == 0 {
		return false
	}
	for _, p := range pages {
		if !p.Qualified() {
			return false
		}
	}
	return true
}

// reorganize partitions slots into qualified/unqualified (stable,
// original order), starts with the qualified set, fills remaining slots
// from unqualified slots in original order until count is reached, then
// restores original slot order and truncates to count. Unqualified slots
// are only used when fewer than count slots qualify; when more than count
// slots qualify, the qualified slots after the count-th one are dropped.
func reorganize(pages []*model.FormattedPage, urls []string, count int) ([]*model.FormattedPage, []string) {
	var qualifiedIdx, unqualifiedIdx []int
	for i, p := range pages {
		if p.Qualified() {
			qualifiedIdx = append(qualifiedIdx, i)
		} else {
			unqualifiedIdx = append(unqualifiedIdx, i)
		}
	}

	selected := append([]int(nil), qualifiedIdx...)
	for _, idx := range unqualifiedIdx {
		if len(selected) >= count {
			break
		}
		selected = append(selected, idx)
	}

	sort.Ints(selected)
	if len(selected) > count {
		selected = selected[:count]
	}

	out := make([]*model.FormattedPage, len(selected))
	outURLs := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = pages[idx]
		outURLs[i] = urls[idx]
	}
	return out, outURLs
}

func (p *Pipeline) renderBatch(pages []*model.FormattedPage, urls []string) string {
	entries := make([]string, len(pages))
	for i, pg := range pages {
		entries[i] = render.BatchEntry(pg, i+1, urls[i])
	}
	return render.Batch(entries)
}

// renderStubBatch is the count==0 short-circuit path: no scraping is
// initiated, every result renders as a title/url/description stub.
func (p *Pipeline) renderStubBatch(results []model.UpstreamResult) string {
	entries := make([]string, len(results))
	for i, r := range results {
		entries[i] = render.BatchEntry(stubPage(r), i+1, r.URL)
	}
	return render.Batch(entries)
}

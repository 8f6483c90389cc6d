// Package scraper implements the headless-browser adapter driven by the
// aggregator and crawl pipeline: a concrete go-rod-backed implementation
// of the Browser interface.
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"digestgate/internal/model"
)

// Browser yields a stream of progressively-better PageSnapshots for one
// URL. The channel is closed when the browser is done with that URL
// (success or error); a nil snapshot is never sent. Stream errors are
// reported only via logging at the call site and never abort peers.
type Browser interface {
	Scrape(ctx context.Context, rawURL string, opts ScrapeOptions) (<-chan *model.PageSnapshot, error)
}

// ScrapeOptions carries the per-request knobs that affect how a page is
// rendered: selector waits, proxy, timeout, user agent.
type ScrapeOptions struct {
	WaitForSelector string
	TargetSelector  string
	RemoveSelector  string
	ProxyURL        string
	Timeout         time.Duration
	UserAgent       string
}

// RodBrowser drives a headless Chrome instance via go-rod.
type RodBrowser struct {
	BinPath    string
	ControlURL string
}

func NewRodBrowser(binPath, controlURL string) *RodBrowser {
	return &RodBrowser{BinPath: binPath, ControlURL: controlURL}
}

// Scrape launches (or attaches to) a browser, navigates to rawURL, and
// emits two progressively-better snapshots: one right after DOM load,
// one after the page has settled (a selector wait or a short settle
// delay).
func (b *RodBrowser) Scrape(ctx context.Context, rawURL string, opts ScrapeOptions) (<-chan *model.PageSnapshot, error) {
	out := make(chan *model.PageSnapshot, 2)

	browser, err := b.launch(ctx, opts)
	if err != nil {
		close(out)
		return out, err
	}

	go func() {
		defer close(out)
		defer browser.Close()

		page, err := browser.Page(proto.TargetCreateTarget{URL: rawURL})
		if err != nil {
			return
		}
		defer page.Close()

		if err := page.Context(ctx).WaitLoad(); err != nil {
			return
		}
		if snap := b.snapshot(page, rawURL, opts); snap != nil {
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}

		if opts.WaitForSelector != "" {
			if el, err := page.Context(ctx).Element(opts.WaitForSelector); err == nil {
				_ = el.WaitVisible()
			}
		} else {
			time.Sleep(300 * time.Millisecond)
		}

		if snap := b.snapshot(page, rawURL, opts); snap != nil {
			select {
			case out <- snap:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

func (b *RodBrowser) launch(ctx context.Context, opts ScrapeOptions) (*rod.Browser, error) {
	controlURL := b.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(true).NoSandbox(true)
		if b.BinPath != "" {
			l = l.Bin(b.BinPath)
		}
		if opts.ProxyURL != "" {
			l = l.Proxy(opts.ProxyURL)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx).Timeout(timeout)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return browser, nil
}

func (b *RodBrowser) snapshot(page *rod.Page, rawURL string, opts ScrapeOptions) *model.PageSnapshot {
	htmlStr, err := page.HTML()
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}

	title := doc.Find("title").First().Text()
	var imgs []string
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			imgs = append(imgs, resolveAgainst(rawURL, src))
		}
	})

	snap := &model.PageSnapshot{
		Href:      rawURL,
		Title:     strings.TrimSpace(title),
		HTML:      htmlStr,
		Text:      doc.Find("body").Text(),
		Imgs:      imgs,
		Rebase:    rawURL,
		ElemCount: doc.Find("*").Length(),
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && desc != "" {
		snap.Parsed = &model.ParsedContent{Title: strings.TrimSpace(title), Content: desc}
	}

	return snap
}

func resolveAgainst(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := b.Parse(ref)
	if err != nil {
		return ref
	}
	return r.String()
}

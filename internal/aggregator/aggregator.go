// Package aggregator implements C5, the Scrape Aggregator: a fan-in
// generator that merges N concurrent page-scrape streams into a single
// sequence of "current best snapshot per slot" arrays.
//
// Rather than yielding a mutable shared slot array, this is modeled as
// a channel of immutable snapshots of the slot slice: each emission is a
// fresh copy, safe for the consumer to read without synchronization.
package aggregator

import (
	"context"
	"log/slog"
	"sync"

	"digestgate/internal/model"
	"digestgate/internal/scraper"
)

// ScrapeMany launches one concurrent scrape stream per URL and returns a
// channel of slot-array snapshots. The first value sent is the
// nil-filled slots immediately after start. The channel closes after one
// final emission once every stream has terminated, or when ctx is
// cancelled.
func ScrapeMany(ctx context.Context, browser scraper.Browser, urls []string, opts scraper.ScrapeOptions, log *slog.Logger) <-chan []*model.PageSnapshot {
	out := make(chan []*model.PageSnapshot, 1)
	slots := make([]*model.PageSnapshot, len(urls))

	// emitCopy returns a fresh copy of slots. The initial nil-filled copy
	// is sent synchronously so the first value is available before any
	// scrape has a chance to run.
	emitCopy := func() []*model.PageSnapshot {
		cp := make([]*model.PageSnapshot, len(slots))
		copy(cp, slots)
		return cp
	}
	out <- emitCopy()

	type update struct {
		idx  int
		snap *model.PageSnapshot
	}
	updates := make(chan update, len(urls)*2+1)

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(idx int, rawURL string) {
			defer wg.Done()
			stream, err := browser.Scrape(ctx, rawURL, opts)
			if err != nil {
				if log != nil {
					log.Warn("scrape stream failed to start", slog.String("url", rawURL), slog.String("error", err.Error()))
				}
				return
			}
			for snap := range stream {
				select {
				case updates <- update{idx: idx, snap: snap}:
				case <-ctx.Done():
					return
				}
			}
		}(i, u)
	}

	go func() {
		wg.Wait()
		close(updates)
	}()

	go func() {
		defer close(out)
		var mu sync.Mutex
		for {
			select {
			case u, ok := <-updates:
				if !ok {
					mu.Lock()
					final := emitCopy()
					mu.Unlock()
					select {
					case out <- final:
					case <-ctx.Done():
					}
					return
				}
				mu.Lock()
				slots[u.idx] = u.snap
				snapshot := emitCopy()
				mu.Unlock()
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

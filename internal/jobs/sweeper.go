// Package jobs runs the background maintenance loops: the screenshot/
// pageshot TTL sweeper and the cache-table TTL cleanup, both grounded on
// the same ticker-poll-loop idiom this codebase uses for worker
// dispatch, repurposed here from DB-row job dispatch to filesystem and
// cache maintenance.
package jobs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"digestgate/internal/metrics"
	"digestgate/internal/store"
)

// Sweeper periodically unlinks screenshot files older than TTL and
// deletes expired cache rows.
type Sweeper struct {
	ScreenshotDir string
	TTL           time.Duration
	Store         *store.Store
	Interval      time.Duration
	Log           *slog.Logger
}

func NewSweeper(screenshotDir string, ttl time.Duration, st *store.Store, log *slog.Logger) *Sweeper {
	return &Sweeper{ScreenshotDir: screenshotDir, TTL: ttl, Store: st, Interval: time.Hour, Log: log}
}

// Start runs the sweep loop until ctx is cancelled. Callers run this in
// its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	if s.ScreenshotDir != "" {
		n := s.sweepScreenshots()
		metrics.RecordSweeperDeletes(n)
	}
	if s.Store != nil {
		if n, err := s.Store.DeleteExpired(ctx, time.Now().UTC()); err != nil {
			if s.Log != nil {
				s.Log.Warn("cache ttl cleanup failed", slog.String("error", err.Error()))
			}
		} else if n > 0 && s.Log != nil {
			s.Log.Info("expired cache entries deleted", slog.Int64("count", n))
		}
	}
}

func (s *Sweeper) sweepScreenshots() int64 {
	entries, err := os.ReadDir(s.ScreenshotDir)
	if err != nil {
		return 0
	}

	var deleted int64
	cutoff := time.Now().Add(-s.TTL)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.ScreenshotDir, e.Name())); err == nil {
				deleted++
			}
		}
	}
	return deleted
}

// Package cache implements C2, the Search Cache: digest keying over a
// canonical query serialization, a fresh/stale/expired lifecycle, and
// stale-fallback-on-upstream-failure semantics, backed by the Postgres
// store and the C1 search client.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"digestgate/internal/apierr"
	"digestgate/internal/metrics"
	"digestgate/internal/model"
	"digestgate/internal/search"
	"digestgate/internal/store"
)

// Cache wraps the Search Client and the durable store to implement the
// cachedSearch contract.
type Cache struct {
	client      *search.Client
	store       *store.Store
	log         *slog.Logger
	validMs     int64
	retentionMs int64
}

// New builds a Cache. validMs/retentionMs of 0 fall back to the package
// defaults (model.ValidMs / model.RetentionMs).
func New(client *search.Client, st *store.Store, log *slog.Logger, validMs, retentionMs int64) *Cache {
	if validMs <= 0 {
		validMs = model.ValidMs
	}
	if retentionMs <= 0 {
		retentionMs = model.RetentionMs
	}
	return &Cache{client: client, store: st, log: log, validMs: validMs, retentionMs: retentionMs}
}

// Digest computes the MD5-base64 digest of a canonical (key-sorted)
// serialization of q. Two queries with identical fields always produce
// the same digest; changing any field changes it.
func Digest(q model.SearchQuery) string {
	canon := canonicalize(q)
	b, _ := json.Marshal(canon)
	sum := md5.Sum(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// canonicalize builds a key-sorted map so JSON field order never affects
// the digest, matching "canonical = key-sorted serialization".
func canonicalize(q model.SearchQuery) map[string]any {
	cats := append([]string(nil), q.Categories...)
	sort.Strings(cats)
	engs := append([]string(nil), q.Engines...)
	sort.Strings(engs)

	return map[string]any{
		"categories": cats,
		"count":      q.Count,
		"engines":    engs,
		"language":   q.Language,
		"pageNumber": q.PageNumber,
		"text":       q.Text,
	}
}

func (c *Cache) classify(createdAt time.Time) model.Freshness {
	now := time.Now().UTC()
	age := now.Sub(createdAt).Milliseconds()
	switch {
	case age < c.validMs:
		return model.Fresh
	case age < c.retentionMs:
		return model.Stale
	default:
		return model.Expired
	}
}

// Search runs the full C2 algorithm: lookup, freshness check, paginated
// upstream fetch, fire-and-forget persistence, and stale fallback.
func (c *Cache) Search(ctx context.Context, q model.SearchQuery, noCache bool, opts search.Options) (*model.UpstreamSearchResponse, error) {
	var fallback *model.UpstreamSearchResponse
	digest := Digest(q)

	if !noCache && c.store != nil {
		entry, err := c.store.MostRecent(ctx, digest)
		if err != nil {
			c.log.Warn("cache lookup failed", slog.String("error", err.Error()))
		}
		if entry != nil {
			switch c.classify(entry.CreatedAt) {
			case model.Fresh:
				metrics.RecordCacheOutcome("fresh")
				resp := entry.Response
				return &resp, nil
			case model.Stale:
				metrics.RecordCacheOutcome("stale")
				resp := entry.Response
				fallback = &resp
			case model.Expired:
				// fall through to upstream; entry is not usable
			}
		} else {
			metrics.RecordCacheOutcome("miss")
		}
	}

	resp, err := c.fetchPaginated(ctx, q, opts)
	if err != nil {
		if fallback != nil {
			c.log.Info("upstream search failed, serving stale cache fallback", slog.String("error", err.Error()))
			return fallback, nil
		}
		return nil, err
	}

	if c.store != nil {
		go c.persist(context.Background(), digest, q, *resp)
	}

	return resp, nil
}

// fetchPaginated issues page 1 and, if it came up short of q.Count,
// sleeps then issues page 2 and concatenates the results.
func (c *Cache) fetchPaginated(ctx context.Context, q model.SearchQuery, opts search.Options) (*model.UpstreamSearchResponse, error) {
	page1Opts := opts
	page1Opts.PageNumber = 1
	resp, err := c.client.Search(ctx, q, page1Opts)
	if err != nil {
		return nil, err
	}

	if q.Count > 0 && len(resp.Results) < q.Count {
		sleepDur := time.Duration(1000+rand.Int63n(1000)) * time.Millisecond
		select {
		case <-time.After(sleepDur):
		case <-ctx.Done():
			return nil, apierr.Wrap(apierr.DownstreamFailure, "context cancelled during pagination wait", ctx.Err())
		}

		page2Opts := opts
		page2Opts.PageNumber = 2
		page2, err := c.client.Search(ctx, q, page2Opts)
		if err == nil {
			resp.Results = append(resp.Results, page2.Results...)
			resp.TotalResults += page2.TotalResults
			resp.UnresponsiveEngines = append(resp.UnresponsiveEngines, page2.UnresponsiveEngines...)
		}
	}

	if q.Count > 0 && len(resp.Results) > q.Count {
		resp.Results = resp.Results[:q.Count]
	}

	return resp, nil
}

func (c *Cache) persist(ctx context.Context, digest string, q model.SearchQuery, resp model.UpstreamSearchResponse) {
	now := time.Now().UTC()
	entry := model.CacheEntry{
		QueryDigest: digest,
		Query:       q,
		Response:    resp,
		CreatedAt:   now,
		ExpireAt:    now.Add(time.Duration(c.retentionMs) * time.Millisecond),
	}
	if err := c.store.Insert(ctx, entry); err != nil {
		c.log.Warn("cache persist failed", slog.String("error", err.Error()), slog.String("digest", digest))
	}
}

// Package search implements C1, the Search Client: a one-shot call to the
// upstream SearXNG-compatible meta-search engine, with 429 backoff retry.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"digestgate/internal/apierr"
	"digestgate/internal/metrics"
	"digestgate/internal/model"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const maxAttempts = 5

// Client calls the upstream meta-search engine.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Search Client against baseURL (e.g. the
// SEARXNG_INSTANCE_URL). timeout bounds each individual HTTP call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Options carries the per-call knobs the pipeline may set in addition to
// the query itself: a page number and a caller-supplied User-Agent.
type Options struct {
	PageNumber      int
	UserAgent       string
	EnabledEngines  []string
	DisabledEngines []string
	TimeRange       string
}

// Search issues one GET to {baseUrl}/search and parses the JSON response.
// Makes up to maxAttempts attempts, retrying only on HTTP 429; any other failure (network
// error, non-2xx, non-object body, parse error) fails immediately.
func (c *Client) Search(ctx context.Context, q model.SearchQuery, opts Options) (*model.UpstreamSearchResponse, error) {
	u, err := c.buildURL(q, opts)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "build search url", err)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	var resp *model.UpstreamSearchResponse
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewConstant(500*time.Millisecond))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		r, retryable, rerr := c.doOnce(ctx, u, ua)
		if rerr == nil {
			resp = r
			return nil
		}
		if retryable {
			metrics.RecordSearchRetry429()
			jitter := time.Duration(rand.Int63n(int64(time.Second)))
			time.Sleep(jitter)
			return retry.RetryableError(rerr)
		}
		return rerr
	})

	if err != nil {
		return nil, apierr.Wrap(apierr.DownstreamFailure, fmt.Sprintf("upstream search failed after %d attempt(s)", attempt), err)
	}
	return resp, nil
}

// doOnce performs a single GET. The second return reports whether the
// failure is a 429 (caller should retry); any other failure is terminal.
func (c *Client) doOnce(ctx context.Context, u string, userAgent string) (*model.UpstreamSearchResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("upstream returned 429")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}

	var out model.UpstreamSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, false, fmt.Errorf("parse upstream response: %w", err)
	}
	return &out, false, nil
}

func (c *Client) buildURL(q model.SearchQuery, opts Options) (string, error) {
	base, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return "", err
	}

	v := url.Values{}
	v.Set("q", q.Text)
	v.Set("format", "json")
	if q.Language != "" {
		v.Set("language", q.Language)
	}
	pageno := opts.PageNumber
	if pageno == 0 {
		pageno = q.PageNumber
	}
	if pageno > 0 {
		v.Set("pageno", strconv.Itoa(pageno))
	}
	if opts.TimeRange != "" {
		v.Set("time_range", opts.TimeRange)
	}
	if len(q.Categories) > 0 {
		v.Set("categories", strings.Join(q.Categories, ","))
	}
	if len(q.Engines) > 0 {
		v.Set("engines", strings.Join(q.Engines, ","))
	}
	if len(opts.EnabledEngines) > 0 {
		v.Set("enabled_engines", strings.Join(opts.EnabledEngines, ","))
	}
	if len(opts.DisabledEngines) > 0 {
		v.Set("disabled_engines", strings.Join(opts.DisabledEngines, ","))
	}

	base.RawQuery = v.Encode()
	return base.String(), nil
}

// Package model holds the data types shared across the search and crawl
// pipelines: the upstream search contract, the browser snapshot contract,
// the formatted page record, and the cache entry persisted by the store.
package model

import "time"

// SearchQuery is the immutable input to a search. Count is clamped to
// 0..20 by callers before it reaches the pipeline; zero is a valid,
// explicit short-circuit value (see Pipeline.Run).
type SearchQuery struct {
	Text       string   `json:"text"`
	Count      int      `json:"count"`
	Categories []string `json:"categories,omitempty"`
	Engines    []string `json:"engines,omitempty"`
	Language   string   `json:"language,omitempty"`
	PageNumber int      `json:"pageNumber"`
}

// UpstreamResult is one hit returned by the meta-search engine. URL is
// expected to be absolute http(s); the search pipeline passes it to the
// Browser as-is, without validating it.
type UpstreamResult struct {
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Engine   string  `json:"engine,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Category string  `json:"category,omitempty"`
}

// UpstreamSearchResponse is the parsed body of a meta-search call. Results
// is ordered; that order is authoritative for slot index downstream.
type UpstreamSearchResponse struct {
	Query                string           `json:"query"`
	TotalResults         int              `json:"number_of_results"`
	Results              []UpstreamResult `json:"results"`
	Answers              []string         `json:"answers,omitempty"`
	Corrections          []string         `json:"corrections,omitempty"`
	Infoboxes            []any            `json:"infoboxes,omitempty"`
	Suggestions          []string         `json:"suggestions,omitempty"`
	UnresponsiveEngines  []string         `json:"unresponsive_engines,omitempty"`
}

// PageSnapshot is the opaque, producer-defined record a Browser yields for
// one URL. Only the fields the core reads are named here; scraper.Browser
// is free to attach more.
type PageSnapshot struct {
	Href         string
	Title        string
	HTML         string
	Text         string
	Parsed       *ParsedContent
	Imgs         []string
	Screenshot   []byte
	Pageshot     []byte
	Rebase       string
	MaxElemDepth int
	ElemCount    int
	IsPDF        bool
}

// ParsedContent is the readability-style extraction a Browser may attach
// to a PageSnapshot in addition to the raw HTML/text.
type ParsedContent struct {
	Title         string
	Content       string
	PublishedTime string
}

// FormattedPage is the unified record the Snapshot Formatter (C4) produces
// from a PageSnapshot, and what the Search/Crawl pipelines hand back to the
// HTTP layer. TextRepresentation is the canonical string form.
type FormattedPage struct {
	Title              string
	Description        string
	URL                string
	Content            string
	PublishedTime      string
	HTML               string
	Text               string
	ScreenshotURL      string
	PageshotURL        string
	Links              map[string]string
	Images             map[string]string
	TextRepresentation string
}

// Qualified reports whether the page meets the qualification invariant:
// (title AND content) OR screenshotUrl OR pageshotUrl OR text OR html.
func (p *FormattedPage) Qualified() bool {
	if p == nil {
		return false
	}
	if p.Title != "" && p.Content != "" {
		return true
	}
	return p.ScreenshotURL != "" || p.PageshotURL != "" || p.Text != "" || p.HTML != ""
}

// CacheEntry is a persisted upstream response, keyed by a digest of its
// originating query.
type CacheEntry struct {
	QueryDigest string
	Query       SearchQuery
	Response    UpstreamSearchResponse
	CreatedAt   time.Time
	ExpireAt    time.Time
}

const (
	// ValidMs is the window within which a CacheEntry is fresh.
	ValidMs = int64(time.Hour / time.Millisecond)
	// RetentionMs is the window within which a CacheEntry is stale
	// (servable as a fallback) rather than expired.
	RetentionMs = int64(7 * 24 * time.Hour / time.Millisecond)
)

// Freshness classifies a CacheEntry's age relative to now.
type Freshness int

const (
	Fresh Freshness = iota
	Stale
	Expired
)

// ClassifyAge returns the Freshness of an entry created at createdAt, as
// observed at now.
func ClassifyAge(createdAt, now time.Time) Freshness {
	age := now.Sub(createdAt).Milliseconds()
	switch {
	case age < ValidMs:
		return Fresh
	case age < RetentionMs:
		return Stale
	default:
		return Expired
	}
}

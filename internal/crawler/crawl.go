// Package crawler implements C7, the Crawl Pipeline: a single-URL scrape
// loop with waitForSelector and format-on-first-good semantics, plus the
// politeness (robots.txt) pre-flight check built on fetchRobots in
// robots.go.
package crawler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"digestgate/internal/apierr"
	"digestgate/internal/format"
	"digestgate/internal/hostset"
	"digestgate/internal/model"
	"digestgate/internal/scraper"
)

// Request is C7's input: the target URL plus the per-request render and
// scrape flags from the HTTP layer.
type Request struct {
	URL             string
	Mode            format.Mode
	WaitForSelector string
	TargetSelector  string
	RemoveSelector  string
	ProxyURL        string
	TimeoutMs       int
	UserAgent       string
	RequestContext  format.RequestContext
	RespectRobots   bool
}

// Pipeline wires the Browser, Formatter, and the circuit-breaker host
// set together to implement the crawl contract.
type Pipeline struct {
	Browser   scraper.Browser
	Formatter *format.Formatter
	HostSet   *hostset.Set
	Log       *slog.Logger
}

func New(browser scraper.Browser, formatter *format.Formatter, hs *hostset.Set, log *slog.Logger) *Pipeline {
	return &Pipeline{Browser: browser, Formatter: formatter, HostSet: hs, Log: log}
}

// Crawl parses and validates the target URL, guards against self-crawl
// via the shared host set, iterates Browser snapshots until one looks
// sufficiently rendered, and formats it via C4.
func (p *Pipeline) Crawl(ctx context.Context, req Request) (*model.FormattedPage, error) {
	target, err := normalizeAndValidate(req.URL)
	if err != nil {
		return nil, err
	}

	if p.HostSet != nil {
		_ = p.HostSet.Add(ctx, ownHostname())
		if u, perr := url.Parse(target); perr == nil {
			if self, herr := p.HostSet.Contains(ctx, u.Hostname()); herr == nil && self {
				return nil, apierr.New(apierr.ParamValidation, "refusing to crawl own host")
			}
		}
	}

	if req.RespectRobots {
		if blocked, err := p.robotsDisallows(ctx, target, req.UserAgent); err == nil && blocked {
			return nil, apierr.New(apierr.ParamValidation, "blocked by robots.txt")
		}
	}

	stream, err := p.Browser.Scrape(ctx, target, scraper.ScrapeOptions{
		WaitForSelector: req.WaitForSelector,
		TargetSelector:  req.TargetSelector,
		RemoveSelector:  req.RemoveSelector,
		ProxyURL:        req.ProxyURL,
		UserAgent:       req.UserAgent,
	})
	if err != nil {
		if isDNSOrTLDFailure(err) {
			return p.formatErrorSnapshot(target, req, err)
		}
		return nil, apierr.Wrap(apierr.DownstreamFailure, "crawl failed", err)
	}

	var last *model.PageSnapshot
	for snap := range stream {
		last = snap
		if req.WaitForSelector != "" {
			continue
		}
		if snap.IsPDF {
			return p.Formatter.Format(req.Mode, snap, target, req.RequestContext)
		}
		hasParsed := snap.Parsed != nil && snap.Parsed.Content != ""
		hasTitle := strings.TrimSpace(snap.Title) != ""
		if !hasParsed && !hasTitle {
			continue
		}
		return p.Formatter.Format(req.Mode, snap, target, req.RequestContext)
	}

	if last != nil {
		return p.Formatter.Format(req.Mode, last, target, req.RequestContext)
	}

	return nil, apierr.New(apierr.AssertionFailure, "no content")
}

// robotsDisallows fetches robots.txt for target's origin and tests its
// path, using the fetchRobots helper in robots.go.
func (p *Pipeline) robotsDisallows(ctx context.Context, target, userAgent string) (bool, error) {
	u, err := url.Parse(target)
	if err != nil {
		return false, err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	data, err := fetchRobots(ctx, client, u, userAgent)
	if err != nil {
		return false, nil
	}
	grp := data.FindGroup(userAgent)
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return !grp.Test(path), nil
}

func (p *Pipeline) formatErrorSnapshot(target string, req Request, cause error) (*model.FormattedPage, error) {
	snap := &model.PageSnapshot{
		Href: target,
		Text: "Error: " + cause.Error(),
	}
	return p.Formatter.Format(req.Mode, snap, target, req.RequestContext)
}

func isDNSOrTLDFailure(err error) bool {
	var dnsErr *net.DNSError
	if ok := asDNSError(err, &dnsErr); ok {
		return true
	}
	return strings.Contains(err.Error(), "Invalid TLD")
}

func asDNSError(err error, target **net.DNSError) bool {
	for e := err; e != nil; {
		if de, ok := e.(*net.DNSError); ok {
			*target = de
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

// normalizeAndValidate parses the target URL, rejects non-http(s)/file
// schemes, and rejects hostnames whose last label is shorter than 2
// characters (the "Invalid TLD" case). It deliberately leaves www,
// trailing slash, and query order untouched.
func normalizeAndValidate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apierr.New(apierr.ParamValidation, "Invalid URL or TLD")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", apierr.New(apierr.ParamValidation, "Invalid URL or TLD")
	}

	switch u.Scheme {
	case "http", "https", "file":
	default:
		return "", apierr.New(apierr.ParamValidation, "Invalid URL or TLD")
	}

	host := u.Hostname()
	labels := strings.Split(host, ".")
	last := labels[len(labels)-1]
	if len(last) < 2 {
		return "", apierr.New(apierr.ParamValidation, "Invalid URL or TLD")
	}

	return u.String(), nil
}

func ownHostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"digestgate/internal/apierr"
	"digestgate/internal/crawler"
	"digestgate/internal/format"
	"digestgate/internal/metrics"
	"digestgate/internal/pipeline"
	"digestgate/internal/render"
)

// handleSearch implements GET /s/{query...}, dispatching to C6.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	rawPath := strings.TrimPrefix(c.Path(), "/s/")
	searchText, err := url.QueryUnescape(rawPath)
	if err != nil {
		searchText = rawPath
	}

	count := clamp(atoiDefault(c.Query("count"), s.cfg.Pipeline.DefaultCount), 0, 20)
	categories := splitComma(c.Query("categories"))
	engines := splitComma(c.Query("engines"))

	mode := format.Mode(strings.ToLower(c.Get("X-Respond-With", "markdown")))
	timeoutMs := s.cfg.Pipeline.EarlyReturnTimeoutMs
	if t := c.Get("X-Timeout"); t != "" {
		if secs, err := strconv.Atoi(t); err == nil {
			timeoutMs = secs * 1000
		}
	}
	noCache := strings.EqualFold(c.Get("X-No-Cache"), "true")
	language := c.Get("X-Locale")

	if v := c.Get("x-categories"); v != "" {
		categories = splitOperatorList(v)
	}
	if v := c.Get("x-engines"); v != "" {
		engines = splitOperatorList(v)
	}
	if v := c.Get("x-language"); v != "" {
		language = v
	}

	req := pipeline.Request{
		SearchText: searchText,
		Count:      count,
		Categories: categories,
		Engines:    engines,
		Language:   language,
		NoCache:    noCache,
		Mode:       mode,
		TimeoutMs:  timeoutMs,
		UserAgent:  c.Get("User-Agent"),
		RequestContext: format.RequestContext{
			WithImagesSummary: strings.EqualFold(c.Get("X-With-Images-Summary"), "true"),
			WithLinksSummary:  strings.EqualFold(c.Get("X-With-Links-Summary"), "true"),
			WithGeneratedAlt:  strings.EqualFold(c.Get("X-With-Generated-Alt"), "true"),
		},
	}

	ctx, cancel := context.WithTimeout(c.Context(), 120*time.Second)
	defer cancel()

	body, err := s.pipeline.Run(ctx, req)
	if err != nil {
		return s.renderError(c, err)
	}

	c.Type("text/plain")
	return c.SendString(body)
}

// handleCrawl implements GET /r/{url...} and POST /r, dispatching to C7.
func (s *Server) handleCrawl(c *fiber.Ctx) error {
	metrics.RecordCrawlRequest()

	targetURL := ""
	mode := format.Mode(strings.ToLower(c.Get("X-Respond-With", "markdown")))
	waitForSelector := c.Get("X-Wait-For-Selector")
	targetSelector := c.Get("X-Target-Selector")
	removeSelector := c.Get("X-Remove-Selector")
	proxyURL := c.Get("X-Proxy-Url")
	timeoutMs := 0

	if c.Method() == fiber.MethodPost {
		var body struct {
			URL         string `json:"url"`
			HTML        string `json:"html"`
			RespondWith string `json:"respondWith"`
			Timeout     int    `json:"timeout"`
		}
		if err := c.BodyParser(&body); err == nil {
			targetURL = body.URL
			if body.RespondWith != "" {
				mode = format.Mode(strings.ToLower(body.RespondWith))
			}
			timeoutMs = body.Timeout * 1000
		}
	} else {
		targetURL = strings.TrimPrefix(c.Path(), "/r/")
		if decoded, err := url.QueryUnescape(targetURL); err == nil {
			targetURL = decoded
		}
		if t := c.Get("X-Timeout"); t != "" {
			if secs, err := strconv.Atoi(t); err == nil {
				if secs > 180 {
					secs = 180
				}
				timeoutMs = secs * 1000
			}
		}
	}

	if u := c.Query("url"); targetURL == "" && u != "" {
		targetURL = u
	}

	req := crawler.Request{
		URL:             targetURL,
		Mode:            mode,
		WaitForSelector: waitForSelector,
		TargetSelector:  targetSelector,
		RemoveSelector:  removeSelector,
		ProxyURL:        proxyURL,
		TimeoutMs:       timeoutMs,
		UserAgent:       c.Get("User-Agent"),
		RespectRobots:   s.cfg.Robots.Respect,
		RequestContext: format.RequestContext{
			WithImagesSummary: strings.EqualFold(c.Get("X-With-Images-Summary"), "true"),
			WithLinksSummary:  strings.EqualFold(c.Get("X-With-Links-Summary"), "true"),
			WithGeneratedAlt:  strings.EqualFold(c.Get("X-With-Generated-Alt"), "true"),
		},
	}

	ctx, cancel := context.WithTimeout(c.Context(), 180*time.Second)
	defer cancel()

	page, err := s.crawler.Crawl(ctx, req)
	if err != nil {
		return s.renderError(c, err)
	}

	if mode == format.ModeScreenshot && page.ScreenshotURL != "" {
		return c.Redirect(page.ScreenshotURL, fiber.StatusFound)
	}
	if mode == format.ModePageshot && page.PageshotURL != "" {
		return c.Redirect(page.PageshotURL, fiber.StatusFound)
	}

	c.Type("text/plain")
	return c.SendString(render.Page(page))
}

func (s *Server) renderError(c *fiber.Ctx, err error) error {
	status := apierr.Status(err)
	s.log.Warn("request failed", slog.String("error", err.Error()), slog.Int("status", status))
	c.Type("text/plain")
	return c.Status(status).SendString(errorMessage(err))
}

func errorMessage(err error) string {
	var e *apierr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func splitOperatorList(s string) []string {
	parts := strings.Split(s, ", ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Package http is the thin HTTP layer above the core: request parsing
// and routing only, grounded on this codebase's fiber-based router and
// Locals-injection/logging-middleware conventions.
package http

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"digestgate/internal/cache"
	"digestgate/internal/config"
	"digestgate/internal/crawler"
	"digestgate/internal/hostset"
	"digestgate/internal/metrics"
	"digestgate/internal/pipeline"
	"digestgate/internal/store"
)

// Server wraps the fiber app and the components the handlers dispatch
// to.
type Server struct {
	App      *fiber.App
	cfg      *config.Config
	log      *slog.Logger
	pipeline *pipeline.Pipeline
	crawler  *crawler.Pipeline
	store    *store.Store
	hostSet  *hostset.Set
}

// NewServer wires the fiber app, request-logging middleware, and routes.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, c *crawler.Pipeline, st *store.Store, hs *hostset.Set, log *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{App: app, cfg: cfg, log: log, pipeline: p, crawler: c, store: st, hostSet: hs}

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Locals("requestID", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		metrics.RecordRequest(c.Method(), c.Route().Path, status, time.Since(start).Milliseconds())
		log.Info("request",
			slog.String("requestID", reqID),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Int64("durationMs", time.Since(start).Milliseconds()),
		)
		return err
	})

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.App.Get("/healthz", s.handleHealth)
	s.App.Get("/metrics", s.handleMetrics)
	s.App.Get("/s/*", s.handleSearch)
	s.App.Get("/r/*", s.handleCrawl)
	s.App.Post("/r", s.handleCrawl)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if c.Query("deep") != "true" {
		return c.SendString("ok")
	}

	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	if s.store != nil && s.store.DB != nil {
		if err := s.store.DB.PingContext(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("database unavailable")
		}
	}
	if s.hostSet != nil {
		if err := s.hostSet.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("redis unavailable")
		}
	}
	return c.SendString("ok")
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Type("text/plain")
	return c.SendString(metrics.Export())
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	addr := s.cfg.Server.Host + ":" + strconv.Itoa(s.cfg.Server.Port)
	return s.App.Listen(addr)
}

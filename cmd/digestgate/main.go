package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"digestgate/internal/cache"
	"digestgate/internal/config"
	"digestgate/internal/crawler"
	"digestgate/internal/format"
	server "digestgate/internal/http"
	"digestgate/internal/hostset"
	"digestgate/internal/jobs"
	"digestgate/internal/migrate"
	"digestgate/internal/pipeline"
	"digestgate/internal/scraper"
	"digestgate/internal/search"
	"digestgate/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	var st *store.Store
	if cfg.Database.DSN != "" {
		if err := migrate.Run(cfg.Database.DSN); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}

		db, err := sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db failed: %v", err)
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		st = store.New(db)
	}

	hs, err := hostset.New(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("hostset init failed: %v", err)
	}

	searchClient := search.NewClient(cfg.Searxng.BaseURL, time.Duration(cfg.Searxng.TimeoutMs)*time.Millisecond)
	searchCache := cache.New(searchClient, st, logger, cfg.Cache.ValidMs, cfg.Cache.RetentionMs)

	browser := scraper.NewRodBrowser(cfg.Rod.BinPath, cfg.Rod.ControlURL)
	formatter := format.New(cfg.Screenshot.Dir, cfg.Screenshot.PublicHost)

	searchPipeline := pipeline.New(searchCache, browser, formatter, logger)
	crawlPipeline := crawler.New(browser, formatter, hs, logger)

	rootCtx := context.Background()
	sweeper := jobs.NewSweeper(cfg.Screenshot.Dir, time.Duration(cfg.Screenshot.TTLHours)*time.Hour, st, logger)
	go sweeper.Start(rootCtx)

	srv := server.NewServer(cfg, searchPipeline, crawlPipeline, st, hs, logger)

	if err := srv.Listen(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

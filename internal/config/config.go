// Package config loads digestgate's YAML configuration, following the
// flag+yaml load idiom used across the rest of this codebase, trimmed to
// the sections the search and crawl pipelines actually need.
package config

import (
	"errors"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ScraperConfig struct {
	UserAgent           string `yaml:"userAgent"`
	TimeoutMs           int    `yaml:"timeoutMs"`
	LinksSameDomainOnly bool   `yaml:"linksSameDomainOnly"`
	LinksMaxPerDocument int    `yaml:"linksMaxPerDocument"`
}

type RobotsConfig struct {
	Respect   bool   `yaml:"respect"`
	UserAgent string `yaml:"userAgent"`
}

type RodConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BinPath    string `yaml:"binPath"`
	ControlURL string `yaml:"controlURL"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// SearxngConfig holds provider-specific configuration for the upstream
// SearXNG-compatible meta-search engine (C1's collaborator).
type SearxngConfig struct {
	BaseURL   string `yaml:"baseURL"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

// CacheConfig controls the Search Cache's (C2) freshness windows. Zero
// values fall back to the package defaults (model.ValidMs / model.RetentionMs).
type CacheConfig struct {
	ValidMs     int64 `yaml:"validMs"`
	RetentionMs int64 `yaml:"retentionMs"`
}

// PipelineConfig controls Search Pipeline (C6) defaults: DefaultCount is
// used when a search omits count, and EarlyReturnTimeoutMs when it omits
// X-Timeout. DefaultTimeoutMs is loaded but not read.
type PipelineConfig struct {
	DefaultCount        int `yaml:"defaultCount"`
	DefaultTimeoutMs     int `yaml:"defaultTimeoutMs"`
	EarlyReturnTimeoutMs int `yaml:"earlyReturnTimeoutMs"`
}

// ScreenshotConfig controls where rendered screenshots/pageshots are
// written and how long they're served before the sweeper unlinks them.
type ScreenshotConfig struct {
	Dir        string `yaml:"dir"`
	PublicHost string `yaml:"publicHost"`
	TTLHours   int    `yaml:"ttlHours"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Robots     RobotsConfig     `yaml:"robots"`
	Rod        RodConfig        `yaml:"rod"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Searxng    SearxngConfig    `yaml:"searxng"`
	Cache      CacheConfig      `yaml:"cache"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Screenshot ScreenshotConfig `yaml:"screenshot"`
}

// Load reads and decodes the YAML config at path, then applies
// environment overrides for SEARXNG_INSTANCE_URL and PORT per the
// external-interfaces contract.
func Load(path string) *Config {
	cfg := &Config{}

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			log.Fatalf("failed to decode config: %v", err)
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Searxng.BaseURL == "" {
		cfg.Searxng.BaseURL = "http://localhost:8080"
	}
	if cfg.Searxng.TimeoutMs == 0 {
		cfg.Searxng.TimeoutMs = 10000
	}
	if cfg.Scraper.UserAgent == "" {
		cfg.Scraper.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	if cfg.Pipeline.DefaultCount == 0 {
		cfg.Pipeline.DefaultCount = 5
	}
	if cfg.Pipeline.EarlyReturnTimeoutMs == 0 {
		cfg.Pipeline.EarlyReturnTimeoutMs = 15000
	}
	if cfg.Screenshot.Dir == "" {
		cfg.Screenshot.Dir = "local-storage/instant-screenshots"
	}
	if cfg.Screenshot.TTLHours == 0 {
		cfg.Screenshot.TTLHours = 48
	}
	if cfg.Screenshot.PublicHost == "" {
		cfg.Screenshot.PublicHost = "localhost"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SEARXNG_INSTANCE_URL"); v != "" {
		cfg.Searxng.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
}

// Validate performs basic sanity checks on the loaded configuration.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Searxng.BaseURL == "" {
		return errors.New("searxng.baseURL must be set")
	}
	return nil
}

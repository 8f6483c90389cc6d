package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Searxng.BaseURL == "" {
		t.Fatalf("expected a default searxng base url")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate cleanly: %v", err)
	}
}

func TestLoad_DecodesYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "server:\n  port: 9090\nsearxng:\n  baseURL: http://searxng.internal\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Load(path)
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port from file, got %d", cfg.Server.Port)
	}
	if cfg.Searxng.BaseURL != "http://searxng.internal" {
		t.Fatalf("expected searxng base url from file, got %q", cfg.Searxng.BaseURL)
	}
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("SEARXNG_INSTANCE_URL", "http://override.example")

	cfg := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if cfg.Server.Port != 9999 {
		t.Fatalf("expected PORT env override, got %d", cfg.Server.Port)
	}
	if cfg.Searxng.BaseURL != "http://override.example" {
		t.Fatalf("expected SEARXNG_INSTANCE_URL env override, got %q", cfg.Searxng.BaseURL)
	}
}

func TestValidate_RejectsMissingSearxngBaseURL(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error when searxng.baseURL is unset")
	}
}

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plenary/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if cfg.Pipeline.RetryAttempts != 4 {
		t.Fatalf("expected default retry attempts, got %d", cfg.Pipeline.RetryAttempts)
	}
	if cfg.OpenAI.EmbeddingDimensions != 1536 {
		t.Fatalf("expected default embedding dimensions, got %d", cfg.OpenAI.EmbeddingDimensions)
	}
	if cfg.Media.DownloaderBinary != "yt-dlp" {
		t.Fatalf("expected default downloader, got %s", cfg.Media.DownloaderBinary)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
scratch_dir = "` + filepath.Join(dir, "scratch") + `"

[openai]
endpoint = "https://example.openai.azure.com/"

[pipeline]
retry_attempts = 2
default_language = "en-US"

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.OpenAI.Endpoint != "https://example.openai.azure.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.OpenAI.Endpoint)
	}
	if cfg.Pipeline.RetryAttempts != 2 {
		t.Fatalf("expected retry attempts 2, got %d", cfg.Pipeline.RetryAttempts)
	}
	if cfg.Pipeline.DefaultLanguageTag != "en" {
		t.Fatalf("expected language reduced to base, got %q", cfg.Pipeline.DefaultLanguageTag)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased format, got %q", cfg.Logging.Format)
	}
	if cfg.Pipeline.TranscribeTimeout == 0 {
		t.Fatal("expected zero timeouts to be backfilled")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[vector]
enabled = true

[logging]
format = "xml"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "vector.dsn") || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected both problems reported, got: %v", err)
	}
}

func TestEnvOverridesApply(t *testing.T) {
	t.Setenv("PLENARY_OPENAI_API_KEY", "env-key")
	t.Setenv("PLENARY_OPENAI_ENDPOINT", "https://env.openai.azure.com")

	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OpenAI.APIKey != "env-key" {
		t.Fatalf("expected env api key, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.Endpoint != "https://env.openai.azure.com" {
		t.Fatalf("expected env endpoint, got %q", cfg.OpenAI.Endpoint)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[pipeline]") {
		t.Fatal("sample config missing pipeline section")
	}

	// The sample must itself survive a Load round trip.
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

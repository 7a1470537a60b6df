package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	ScratchDir string `toml:"scratch_dir"`
}

// OpenAI contains the Azure OpenAI connection settings used for
// transcription, entity extraction, summarization, and embeddings.
type OpenAI struct {
	APIKey              string `toml:"api_key"`
	Endpoint            string `toml:"endpoint"`
	APIVersion          string `toml:"api_version"`
	TranscribeModel     string `toml:"transcribe_model"`
	ExtractionModel     string `toml:"extraction_model"`
	EmbeddingModel      string `toml:"embedding_model"`
	EmbeddingDimensions int    `toml:"embedding_dimensions"`
	EmbeddingBatchSize  int    `toml:"embedding_batch_size"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// Vector contains configuration for the pgvector embedding index.
type Vector struct {
	Enabled bool   `toml:"enabled"`
	DSN     string `toml:"dsn"`
	Table   string `toml:"table"`
}

// Media contains audio acquisition settings.
type Media struct {
	DownloaderBinary string `toml:"downloader_binary"`
	ProbeBinary      string `toml:"probe_binary"`
	MaxDurationHours int    `toml:"max_duration_hours"`
	AudioFormat      string `toml:"audio_format"`
}

// Bus contains NATS progress event publishing settings.
type Bus struct {
	Enabled       bool   `toml:"enabled"`
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// Pipeline contains retry, timeout, and concurrency tunables. All stage
// timeouts are in seconds; zero falls back to the repository default.
type Pipeline struct {
	RetryAttempts      int    `toml:"retry_attempts"`
	RetryBaseSeconds   int    `toml:"retry_base_seconds"`
	RetryMaxSeconds    int    `toml:"retry_max_seconds"`
	RunBudgetMinutes   int    `toml:"run_budget_minutes"`
	MaxConcurrent      int    `toml:"max_concurrent"`
	MetadataTimeout    int    `toml:"metadata_timeout"`
	AudioTimeout       int    `toml:"audio_timeout"`
	TranscribeTimeout  int    `toml:"transcribe_timeout"`
	EntitiesTimeout    int    `toml:"entities_timeout"`
	SummaryTimeout     int    `toml:"summary_timeout"`
	EmbedTimeout       int    `toml:"embed_timeout"`
	PersistTimeout     int    `toml:"persist_timeout"`
	DefaultLanguageTag string `toml:"default_language"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Plenary.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and scratch directories
//   - OpenAI: Azure OpenAI deployments for the AI stages
//   - Vector: pgvector embedding index
//   - Media: audio acquisition binaries and limits
//   - Bus: NATS progress event publishing
//   - Pipeline: retry bounds, stage timeouts, run budget, batch width
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	OpenAI   OpenAI   `toml:"openai"`
	Vector   Vector   `toml:"vector"`
	Media    Media    `toml:"media"`
	Bus      Bus      `toml:"bus"`
	Pipeline Pipeline `toml:"pipeline"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/plenary/config.toml")
}

// Load locates, parses, and validates a configuration file. Secrets may also
// arrive via PLENARY_* environment variables (a .env file next to the config
// is honored). The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	loadEnvOverrides(&cfg, resolvedPath)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadEnvOverrides fills secret fields from the environment. A .env file in
// the config directory is loaded first without clobbering existing variables.
func loadEnvOverrides(cfg *Config, configPath string) {
	if configPath != "" {
		_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))
	}
	if key := strings.TrimSpace(os.Getenv("PLENARY_OPENAI_API_KEY")); key != "" {
		cfg.OpenAI.APIKey = key
	}
	if endpoint := strings.TrimSpace(os.Getenv("PLENARY_OPENAI_ENDPOINT")); endpoint != "" {
		cfg.OpenAI.Endpoint = endpoint
	}
	if dsn := strings.TrimSpace(os.Getenv("PLENARY_VECTOR_DSN")); dsn != "" {
		cfg.Vector.DSN = dsn
	}
	if natsURL := strings.TrimSpace(os.Getenv("PLENARY_NATS_URL")); natsURL != "" {
		cfg.Bus.URL = natsURL
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("plenary.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ScratchDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

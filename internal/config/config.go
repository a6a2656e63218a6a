// Package config provides the configuration structure for the HearO content tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Default values applied to any field left empty by the loaded configuration.
const (
	DefaultAPIBase              = "https://generativelanguage.googleapis.com/"
	DefaultAPIVersion           = "v1beta"
	DefaultPrimaryModel         = "gemini-2.5-flash-preview-tts"
	DefaultFallbackModel        = "gemini-2.5-pro-preview-tts"
	DefaultTimeoutSeconds       = 60
	DefaultRateLimitRetries     = 2
	DefaultRateLimitBackoffSecs = 30
	DefaultSampleRate           = 24000
	DefaultStoriesFile          = "public/assets/prerendered/stories/all_stories.json"
	DefaultOutputDir            = "public/assets/prerendered/tts"
	DefaultProgressFile         = "scripts/.tts_gemini_progress.json"
	DefaultPacingSeconds        = 8
	DefaultPromptsFile          = "hearo_skybox_prompts.txt"
	DefaultLogsDir              = "logs"
)

// Static errors.
var (
	ErrModelEmpty       = errors.New("gemini primary model cannot be empty")
	ErrNegativeRetries  = errors.New("rate limit retries must be non-negative")
	ErrNegativeDuration = errors.New("durations must be non-negative")
	ErrOutputDirEmpty   = errors.New("batch output directory cannot be empty")
	ErrProgressEmpty    = errors.New("batch progress file cannot be empty")
	ErrNATSUnused       = errors.New("nats url is set but neither an object store bucket nor a subject is configured")
)

// GeminiConfig holds the settings of the remote speech synthesis service.
type GeminiConfig struct {
	APIBase                 string `toml:"api_base"`
	APIVersion              string `toml:"api_version"`
	PrimaryModel            string `toml:"primary_model"`
	FallbackModel           string `toml:"fallback_model"`
	TimeoutSeconds          int    `toml:"timeout_seconds"`
	RateLimitRetries        int    `toml:"rate_limit_retries"`
	RateLimitBackoffSeconds int    `toml:"rate_limit_backoff_seconds"`
	SampleRate              int    `toml:"sample_rate"`
}

// Timeout returns the per-request timeout.
func (g GeminiConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// RateLimitBackoff returns the base delay used between rate limit retries.
func (g GeminiConfig) RateLimitBackoff() time.Duration {
	return time.Duration(g.RateLimitBackoffSeconds) * time.Second
}

// BatchConfig holds the file locations and pacing of the speech batch.
type BatchConfig struct {
	StoriesFile   string `toml:"stories_file"`
	OutputDir     string `toml:"output_dir"`
	ProgressFile  string `toml:"progress_file"`
	PacingSeconds int    `toml:"pacing_seconds"`
}

// Pacing returns the delay inserted between two synthesized items.
func (b BatchConfig) Pacing() time.Duration {
	return time.Duration(b.PacingSeconds) * time.Second
}

// PromptsConfig holds the settings of the skybox prompt renderer.
type PromptsConfig struct {
	OutputFile  string `toml:"output_file"`
	CatalogFile string `toml:"catalog_file"`
}

// NATSConfig holds the optional NATS settings used to mirror generated audio
// and announce finished items. An empty URL disables both.
type NATSConfig struct {
	URL                    string `toml:"url"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	AudioCreatedSubject    string `toml:"audio_created_subject"`
}

// Enabled reports whether a NATS connection should be opened.
func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Gemini  GeminiConfig  `toml:"gemini"`
	Batch   BatchConfig   `toml:"batch"`
	Prompts PromptsConfig `toml:"prompts"`
	NATS    NATSConfig    `toml:"nats"`
	Paths   PathsConfig   `toml:"paths"`
}

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	var cfg Config

	cfg.ApplyDefaults()

	return &cfg
}

// Load loads the configuration through the central configurator. When the
// configurator has nothing to offer the built-in defaults are used.
func Load(log *logger.Logger) (*Config, error) {
	cfg := *Default()

	err := configurator.Load(&cfg, log)
	if err != nil {
		log.Warn("Central configuration unavailable, using defaults: %v", err)

		return Default(), nil
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// LoadFile reads a TOML configuration file from disk.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes TOML data over the defaults and validates the result. Keys
// present in the data win even when they hold a zero value, so
// rate_limit_retries = 0 or fallback_model = "" are kept as written.
func Parse(data []byte) (*Config, error) {
	cfg := *Default()

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// ApplyDefaults fills every empty or zero field with its default value.
func (c *Config) ApplyDefaults() {
	setString(&c.Gemini.APIBase, DefaultAPIBase)
	setString(&c.Gemini.APIVersion, DefaultAPIVersion)
	setString(&c.Gemini.PrimaryModel, DefaultPrimaryModel)
	setString(&c.Gemini.FallbackModel, DefaultFallbackModel)
	setInt(&c.Gemini.TimeoutSeconds, DefaultTimeoutSeconds)
	setInt(&c.Gemini.RateLimitBackoffSeconds, DefaultRateLimitBackoffSecs)
	setInt(&c.Gemini.SampleRate, DefaultSampleRate)
	setInt(&c.Gemini.RateLimitRetries, DefaultRateLimitRetries)

	setString(&c.Batch.StoriesFile, DefaultStoriesFile)
	setString(&c.Batch.OutputDir, DefaultOutputDir)
	setString(&c.Batch.ProgressFile, DefaultProgressFile)
	setInt(&c.Batch.PacingSeconds, DefaultPacingSeconds)

	setString(&c.Prompts.OutputFile, DefaultPromptsFile)
	setString(&c.Paths.BaseLogsDir, DefaultLogsDir)
}

// Validate checks the configuration for values the tools cannot work with.
func (c *Config) Validate() error {
	if c.Gemini.PrimaryModel == "" {
		return ErrModelEmpty
	}

	if c.Gemini.RateLimitRetries < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeRetries, c.Gemini.RateLimitRetries)
	}

	if c.Gemini.TimeoutSeconds < 0 || c.Gemini.RateLimitBackoffSeconds < 0 || c.Batch.PacingSeconds < 0 {
		return ErrNegativeDuration
	}

	if c.Batch.OutputDir == "" {
		return ErrOutputDirEmpty
	}

	if c.Batch.ProgressFile == "" {
		return ErrProgressEmpty
	}

	if c.NATS.Enabled() && c.NATS.AudioObjectStoreBucket == "" && c.NATS.AudioCreatedSubject == "" {
		return ErrNATSUnused
	}

	return nil
}

func setString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}

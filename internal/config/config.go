// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Enhancement providers selectable via ENHANCER_PROVIDER.
const (
	ProviderNone    = "none"
	ProviderOpenAI  = "openai"
	ProviderRunPod  = "runpod"
	ProviderOverlay = "overlay"
)

// Static errors for configuration validation.
var (
	// ErrInvalidLimit is returned when a size, dimension or timeout is not positive.
	ErrInvalidLimit = errors.New("config: limits, dimensions and timeouts must be positive")
	// ErrNoTimestamps is returned when FRAME_TIMESTAMPS is empty.
	ErrNoTimestamps = errors.New("config: FRAME_TIMESTAMPS must list at least one offset")
	// ErrUnknownProvider is returned when ENHANCER_PROVIDER is not recognized.
	ErrUnknownProvider = errors.New("config: unknown ENHANCER_PROVIDER")
	// ErrOpenAIKeyRequired is returned when the openai provider is selected without OPENAI_API_KEY.
	ErrOpenAIKeyRequired = errors.New("config: OPENAI_API_KEY is required for the openai provider")
	// ErrRunPodConfigRequired is returned when the runpod provider is selected without credentials.
	ErrRunPodConfigRequired = errors.New("config: RUNPOD_API_KEY and RUNPOD_ENDPOINT_ID are required for the runpod provider")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/thumbnail-api" json:"temp_dir"`

	// Upload settings
	MaxUploadMB int `env:"MAX_UPLOAD_MB, default=100" json:"max_upload_mb"`

	// Frame extraction settings
	FrameTimestamps []string `env:"FRAME_TIMESTAMPS, default=1,3,5" json:"frame_timestamps"`
	FrameWidth      int      `env:"FRAME_WIDTH, default=640" json:"frame_width"`
	FrameHeight     int      `env:"FRAME_HEIGHT, default=480" json:"frame_height"`
	FFmpegPath      string   `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath     string   `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	ExecTimeoutSec  int      `env:"EXEC_TIMEOUT_SEC, default=30" json:"exec_timeout_sec"`

	// Enhancement settings
	EnhancerProvider  string `env:"ENHANCER_PROVIDER" json:"enhancer_provider,omitempty"` // empty selects automatically
	EnhanceTimeoutSec int    `env:"ENHANCE_TIMEOUT_SEC, default=60" json:"enhance_timeout_sec"`
	OpenAIAPIKey      string `env:"OPENAI_API_KEY" json:"-"` // Masked in JSON
	OpenAIBaseURL     string `env:"OPENAI_BASE_URL" json:"openai_base_url,omitempty"`
	OpenAIImageSize   string `env:"OPENAI_IMAGE_SIZE, default=1024x1024" json:"openai_image_size"`
	RunPodAPIKey      string `env:"RUNPOD_API_KEY" json:"-"` // Masked in JSON
	RunPodEndpointID  string `env:"RUNPOD_ENDPOINT_ID" json:"runpod_endpoint_id,omitempty"`
	OverlayFontFile   string `env:"OVERLAY_FONT_FILE" json:"overlay_font_file,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxUploadBytes returns the upload ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Provider resolves the enhancement provider. An explicit ENHANCER_PROVIDER
// wins; otherwise the presence of OPENAI_API_KEY selects openai and its
// absence selects none.
func (c *Config) Provider() string {
	if p := strings.ToLower(strings.TrimSpace(c.EnhancerProvider)); p != "" {
		return p
	}
	if c.OpenAIAPIKey != "" {
		return ProviderOpenAI
	}
	return ProviderNone
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks limits and that the selected provider has its credentials.
func (c *Config) Validate() error {
	if c.MaxUploadMB <= 0 || c.FrameWidth <= 0 || c.FrameHeight <= 0 ||
		c.ExecTimeoutSec <= 0 || c.EnhanceTimeoutSec <= 0 {
		return ErrInvalidLimit
	}

	nonEmpty := 0
	for _, ts := range c.FrameTimestamps {
		if strings.TrimSpace(ts) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return ErrNoTimestamps
	}

	switch c.Provider() {
	case ProviderNone, ProviderOverlay:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return ErrOpenAIKeyRequired
		}
	case ProviderRunPod:
		if c.RunPodAPIKey == "" || c.RunPodEndpointID == "" {
			return ErrRunPodConfigRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.EnhancerProvider)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, MaxUploadMB: %d, FrameTimestamps: %v, Frame: %dx%d, ExecTimeoutSec: %d, Provider: %s, EnhanceTimeoutSec: %d, RunPodEndpointID: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.MaxUploadMB,
		c.FrameTimestamps,
		c.FrameWidth,
		c.FrameHeight,
		c.ExecTimeoutSec,
		c.Provider(),
		c.EnhanceTimeoutSec,
		c.RunPodEndpointID,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

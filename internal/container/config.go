// Package container provides dependency injection and lifecycle management
// for the claim audit service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database   DatabaseConfig
	Storage    StorageConfig
	Pool       PoolConfig
	Retry      RetryConfig
	OpenAI     OpenAIConfig
	Extraction ExtractionConfig
	Report     ReportConfig
	Lark       LarkConfig

	// TotalTolerance is the rupee difference allowed between a bill's stated
	// and computed totals
	TotalTolerance float64
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is sqlite, postgres or memory
	Driver string

	// Path to SQLite database file
	Path string

	// DSN is the PostgreSQL connection string
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// StorageConfig holds upload storage settings.
type StorageConfig struct {
	UploadDir      string
	MaxUploadBytes int64
}

// PoolConfig bounds concurrent audit pipelines.
type PoolConfig struct {
	MaxConcurrent int
	QueueSize     int
}

// RetryConfig bounds collaborator retries.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	VisionModel   string
	PromptsPath   string
	MaxInputChars int
}

// ExtractionConfig holds PDF extraction settings.
type ExtractionConfig struct {
	MaxPages    int
	OCREnabled  bool
	OCRMaxPages int
}

// ReportConfig holds report rendering settings.
type ReportConfig struct {
	// FontPaths are TTF fonts tried in order for the letter PDF
	FontPaths []string
}

// LarkConfig holds Lark notification settings. Notifications are off unless
// Enabled is set.
type LarkConfig struct {
	Enabled       bool
	AppID         string
	AppSecret     string
	ReceiveIDType string
	ReceiveID     string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Path:            "data/bimabot.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Storage: StorageConfig{
			UploadDir:      "data/uploads",
			MaxUploadBytes: 10 << 20,
		},
		Pool: PoolConfig{
			MaxConcurrent: 4,
			QueueSize:     16,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			AttemptTimeout: 60 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model:         "gpt-4o",
			PromptsPath:   "configs/prompts.yaml",
			MaxInputChars: 48000,
		},
		Extraction: ExtractionConfig{
			MaxPages:    50,
			OCREnabled:  true,
			OCRMaxPages: 4,
		},
		TotalTolerance: 1,
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Storage.UploadDir == "" {
		return fmt.Errorf("storage.upload_dir is required")
	}

	// Validate OpenAI configuration
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.OpenAI.PromptsPath == "" {
		return fmt.Errorf("openai.prompts_path is required")
	}

	if c.Lark.Enabled && c.Lark.ReceiveID == "" {
		return fmt.Errorf("lark.receive_id is required when lark is enabled")
	}

	return nil
}

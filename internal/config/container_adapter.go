package config

import (
	"github.com/G1r1shCodes/BimaBot/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Storage: container.StorageConfig{
			UploadDir:      c.Storage.UploadDir,
			MaxUploadBytes: c.Storage.MaxUploadBytes,
		},
		Pool: container.PoolConfig{
			MaxConcurrent: c.Pool.MaxConcurrent,
			QueueSize:     c.Pool.QueueSize,
		},
		Retry: container.RetryConfig{
			MaxAttempts:    c.Retry.MaxAttempts,
			InitialBackoff: c.Retry.InitialBackoff,
			MaxBackoff:     c.Retry.MaxBackoff,
			AttemptTimeout: c.Retry.AttemptTimeout,
		},
		OpenAI: container.OpenAIConfig{
			APIKey:        c.OpenAI.APIKey,
			BaseURL:       c.OpenAI.BaseURL,
			Model:         c.OpenAI.Model,
			VisionModel:   c.OpenAI.VisionModel,
			PromptsPath:   c.OpenAI.PromptsPath,
			MaxInputChars: c.OpenAI.MaxInputChars,
		},
		Extraction: container.ExtractionConfig{
			MaxPages:    c.Extraction.MaxPages,
			OCREnabled:  c.Extraction.OCREnabled,
			OCRMaxPages: c.Extraction.OCRMaxPages,
		},
		Report: container.ReportConfig{
			FontPaths: c.Report.FontPaths,
		},
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			ReceiveIDType: c.Lark.ReceiveIDType,
			ReceiveID:     c.Lark.ReceiveID,
		},
		TotalTolerance: c.Rules.TotalTolerance,
	}
}

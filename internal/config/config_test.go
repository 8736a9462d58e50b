package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, int64(10<<20), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 4, cfg.Pool.MaxConcurrent)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Equal(t, 1.0, cfg.Rules.TotalTolerance)
	assert.Equal(t, "chat_id", cfg.Lark.ReceiveIDType)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoad_FileAndOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://audit@localhost/bimabot")
	t.Setenv("POOL_MAX_CONCURRENT", "8")

	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: postgres
pool:
  max_concurrent: 2
retry:
  attempt_timeout: 90s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://audit@localhost/bimabot", cfg.Database.DSN)
	assert.Equal(t, 8, cfg.Pool.MaxConcurrent)
	assert.Equal(t, 90*time.Second, cfg.Retry.AttemptTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "sqlite", Path: "data/test.db"},
			Storage:  StorageConfig{UploadDir: "data/uploads", MaxUploadBytes: 1 << 20},
			Pool:     PoolConfig{MaxConcurrent: 1},
			Retry:    RetryConfig{MaxAttempts: 1},
			OpenAI:   OpenAIConfig{APIKey: "sk-test"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"memory driver", func(c *Config) { c.Database = DatabaseConfig{Driver: "memory"} }, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
		{"no upload dir", func(c *Config) { c.Storage.UploadDir = "" }, "storage.upload_dir"},
		{"no api key", func(c *Config) { c.OpenAI.APIKey = "" }, "openai.api_key"},
		{"zero pool", func(c *Config) { c.Pool.MaxConcurrent = 0 }, "pool.max_concurrent"},
		{"lark without receiver", func(c *Config) {
			c.Lark = LarkConfig{Enabled: true, AppID: "cli_a", AppSecret: "secret"}
		}, "lark.receive_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ToContainerConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	cc := cfg.ToContainerConfig()
	require.NoError(t, cc.Validate())
	assert.Equal(t, cfg.Database.Path, cc.Database.Path)
	assert.Equal(t, cfg.Pool.QueueSize, cc.Pool.QueueSize)
	assert.Equal(t, cfg.Rules.TotalTolerance, cc.TotalTolerance)
	assert.Equal(t, cfg.OpenAI.PromptsPath, cc.OpenAI.PromptsPath)
}

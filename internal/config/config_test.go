package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
	return dir
}

func TestLoadConfig(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "archive")
	dir := writeConfig(t, `
server:
  port: "9090"
  mode: debug
database:
  driver: postgres
  host: db.internal
  port: 5432
jwt:
  secret: short
  expire_hours: 12
storage:
  type: local
  local_path: `+storage+`
analysis:
  base_url: http://analysis:8000
  timeout: 90s
notification:
  webhook_url: http://hooks.internal/assignments
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 12*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 90*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, "/analyze", cfg.Analysis.Path)
	assert.Equal(t, uint(1000000), cfg.Assignment.FeedbackIDOffset)
	assert.Equal(t, "@every 5m", cfg.Assignment.ExpirySchedule)
	assert.Equal(t, 3, cfg.Notification.MaxRetries)
	assert.Equal(t, "http://hooks.internal/assignments", cfg.Notification.WebhookURL)
	assert.Equal(t, int64(32<<20), cfg.Analysis.MaxResponseBytes)
	assert.Equal(t, "logs/npi-portal.log", cfg.Log.File)
	assert.Equal(t, 5, cfg.Log.MaxBackups)

	// 本地存储目录会被自动创建
	assert.DirExists(t, storage)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := writeConfig(t, `
database:
  driver: mysql
  host: 127.0.0.1
jwt:
  secret: from-file
storage:
  type: minio
`)
	t.Setenv("DATABASE_HOST", "mysql.prod")
	t.Setenv("ANALYSIS_TIMEOUT", "2m")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "mysql.prod", cfg.Database.Host)
	assert.Equal(t, 2*time.Minute, cfg.Analysis.Timeout)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "weak secret in release",
			body: "server:\n  mode: release\njwt:\n  secret: too-short\nstorage:\n  type: minio\n",
		},
		{
			name: "unknown driver",
			body: "database:\n  driver: sqlserver\nstorage:\n  type: minio\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, "data/app.db", cfg.Database.Path)
	assert.Equal(t, "backups", cfg.Backup.Dir)
	assert.True(t, cfg.Backup.Compress)
	assert.Equal(t, 7, cfg.Backup.Retention.Daily)
	assert.Equal(t, 4, cfg.Backup.Retention.Weekly)
	assert.Equal(t, 12, cfg.Backup.Retention.Monthly)
	assert.Equal(t, "02:00", cfg.Backup.Schedule.Daily)
	assert.Equal(t, "Sunday", cfg.Backup.Schedule.Weekly)
	assert.Equal(t, 1, cfg.Backup.Schedule.Monthly)
	assert.False(t, cfg.Encryption.Enabled)
	assert.Empty(t, cfg.Remote.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "litevault.yaml")

	yaml := `
database:
  path: /var/lib/app/app.db
backup:
  dir: /var/backups/app
  compress: false
  retention:
    daily: 14
  schedule:
    daily: "03:30"
    weekly: Monday
remote:
  type: s3
  s3:
    bucket: my-backups
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/app/app.db", cfg.Database.Path)
	assert.Equal(t, "/var/backups/app", cfg.Backup.Dir)
	assert.False(t, cfg.Backup.Compress)
	assert.Equal(t, 14, cfg.Backup.Retention.Daily)
	// unset file keys keep their defaults
	assert.Equal(t, 4, cfg.Backup.Retention.Weekly)
	assert.Equal(t, "03:30", cfg.Backup.Schedule.Daily)
	assert.Equal(t, "Monday", cfg.Backup.Schedule.Weekly)
	assert.Equal(t, "s3", cfg.Remote.Type)
	assert.Equal(t, "my-backups", cfg.Remote.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.Remote.S3.Region)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "litevault.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backup:\n  dir: /from/file\n"), 0o600))

	t.Setenv("LITEVAULT_BACKUP_DIR", "/from/env")
	t.Setenv("LITEVAULT_LOG_LEVEL", "debug")
	t.Setenv("LITEVAULT_RETENTION_DAILY", "3")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.Backup.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Backup.Retention.Daily)
}

func TestLoadIgnoresUnknownEnvVars(t *testing.T) {
	t.Setenv("LITEVAULT_NO_SUCH_KEY", "whatever")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, "backups", cfg.Backup.Dir)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"empty backup dir", func(c *Config) { c.Backup.Dir = "" }},
		{"zero retention", func(c *Config) { c.Backup.Retention.Daily = 0 }},
		{"bad daily time", func(c *Config) { c.Backup.Schedule.Daily = "25:99" }},
		{"bad weekday", func(c *Config) { c.Backup.Schedule.Weekly = "Someday" }},
		{"monthly day out of range", func(c *Config) { c.Backup.Schedule.Monthly = 31 }},
		{"unknown remote type", func(c *Config) { c.Remote.Type = "ftp" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

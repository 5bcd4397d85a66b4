// Package config loads litevault configuration from layered sources:
// built-in defaults, an optional YAML file, and LITEVAULT_* environment
// variables, with later layers overriding earlier ones.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/litevault/litevault/internal/logging"
	"github.com/litevault/litevault/internal/metadata"
	"github.com/litevault/litevault/internal/remote"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"litevault.yaml",
	"litevault.yml",
	"/etc/litevault/config.yaml",
	"/etc/litevault/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "LITEVAULT_CONFIG"

// Config is the full litevault configuration.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	Backup     BackupConfig     `koanf:"backup"`
	Encryption EncryptionConfig `koanf:"encryption"`
	Remote     remote.Config    `koanf:"remote"`
	Logging    logging.Config   `koanf:"logging"`
}

// DatabaseConfig locates the SQLite database under protection.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// BackupConfig controls where and how backups are produced.
type BackupConfig struct {
	Dir       string            `koanf:"dir"`
	Compress  bool              `koanf:"compress"`
	Retention RetentionConfig   `koanf:"retention"`
	Schedule  metadata.Schedule `koanf:"schedule"`
}

// RetentionConfig caps the number of retained backups per tier.
type RetentionConfig struct {
	Daily   int `koanf:"daily"`
	Weekly  int `koanf:"weekly"`
	Monthly int `koanf:"monthly"`
}

// EncryptionConfig enables at-rest encryption of backup artifacts.
type EncryptionConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Password string `koanf:"password"`
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "data/app.db",
		},
		Backup: BackupConfig{
			Dir:      "backups",
			Compress: true,
			Retention: RetentionConfig{
				Daily:   7,
				Weekly:  4,
				Monthly: 12,
			},
			Schedule: metadata.DefaultSchedule(),
		},
		Encryption: EncryptionConfig{
			Enabled:  false,
			Password: "",
		},
		Remote: remote.Config{
			Type: "",
			S3: remote.S3Config{
				Region: "us-east-1",
			},
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, an optional config file and
// environment variables, in that order of precedence.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("LITEVAULT_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Backup.Dir == "" {
		return fmt.Errorf("backup.dir must not be empty")
	}
	if c.Backup.Retention.Daily < 1 || c.Backup.Retention.Weekly < 1 || c.Backup.Retention.Monthly < 1 {
		return fmt.Errorf("retention caps must be at least 1")
	}
	if err := c.Backup.Schedule.Validate(); err != nil {
		return fmt.Errorf("invalid backup schedule: %w", err)
	}
	switch c.Remote.Type {
	case "", "s3", "gcs":
	default:
		return fmt.Errorf("remote.type must be empty, s3 or gcs, got %q", c.Remote.Type)
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransform maps LITEVAULT_* environment variables to config paths.
// Unknown variables are skipped so unrelated environment noise cannot leak
// into the configuration.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "LITEVAULT_"))

	envMappings := map[string]string{
		"database_path": "database.path",

		"backup_dir":        "backup.dir",
		"backup_compress":   "backup.compress",
		"retention_daily":   "backup.retention.daily",
		"retention_weekly":  "backup.retention.weekly",
		"retention_monthly": "backup.retention.monthly",
		"schedule_daily":    "backup.schedule.daily",
		"schedule_weekly":   "backup.schedule.weekly",
		"schedule_monthly":  "backup.schedule.monthly",

		"encryption_enabled":  "encryption.enabled",
		"encryption_password": "encryption.password",

		"remote_type":          "remote.type",
		"s3_bucket":            "remote.s3.bucket",
		"s3_region":            "remote.s3.region",
		"s3_endpoint":          "remote.s3.endpoint",
		"s3_access_key":        "remote.s3.access_key",
		"s3_secret_key":        "remote.s3.secret_key",
		"s3_prefix":            "remote.s3.prefix",
		"gcs_bucket":           "remote.gcs.bucket",
		"gcs_credentials_file": "remote.gcs.credentials",
		"gcs_prefix":           "remote.gcs.prefix",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_file":   "logging.file",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}

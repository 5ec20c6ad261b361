// Package config loads the GopherLock configuration.
//
// Sources, lowest precedence first: built-in defaults, a YAML file and
// GOPHERLOCK_* environment variables (dots replaced by underscores, e.g.
// GOPHERLOCK_SERVER_HTTP_ADDR). Backend specific sections are kept as raw
// maps and decoded by the factories once the backend type is known.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GOPHERLOCK"

// Config is the root configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Lock       LockConfig       `mapstructure:"lock"`
	Retention  RetentionConfig  `mapstructure:"retention"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN or ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR"`

	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig configures the HTTP gateway and the gRPC listener.
type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr" validate:"required"`

	// GRPCAddr enables the gRPC LockService when set.
	GRPCAddr string `mapstructure:"grpc_addr"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// MaxUploadBytes bounds a single uploaded document.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"gt=0"`

	// CleanupSecret, when set, must be presented as a Bearer token to
	// POST /api/cleanup.
	CleanupSecret string `mapstructure:"cleanup_secret"`
}

// StorageConfig selects the object store.
type StorageConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=fs memory s3"`

	FS     map[string]any `mapstructure:"fs"`
	S3     map[string]any `mapstructure:"s3"`
	Memory map[string]any `mapstructure:"memory"`
}

// RepositoryConfig selects the record repository.
type RepositoryConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=memory badger mysql"`

	Badger map[string]any `mapstructure:"badger"`
	MySQL  map[string]any `mapstructure:"mysql"`
}

// LockConfig tunes lock calls and uploads.
type LockConfig struct {
	// URLTTL is the lifetime of retrieval URLs for locked documents.
	URLTTL time.Duration `mapstructure:"url_ttl" validate:"gt=0"`

	// CallTimeout bounds one lock call made by a batch run.
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"gt=0"`

	UploadWorkers int `mapstructure:"upload_workers" validate:"gte=1,lte=64"`

	// RemoteTarget routes batch lock calls to a remote gRPC LockService
	// instead of locking in process.
	RemoteTarget string `mapstructure:"remote_target"`

	DefaultMethod string `mapstructure:"default_method" validate:"omitempty,oneof=aes-256 aes-128 rc4-128"`
}

// RetentionConfig controls the storage sweeper.
type RetentionConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	MaxAge   time.Duration `mapstructure:"max_age" validate:"gt=0"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}

// envKeys are bound explicitly so environment overrides work without a
// config file mentioning the key.
var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"server.http_addr", "server.grpc_addr", "server.shutdown_timeout",
	"server.max_upload_bytes", "server.cleanup_secret",
	"storage.type", "repository.type",
	"lock.url_ttl", "lock.call_timeout", "lock.upload_workers",
	"lock.remote_target", "lock.default_method",
	"retention.enabled", "retention.max_age", "retention.interval",
}

// Load reads configuration from configPath (optional), applies environment
// overrides and defaults, and validates the result. A missing file is not
// an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if err := setupViper(v, configPath); err != nil {
		return nil, err
	}
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ApplyDefaults(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		v.SetConfigFile(configPath)
		return nil
	}
	v.AddConfigPath(getConfigDir())
	v.AddConfigPath(".")
	v.SetConfigName("gopherlock")
	v.SetConfigType("yaml")
	return nil
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "gopherlock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "gopherlock")
}

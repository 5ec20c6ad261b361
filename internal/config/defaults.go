package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mtiwari1/gopherlock/internal/batch"
	"github.com/mtiwari1/gopherlock/internal/locker"
	"github.com/mtiwari1/gopherlock/internal/storage"
)

// Defaults used when a value is not configured.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxUploadBytes  = 50 << 20
	DefaultUploadWorkers   = 4
	DefaultSweepInterval   = 10 * time.Minute
	DefaultFSPath          = "./data/objects"
	DefaultBadgerPath      = "./data/records"
)

// ApplyDefaults fills zero values. It only fails when a random signing key
// cannot be generated.
func ApplyDefaults(cfg *Config) error {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	if err := applyStorageDefaults(&cfg.Storage, cfg.Server.HTTPAddr); err != nil {
		return err
	}
	applyRepositoryDefaults(&cfg.Repository)
	applyLockDefaults(&cfg.Lock)
	applyRetentionDefaults(&cfg.Retention)
	return nil
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
}

func applyStorageDefaults(cfg *StorageConfig, httpAddr string) error {
	if cfg.Type == "" {
		cfg.Type = "fs"
	}
	if cfg.FS == nil {
		cfg.FS = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}

	if _, ok := cfg.FS["path"]; !ok {
		cfg.FS["path"] = DefaultFSPath
	}
	if _, ok := cfg.FS["base_url"]; !ok {
		host := httpAddr
		if strings.HasPrefix(host, ":") {
			host = "localhost" + host
		}
		cfg.FS["base_url"] = "http://" + host
	}
	if key, _ := cfg.FS["signing_key"].(string); key == "" && cfg.Type == "fs" {
		// Links signed with a random key do not survive a restart, which
		// matches the retention window of the objects they point at.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generate signing key: %w", err)
		}
		cfg.FS["signing_key"] = hex.EncodeToString(buf)
	}
	return nil
}

func applyRepositoryDefaults(cfg *RepositoryConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.MySQL == nil {
		cfg.MySQL = make(map[string]any)
	}
	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = DefaultBadgerPath
	}
}

func applyLockDefaults(cfg *LockConfig) {
	if cfg.URLTTL == 0 {
		cfg.URLTTL = locker.DefaultURLTTL
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = batch.DefaultCallTimeout
	}
	if cfg.UploadWorkers == 0 {
		cfg.UploadWorkers = DefaultUploadWorkers
	}
	if cfg.DefaultMethod == "" {
		cfg.DefaultMethod = string(locker.DefaultMethod)
	}
	cfg.DefaultMethod = strings.ToLower(cfg.DefaultMethod)
}

func applyRetentionDefaults(cfg *RetentionConfig) {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = storage.DefaultRetention
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultSweepInterval
	}
}

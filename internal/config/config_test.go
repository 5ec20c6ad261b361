package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mtiwari1/gopherlock/internal/repository"
	"github.com/mtiwari1/gopherlock/internal/storage"
)

func writeConfig(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "gopherlock.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "fs", cfg.Storage.Type)
	assert.Equal(t, "http://localhost:8080", cfg.Storage.FS["base_url"])
	assert.NotEmpty(t, cfg.Storage.FS["signing_key"])
	assert.Equal(t, "memory", cfg.Repository.Type)
	assert.Equal(t, time.Hour, cfg.Lock.URLTTL)
	assert.Equal(t, 2*time.Minute, cfg.Lock.CallTimeout)
	assert.Equal(t, DefaultUploadWorkers, cfg.Lock.UploadWorkers)
	assert.Equal(t, "aes-256", cfg.Lock.DefaultMethod)
	assert.Equal(t, time.Hour, cfg.Retention.MaxAge)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"logging": map[string]any{"level": "debug", "format": "text"},
		"server":  map[string]any{"http_addr": ":9000", "grpc_addr": ":9001", "max_upload_bytes": 1024},
		"storage": map[string]any{
			"type": "fs",
			"fs":   map[string]any{"path": "/tmp/objs", "signing_key": "k", "base_url": "https://locks.example"},
		},
		"lock":      map[string]any{"url_ttl": "15m", "upload_workers": 8, "default_method": "AES-128"},
		"retention": map[string]any{"enabled": true, "max_age": "2h", "interval": "5m"},
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, ":9001", cfg.Server.GRPCAddr)
	assert.Equal(t, int64(1024), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "k", cfg.Storage.FS["signing_key"])
	assert.Equal(t, "https://locks.example", cfg.Storage.FS["base_url"])
	assert.Equal(t, 15*time.Minute, cfg.Lock.URLTTL)
	assert.Equal(t, 8, cfg.Lock.UploadWorkers)
	assert.Equal(t, "aes-128", cfg.Lock.DefaultMethod)
	assert.True(t, cfg.Retention.Enabled)
	assert.Equal(t, 2*time.Hour, cfg.Retention.MaxAge)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, map[string]any{"server": map[string]any{"http_addr": ":9000"}})
	t.Setenv("GOPHERLOCK_SERVER_HTTP_ADDR", ":7000")
	t.Setenv("GOPHERLOCK_LOCK_CALL_TIMEOUT", "30s")
	t.Setenv("GOPHERLOCK_STORAGE_TYPE", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.Lock.CallTimeout)
	assert.Equal(t, "memory", cfg.Storage.Type)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
	}{
		{"bad log level", map[string]any{"logging": map[string]any{"level": "loud"}}},
		{"bad storage type", map[string]any{"storage": map[string]any{"type": "ftp"}}},
		{"s3 without bucket", map[string]any{"storage": map[string]any{"type": "s3"}}},
		{"mysql without dsn", map[string]any{"repository": map[string]any{"type": "mysql"}}},
		{"bad method", map[string]any{"lock": map[string]any{"default_method": "des"}}},
		{"too many workers", map[string]any{"lock": map[string]any{"upload_workers": 500}}},
		{"interval beyond max age", map[string]any{"retention": map[string]any{"enabled": true, "max_age": "1m", "interval": "1h"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestCreateStore(t *testing.T) {
	ctx := context.Background()

	s, err := CreateStore(ctx, &StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, s)

	s, err = CreateStore(ctx, &StorageConfig{Type: "fs", FS: map[string]any{
		"path": t.TempDir(), "signing_key": "k", "base_url": "http://x",
	}})
	require.NoError(t, err)
	assert.IsType(t, &storage.FSStore{}, s)

	_, err = CreateStore(ctx, &StorageConfig{Type: "fs", FS: map[string]any{"path": t.TempDir()}})
	assert.Error(t, err)

	_, err = CreateStore(ctx, &StorageConfig{Type: "tape"})
	assert.Error(t, err)
}

func TestCreateRepository(t *testing.T) {
	ctx := context.Background()

	r, err := CreateRepository(ctx, &RepositoryConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &repository.MemoryRepo{}, r)

	r, err = CreateRepository(ctx, &RepositoryConfig{Type: "badger", Badger: map[string]any{"path": t.TempDir()}})
	require.NoError(t, err)
	assert.IsType(t, &repository.BadgerRepo{}, r)
	require.NoError(t, r.Close())

	_, err = CreateRepository(ctx, &RepositoryConfig{Type: "mysql", MySQL: map[string]any{"dsn": "::not a dsn"}})
	assert.Error(t, err)
}

package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/mtiwari1/gopherlock/internal/repository"
	"github.com/mtiwari1/gopherlock/internal/storage"
)

// CreateStore builds the object store selected by cfg.Type.
func CreateStore(ctx context.Context, cfg *StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "fs":
		return createFSStore(cfg.FS)
	case "s3":
		return createS3Store(ctx, cfg.S3)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

func createFSStore(options map[string]any) (storage.Store, error) {
	var storeCfg storage.FSStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode fs storage config: %w", err)
	}
	store, err := storage.NewFSStore(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create fs storage: %w", err)
	}
	return store, nil
}

func createS3Store(ctx context.Context, options map[string]any) (storage.Store, error) {
	var storeCfg storage.S3StoreConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &storeCfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode s3 storage config: %w", err)
	}
	store, err := storage.NewS3Store(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 storage: %w", err)
	}
	return store, nil
}

// CreateRepository builds the record repository selected by cfg.Type.
func CreateRepository(ctx context.Context, cfg *RepositoryConfig) (repository.Repository, error) {
	switch cfg.Type {
	case "memory":
		return repository.NewMemoryRepo(), nil
	case "badger":
		var repoCfg repository.BadgerConfig
		if err := mapstructure.Decode(cfg.Badger, &repoCfg); err != nil {
			return nil, fmt.Errorf("failed to decode badger repository config: %w", err)
		}
		return repository.NewBadgerRepo(repoCfg)
	case "mysql":
		var repoCfg repository.MySQLConfig
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &repoCfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(cfg.MySQL); err != nil {
			return nil, fmt.Errorf("failed to decode mysql repository config: %w", err)
		}
		return repository.OpenMySQL(ctx, repoCfg)
	default:
		return nil, fmt.Errorf("unknown repository type: %q", cfg.Type)
	}
}

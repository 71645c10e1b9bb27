package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"reel/internal/server/config"
)

// New builds the Store selected by STORAGE_BACKEND and makes sure it is usable.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.StorageBackend {
	case config.BackendFileSystem:
		store = NewFileSystemStore(cfg.StoragePath)
	case config.BackendMemory:
		log.Warn().Msg("using in-memory storage; videos are lost on restart")
		store = NewMemoryStore()
	case config.BackendMinio:
		store, err = NewMinioStore(MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		}, log)
	case config.BackendS3:
		store, err = NewS3Store(ctx, S3Options{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKeyID:  cfg.S3AccessKeyID,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		}, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, err
	}

	if err := store.EnsureReady(ctx); err != nil {
		return nil, err
	}

	log.Info().Str("backend", cfg.StorageBackend).Msg("storage initialized")
	return store, nil
}

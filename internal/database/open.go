package database

import (
	"context"
	"fmt"

	"github.com/agridoc/agridoc/internal/config"
	"go.uber.org/zap"
)

// Open creates the KV backend selected by cfg.Type
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (KV, error) {
	switch cfg.Type {
	case "", "sqlite":
		return NewSQLiteDB(cfg.Path, logger)
	case "file":
		logger.Info("File store initialized", zap.String("dir", cfg.Path))
		return NewFileStore(cfg.Path)
	case "memory":
		logger.Warn("Using in-memory store; history will not survive a restart")
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresDB(ctx, cfg.DSN, logger)
	case "s3":
		store, err := NewS3Store(S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("S3 store initialized",
			zap.String("endpoint", cfg.S3.Endpoint),
			zap.String("bucket", cfg.S3.Bucket))
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

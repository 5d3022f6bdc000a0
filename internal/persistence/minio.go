package persistence

import (
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/fixmypidge/case-service/internal/config"
)

// NewMinio connects to object storage. A missing endpoint disables photo
// storage without affecting the rest of the service.
func NewMinio(cfg config.StorageConfig, logger *zap.Logger) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		logger.Warn("STORAGE_ENDPOINT not provided; photo uploads disabled")
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("connected to object storage", zap.String("bucket", cfg.Bucket))
	return client, nil
}

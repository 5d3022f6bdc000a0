package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	apperrors "github.com/fixmypidge/case-service/pkg/util/errorutil"
)

// MediaStorage stores photo binaries and returns a durable public URL.
type MediaStorage interface {
	Store(ctx context.Context, caseID string, reader io.Reader, size int64, contentType, filename string) (string, error)
}

// MediaService uploads photo binaries to object storage.
type MediaService struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMediaService constructs the service. A nil client means storage was not
// configured; uploads then fail with a dependency error while the rest of the
// system keeps working.
func NewMediaService(client *minio.Client, bucket, publicURL string) *MediaService {
	return &MediaService{client: client, bucket: bucket, publicURL: publicURL}
}

// Store writes the object and returns its public URL.
func (s *MediaService) Store(ctx context.Context, caseID string, reader io.Reader, size int64, contentType, filename string) (string, error) {
	if s.client == nil {
		return "", apperrors.NewDependencyError(fmt.Errorf("photo storage not configured"))
	}
	objectKey := fmt.Sprintf("cases/%s/%d-%s", caseID, time.Now().UnixNano(), filename)
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", apperrors.NewDependencyError(err)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.publicURL, "/"), s.bucket, objectKey), nil
}

package minio

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/images"
	"github.com/DRSN-tech/go-recommender/pkg/jitter"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/google/uuid"
)

const (
	cleanupTimeout  = 30 * time.Second
	cleanupAttempts = 3
)

// MinioInfrastructure управляет загрузкой и очисткой изображений единиц архива в MinIO.
type MinioInfrastructure struct {
	imageRepo         usecase.ImageRepository
	bucket            string
	logger            logger.Logger
	shutdownCtx       context.Context
	wg                sync.WaitGroup
	uploadImagesLimit int
}

func NewMinioInfrastructure(imageRepo usecase.ImageRepository, cfg *cfg.MinIOCfg, logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	limit := cfg.UploadImagesLimit
	if limit <= 0 {
		limit = 1
	}
	return &MinioInfrastructure{
		imageRepo:         imageRepo,
		bucket:            cfg.BucketName,
		logger:            logger,
		shutdownCtx:       shutdownCtx,
		uploadImagesLimit: limit,
	}
}

// UploadImages загружает изображения параллельно с ограничением одновременных операций.
// При первой ошибке отменяет остальные загрузки и запускает очистку уже загруженных файлов.
func (m *MinioInfrastructure) UploadImages(ctx context.Context, req *usecase.UploadImagesReq) (*usecase.UploadImagesRes, error) {
	const op = "MinioInfrastructure.UploadImages"

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make([]string, len(req.Images))
	errs := make([]error, len(req.Images))
	sem := make(chan struct{}, m.uploadImagesLimit)

	var uploadWg sync.WaitGroup
	for i, image := range req.Images {
		uploadWg.Add(1)
		go func() {
			defer uploadWg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			key, err := m.uploadOne(ctx, req.Prefix, image)
			if err != nil {
				errs[i] = fmt.Errorf("upload %s failed: %w", image.Name, err)
				cancel()
				return
			}
			keys[i] = key
		}()
	}
	uploadWg.Wait()

	uploaded := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			uploaded = append(uploaded, key)
		}
	}

	for _, err := range errs {
		if err != nil {
			m.CleanupImages(uploaded)
			return nil, e.Wrap(op, err)
		}
	}

	return usecase.NewUploadImagesRes(uploaded), nil
}

func (m *MinioInfrastructure) uploadOne(ctx context.Context, prefix string, image domain.Image) (string, error) {
	format, err := images.Detect(image.Data)
	if err != nil {
		return "", fmt.Errorf("invalid image %s: %w", image.Name, err)
	}

	imageID := uuid.NewString()
	objKey := ObjectKey(prefix, image.Name, imageID, format)
	stored := domain.NewStoredImage(imageID, m.bucket, objKey, image.Data, format.MimeType())

	return m.imageRepo.Upload(ctx, stored)
}

// ObjectKey строит ключ объекта: <prefix>/<имя без расширения>-<id>.<ext>.
func ObjectKey(prefix, name, id string, format images.Format) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	return fmt.Sprintf("%s/%s-%s.%s", strings.Trim(prefix, "/"), base, id, format.Extension())
}

// CleanupImages запускает фоновую очистку указанных ключей MinIO
func (m *MinioInfrastructure) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}
	m.wg.Add(1)
	go m.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет объекты с экспоненциальной задержкой и jitter.
func (m *MinioInfrastructure) cleanupUploadedKeys(keys []string) {
	defer m.wg.Done()
	const op = "MinioInfrastructure.cleanupUploadedKeys"
	m.logger.Infof("%s: cleaning up %d uploaded keys", op, len(keys))

	ctx, cancel := context.WithTimeout(m.shutdownCtx, cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < cleanupAttempts; attempt++ {
			err := m.imageRepo.Delete(ctx, key)
			if err == nil {
				break
			}

			if ctx.Err() != nil {
				m.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			}
			if attempt == cleanupAttempts-1 {
				m.logger.Errorf(err, "%s: giving up on key %s", op, key)
				break
			}

			if err := jitter.Sleep(ctx, jitter.ExponentialBackoff(time.Second, 10*time.Second, attempt, jitter.DefaultJitter)); err != nil {
				m.logger.Warnf("cleanup interrupted by shutdown during backoff, key=%v", key)
				return
			}
		}
	}
}

// PurgeImages запускает фоновое удаление всех изображений бакета.
func (m *MinioInfrastructure) PurgeImages() {
	m.wg.Add(1)
	go m.purge()
}

func (m *MinioInfrastructure) purge() {
	defer m.wg.Done()
	const op = "MinioInfrastructure.purge"

	ctx, cancel := context.WithTimeout(m.shutdownCtx, cleanupTimeout)
	defer cancel()

	deleted, err := m.imageRepo.DeleteAll(ctx)
	if err != nil {
		m.logger.Errorf(err, "%s: purge stopped after %d objects", op, deleted)
		return
	}
	m.logger.Infof("%s: %d images removed from %s", op, deleted, m.bucket)
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}

package usecase

import (
	"context"

	"github.com/DRSN-tech/go-recommender/internal/domain"
)

// Vectorizer превращает текст в вектор фиксированной размерности.
// Ошибки оборачивают e.ErrEmbedding; нулевой вектор вместо ошибки не возвращается.
type Vectorizer interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Extractor извлекает карточку товара из одного или нескольких изображений.
// Ошибки оборачивают e.ErrExtraction.
type Extractor interface {
	Extract(ctx context.Context, images []domain.Image) (*domain.Candidate, error)
}

type ImagesInfra interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) (*UploadImagesRes, error)
	ImageCleaner
}

// ImageCleaner удаляет архивные изображения в фоне.
type ImageCleaner interface {
	CleanupImages(keys []string)
	// PurgeImages удаляет все архивные изображения.
	PurgeImages()
}

// FileFetcher скачивает файл по URL, не больше maxBytes байт.
type FileFetcher interface {
	Fetch(ctx context.Context, rawURL string, maxBytes int64) (*domain.Image, error)
}

// EventPublisher публикует события изменения каталога.
type EventPublisher interface {
	Publish(ctx context.Context, events []domain.ProductEvent) error
}

package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ImageRepo хранит изображения единиц архива в бакете MinIO.
type ImageRepo struct {
	mc     *minio.Client
	bucket string
}

func NewImageRepo(mc *minio.Client, bucket string) *ImageRepo {
	return &ImageRepo{
		mc:     mc,
		bucket: bucket,
	}
}

// Upload загружает изображение и возвращает ключ объекта. Бакет берётся из образа, если задан.
func (i *ImageRepo) Upload(ctx context.Context, image *domain.StoredImage) (string, error) {
	bucket := image.Bucket
	if bucket == "" {
		bucket = i.bucket
	}

	info, err := i.mc.PutObject(ctx, bucket, image.ObjectKey, bytes.NewReader(image.Bytes), image.Size, minio.PutObjectOptions{
		ContentType: image.ContentType,
		UserMetadata: map[string]string{
			"image-id": image.ID,
		},
	})
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return info.Key, nil
}

// Delete удаляет объект по ключу. Отсутствующий объект не считается ошибкой.
func (i *ImageRepo) Delete(ctx context.Context, key string) error {
	if err := i.mc.RemoveObject(ctx, i.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// DeleteAll удаляет все объекты бакета. Ошибки отдельных объектов объединяются.
func (i *ImageRepo) DeleteAll(ctx context.Context) (int, error) {
	objects := i.mc.ListObjects(ctx, i.bucket, minio.ListObjectsOptions{Recursive: true})

	var listErr error
	listed := 0
	toRemove := make(chan minio.ObjectInfo)
	listDone := make(chan struct{})
	go func() {
		defer close(listDone)
		defer close(toRemove)
		for obj := range objects {
			if obj.Err != nil {
				listErr = obj.Err
				return
			}
			select {
			case toRemove <- obj:
				listed++
			case <-ctx.Done():
				return
			}
		}
	}()

	var errs []error
	failed := 0
	for rerr := range i.mc.RemoveObjects(ctx, i.bucket, toRemove, minio.RemoveObjectsOptions{}) {
		failed++
		errs = append(errs, fmt.Errorf("%s: %w", rerr.ObjectName, rerr.Err))
	}
	<-listDone
	if listErr != nil {
		errs = append(errs, listErr)
	}
	if err := errors.Join(errs...); err != nil {
		return listed - failed, e.Wrap(whereami.WhereAmI(), err)
	}

	return listed, nil
}

package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
)

// IndexStore - хранилище записей товаров с векторным поиском. Единственный источник истины.
// Все ошибки недоступности хранилища оборачивают e.ErrIndexUnavailable; повторов внутри нет.
type IndexStore interface {
	// Upsert идемпотентен по ID.
	Upsert(ctx context.Context, product *domain.Product) error
	// Get возвращает найденные записи; отсутствующие ID в результат не попадают.
	Get(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
	// DeleteAll удаляет все записи одной операцией и возвращает их число.
	DeleteAll(ctx context.Context) (uint64, error)
	// KNNQuery возвращает не более k ближайших записей, исключая excludeIDs.
	// Порядок: score по убыванию, при равенстве ID по возрастанию.
	KNNQuery(ctx context.Context, vector []float32, k int, excludeIDs []string) ([]domain.Recommendation, error)
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.StoredImage) (string, error)
	Delete(ctx context.Context, key string) error
	// DeleteAll удаляет все объекты бакета и возвращает их число.
	DeleteAll(ctx context.Context) (int, error)
}

// RunJournalRepository хранит итоги запусков обработки архивов.
type RunJournalRepository interface {
	SaveRun(ctx context.Context, run *domain.ExtractionRun) error
	// GetRun возвращает e.ErrNotFound, если запуска нет.
	GetRun(ctx context.Context, runID string) (*domain.ExtractionRun, error)
}

// ConfirmationRepository выдаёт одноразовые токены подтверждения delete-all.
type ConfirmationRepository interface {
	Issue(ctx context.Context) (token string, ttl time.Duration, err error)
	// Consume атомарно погашает токен; false, если токена нет или он истёк.
	Consume(ctx context.Context, token string) (bool, error)
}

// Package memory реализует индекс товаров в памяти процесса с точным косинусным поиском.
package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
)

// IndexRepo хранит записи в map и ищет ближайшие полным перебором.
type IndexRepo struct {
	mu        sync.RWMutex
	products  map[string]*domain.Product
	dimension int
}

// NewIndexRepo создаёт пустой индекс. dimension <= 0 отключает проверку размерности.
func NewIndexRepo(dimension int) *IndexRepo {
	return &IndexRepo{
		products:  make(map[string]*domain.Product),
		dimension: dimension,
	}
}

// Upsert сохраняет копию записи.
func (r *IndexRepo) Upsert(ctx context.Context, product *domain.Product) error {
	const op = "memory.IndexRepo.Upsert"

	if err := ctx.Err(); err != nil {
		return e.Wrap(op, e.As(e.ErrIndexUnavailable, err))
	}
	if r.dimension > 0 && len(product.Embedding) != r.dimension {
		return e.Wrap(op, fmt.Errorf("%w: got %d, want %d", e.ErrVectorDimensionMismatch, len(product.Embedding), r.dimension))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := product.Clone()
	if existing, ok := r.products[product.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	r.products[product.ID] = stored

	return nil
}

// Get возвращает копии найденных записей.
func (r *IndexRepo) Get(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, e.Wrap("memory.IndexRepo.Get", e.As(e.ErrIndexUnavailable, err))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	found := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			found[id] = p.Clone()
		}
	}

	return found, nil
}

func (r *IndexRepo) Delete(ctx context.Context, id string) error {
	return r.DeleteMany(ctx, []string{id})
}

func (r *IndexRepo) DeleteMany(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return e.Wrap("memory.IndexRepo.DeleteMany", e.As(e.ErrIndexUnavailable, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		delete(r.products, id)
	}

	return nil
}

// DeleteAll очищает индекс и возвращает число удалённых записей.
func (r *IndexRepo) DeleteAll(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, e.Wrap("memory.IndexRepo.DeleteAll", e.As(e.ErrIndexUnavailable, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := uint64(len(r.products))
	r.products = make(map[string]*domain.Product)

	return n, nil
}

// KNNQuery возвращает до k записей с наибольшей косинусной близостью.
// При равной близости записи упорядочиваются по ID.
func (r *IndexRepo) KNNQuery(ctx context.Context, vector []float32, k int, excludeIDs []string) ([]domain.Recommendation, error) {
	const op = "memory.IndexRepo.KNNQuery"

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, e.As(e.ErrIndexUnavailable, err))
	}
	if k <= 0 {
		return []domain.Recommendation{}, nil
	}

	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	r.mu.RLock()
	scored := make([]domain.Recommendation, 0, len(r.products))
	for id, p := range r.products {
		if _, skip := excluded[id]; skip {
			continue
		}
		score, err := CosineSimilarity(vector, p.Embedding)
		if err != nil {
			r.mu.RUnlock()
			return nil, e.Wrap(op, err)
		}
		scored = append(scored, domain.Recommendation{ProductID: id, Name: p.Name, Score: score})
	}
	r.mu.RUnlock()

	domain.SortRecommendations(scored)
	if len(scored) > k {
		scored = scored[:k]
	}

	return scored, nil
}

// Len возвращает число записей.
func (r *IndexRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.products)
}

// CosineSimilarity возвращает косинусную близость двух векторов одинаковой длины.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", e.ErrVectorDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, e.ErrEmptyVector
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, e.ErrZeroVector
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

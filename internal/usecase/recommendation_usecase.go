package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/observability"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
)

// RecommendationUseCase ищет похожие товары по сохранённому вектору или по тексту запроса.
// Только чтение: индекс не изменяется, векторы между вызовами не кэшируются.
type RecommendationUseCase struct {
	indexStore IndexStore
	vectorizer Vectorizer
	cfg        *cfg.RecommendCfg
	dimension  int
	logger     logger.Logger
}

func NewRecommendationUC(indexStore IndexStore, vectorizer Vectorizer, cfg *cfg.RecommendCfg, dimension int, logger logger.Logger) *RecommendationUseCase {
	return &RecommendationUseCase{
		indexStore: indexStore,
		vectorizer: vectorizer,
		cfg:        cfg,
		dimension:  dimension,
		logger:     logger,
	}
}

// RecommendByID возвращает товары, похожие на товар с указанным ID. Сам товар в результат не попадает.
func (r *RecommendationUseCase) RecommendByID(ctx context.Context, req *RecommendByIDReq) (res *RecommendRes, err error) {
	const op = "RecommendationUseCase.RecommendByID"

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, op, attribute.String("product_id", req.ProductID), attribute.Int("k", req.K))
	defer func() {
		observability.RecommendDuration.WithLabelValues("id").Observe(time.Since(start).Seconds())
		observability.EndSpan(span, err)
	}()

	// Валидация
	id := strings.TrimSpace(req.ProductID)
	if id == "" {
		return nil, e.Wrap(op, e.ErrEmptyID)
	}
	k, err := r.resolveK(req.K)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	product, err := getProduct(ctx, r.indexStore, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if err := validateVector(product.Embedding, r.dimension); err != nil {
		return nil, e.Wrap(op, err)
	}

	items, err := r.query(ctx, product.Embedding, k, []string{product.ID})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &RecommendRes{Items: items}, nil
}

// RecommendByQuery возвращает товары, близкие к тексту запроса.
func (r *RecommendationUseCase) RecommendByQuery(ctx context.Context, req *RecommendByQueryReq) (res *RecommendRes, err error) {
	const op = "RecommendationUseCase.RecommendByQuery"

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("k", req.K))
	defer func() {
		observability.RecommendDuration.WithLabelValues("query").Observe(time.Since(start).Seconds())
		observability.EndSpan(span, err)
	}()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, e.Wrap(op, e.ErrInvalidQuery)
	}
	k, err := r.resolveK(req.K)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vector, err := embedText(ctx, r.vectorizer, text, r.dimension)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	items, err := r.query(ctx, vector, k, nil)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &RecommendRes{Items: items}, nil
}

// query выполняет KNN-запрос и повторно отфильтровывает исключённые ID.
func (r *RecommendationUseCase) query(ctx context.Context, vector []float32, k int, exclude []string) ([]domain.Recommendation, error) {
	items, err := r.indexStore.KNNQuery(ctx, vector, k, exclude)
	if err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("index").Inc()
		return nil, e.As(e.ErrIndexUnavailable, err)
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	result := make([]domain.Recommendation, 0, len(items))
	for _, item := range items {
		if _, skip := excluded[item.ProductID]; skip {
			continue
		}
		result = append(result, item)
		if len(result) == k {
			break
		}
	}

	return result, nil
}

// resolveK: 0 - значение по умолчанию, больше максимума - максимум, отрицательное - ошибка валидации.
func (r *RecommendationUseCase) resolveK(k int) (int, error) {
	switch {
	case k < 0:
		return 0, e.ErrInvalidK
	case k == 0:
		return r.cfg.DefaultK, nil
	case k > r.cfg.MaxK:
		r.logger.Debugf("requested k=%d clamped to %d", k, r.cfg.MaxK)
		return r.cfg.MaxK, nil
	default:
		return k, nil
	}
}

package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// Поля payload точки.
const (
	fieldName        = "name"
	fieldDescription = "description"
	fieldMetadata    = "metadata"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
)

// IndexRepo хранит записи товаров в коллекции Qdrant: ID точки - ID товара,
// вектор - embedding описания, остальные поля - в payload.
type IndexRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewIndexRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *IndexRepo {
	return &IndexRepo{
		client: client,
		cfg:    cfg,
	}
}

// Upsert сохраняет или заменяет запись. Ждёт применения изменения, чтобы запись сразу была видна поиску.
// Время создания существующей точки сохраняется.
func (q *IndexRepo) Upsert(ctx context.Context, product *domain.Product) error {
	existing, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Ids:            toPointIDs([]string{product.ID}),
		WithPayload:    qdrant.NewWithPayloadInclude(fieldCreatedAt),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), e.As(e.ErrIndexUnavailable, err))
	}

	payload := ToPayload(product)
	if len(existing) > 0 {
		keepCreatedAt(payload, existing[0].GetPayload())
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(product.ID),
			Vectors: qdrant.NewVectors(product.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), e.As(e.ErrIndexUnavailable, err))
	}

	return nil
}

// keepCreatedAt переносит created_at сохранённой точки в новый payload.
func keepCreatedAt(payload map[string]any, stored map[string]*qdrant.Value) {
	if createdAt := stored[fieldCreatedAt].GetIntegerValue(); createdAt > 0 {
		payload[fieldCreatedAt] = createdAt
	}
}

// Get читает записи вместе с векторами.
func (q *IndexRepo) Get(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	result := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Ids:            toPointIDs(ids),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), e.As(e.ErrIndexUnavailable, err))
	}

	for _, point := range points {
		product := FromPayload(point.GetId().GetUuid(), point.GetPayload(), denseVector(point.GetVectors()))
		result[product.ID] = product
	}

	return result, nil
}

func (q *IndexRepo) Delete(ctx context.Context, id string) error {
	return q.DeleteMany(ctx, []string{id})
}

func (q *IndexRepo) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(toPointIDs(ids)...),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), e.As(e.ErrIndexUnavailable, err))
	}

	return nil
}

// DeleteAll удаляет все точки коллекции одним запросом по пустому фильтру. Коллекция сохраняется.
func (q *IndexRepo) DeleteAll(ctx context.Context) (uint64, error) {
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), e.As(e.ErrIndexUnavailable, err))
	}
	if count == 0 {
		return 0, nil
	}

	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(&qdrant.Filter{}),
	})
	if err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), e.As(e.ErrIndexUnavailable, err))
	}

	return count, nil
}

// KNNQuery ищет ближайшие точки по косинусной метрике коллекции.
// Исключаемые ID отфильтровываются на стороне Qdrant. Qdrant не упорядочивает равные score по ID,
// поэтому запрашивается на одну точку больше и, пока на границе k остаются равные score,
// лимит расширяется до maxTieLimit.
func (q *IndexRepo) KNNQuery(ctx context.Context, vector []float32, k int, excludeIDs []string) ([]domain.Recommendation, error) {
	if k <= 0 {
		return []domain.Recommendation{}, nil
	}

	var filter *qdrant.Filter
	if len(excludeIDs) > 0 {
		filter = &qdrant.Filter{
			MustNot: []*qdrant.Condition{qdrant.NewHasID(toPointIDs(excludeIDs)...)},
		}
	}

	limit := k + 1
	for {
		points, err := q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: q.cfg.QdrantCollectionName,
			Query:          qdrant.NewQuery(vector...),
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayloadInclude(fieldName),
		})
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), e.As(e.ErrIndexUnavailable, err))
		}

		items := toRecommendations(points)
		domain.SortRecommendations(items)
		if !tieAtBoundary(items, k, limit) || limit >= k+maxTieLimit {
			return topK(items, k), nil
		}
		limit = min(limit*2, k+maxTieLimit)
	}
}

// maxTieLimit ограничивает число точек сверх k, запрашиваемых ради равных score.
const maxTieLimit = 256

func toRecommendations(points []*qdrant.ScoredPoint) []domain.Recommendation {
	items := make([]domain.Recommendation, 0, len(points))
	for _, point := range points {
		items = append(items, domain.Recommendation{
			ProductID: point.GetId().GetUuid(),
			Name:      point.GetPayload()[fieldName].GetStringValue(),
			Score:     point.GetScore(),
		})
	}
	return items
}

// tieAtBoundary сообщает, что ответ заполнил лимит и последняя точка равна по score k-й:
// за пределами лимита могут остаться точки с тем же score и меньшим ID.
func tieAtBoundary(sorted []domain.Recommendation, k, limit int) bool {
	if len(sorted) < limit || len(sorted) <= k {
		return false
	}
	return sorted[len(sorted)-1].Score == sorted[k-1].Score
}

func topK(sorted []domain.Recommendation, k int) []domain.Recommendation {
	if len(sorted) > k {
		return sorted[:k]
	}
	return sorted
}

// ToPayload раскладывает поля товара в payload точки.
func ToPayload(p *domain.Product) map[string]any {
	metadata := make(map[string]any, len(p.Metadata))
	for k, v := range p.Metadata {
		metadata[k] = v
	}

	return map[string]any{
		fieldName:        p.Name,
		fieldDescription: p.Description,
		fieldMetadata:    metadata,
		fieldCreatedAt:   p.CreatedAt.UnixMilli(),
		fieldUpdatedAt:   p.UpdatedAt.UnixMilli(),
	}
}

// FromPayload собирает товар из ID, payload и вектора точки.
func FromPayload(id string, payload map[string]*qdrant.Value, vector []float32) *domain.Product {
	var metadata domain.Metadata
	if fields := payload[fieldMetadata].GetStructValue().GetFields(); len(fields) > 0 {
		metadata = make(domain.Metadata, len(fields))
		for k, v := range fields {
			metadata[k] = valueString(v)
		}
	}

	return &domain.Product{
		ID:          id,
		Name:        payload[fieldName].GetStringValue(),
		Description: payload[fieldDescription].GetStringValue(),
		Embedding:   vector,
		Metadata:    metadata,
		CreatedAt:   time.UnixMilli(payload[fieldCreatedAt].GetIntegerValue()).UTC(),
		UpdatedAt:   time.UnixMilli(payload[fieldUpdatedAt].GetIntegerValue()).UTC(),
	}
}

// valueString приводит скалярное значение payload к строке.
func valueString(v *qdrant.Value) string {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return fmt.Sprint(kind.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return fmt.Sprint(kind.DoubleValue)
	case *qdrant.Value_BoolValue:
		return fmt.Sprint(kind.BoolValue)
	default:
		return ""
	}
}

// denseVector извлекает безымянный плотный вектор из ответа.
func denseVector(v *qdrant.VectorsOutput) []float32 {
	out := v.GetVector()
	if dense := out.GetDense().GetData(); len(dense) > 0 {
		return dense
	}
	return out.GetData()
}

func toPointIDs(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		out = append(out, qdrant.NewIDUUID(id))
	}
	return out
}

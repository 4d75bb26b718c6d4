package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/observability"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const publishTimeout = 5 * time.Second

// IngestionUseCase валидирует записи, вычисляет векторы и пишет их в индекс.
// Каждая пара «вектор → запись» выполняется как один шаг: успех возвращается только после подтверждённой записи.
type IngestionUseCase struct {
	indexStore    IndexStore
	vectorizer    Vectorizer
	publisher     EventPublisher         // nil - события не публикуются
	confirmations ConfirmationRepository // nil - delete-all подтверждается только флагом
	images        ImageCleaner           // nil - архивные изображения не ведутся
	cfg           *cfg.IngestCfg
	dimension     int
	logger        logger.Logger
}

func NewIngestionUC(
	indexStore IndexStore,
	vectorizer Vectorizer,
	publisher EventPublisher,
	confirmations ConfirmationRepository,
	images ImageCleaner,
	cfg *cfg.IngestCfg,
	dimension int,
	logger logger.Logger,
) *IngestionUseCase {
	return &IngestionUseCase{
		indexStore:    indexStore,
		vectorizer:    vectorizer,
		publisher:     publisher,
		confirmations: confirmations,
		images:        images,
		cfg:           cfg,
		dimension:     dimension,
		logger:        logger,
	}
}

// BulkInsert загружает записи с ограниченной конкурентностью.
// Ошибка одной записи не прерывает остальные; исходы возвращаются в порядке входа.
func (u *IngestionUseCase) BulkInsert(ctx context.Context, req *BulkInsertReq) (res *BulkInsertRes, err error) {
	const op = "IngestionUseCase.BulkInsert"

	ctx, span := observability.StartSpan(ctx, op, attribute.Int("records", len(req.Products)))
	defer func() { observability.EndSpan(span, err) }()

	previous := u.previousRecords(ctx, req.Products)
	outcomes := make([]ItemOutcome, len(req.Products))

	var g errgroup.Group
	g.SetLimit(u.cfg.MaxConcurrent)
	for i, input := range req.Products {
		g.Go(func() error {
			outcomes[i] = u.insertOne(ctx, i, input)
			return nil
		})
	}
	_ = g.Wait()

	events := make([]domain.ProductEvent, 0, len(outcomes))
	stale := make([]string, 0)
	for _, o := range outcomes {
		observability.IngestOutcomesTotal.WithLabelValues("insert", resultLabel(o.Err)).Inc()
		if o.Succeeded() {
			events = append(events, newProductEvent(domain.EventUpsert, o.ID, 1))
			stale = append(stale, domain.StaleImageKeys(previous[o.ID], o.Product)...)
		} else {
			u.logger.Debugf("%s: record %d rejected: %v", op, o.Position, o.Err)
		}
	}
	u.publish(ctx, events)
	u.cleanupImages(stale)

	res = &BulkInsertRes{Outcomes: outcomes}
	succeeded, failed := res.Counts()
	span.SetAttributes(attribute.Int("succeeded", succeeded), attribute.Int("failed", failed))
	u.logger.Infof("%s: processed %d records, succeeded=%d failed=%d", op, len(outcomes), succeeded, failed)

	return res, nil
}

// previousRecords читает записи, которые перезапишет пакет, чтобы затем удалить их устаревшие изображения.
// Ошибка чтения только логируется: загрузка от неё не зависит.
func (u *IngestionUseCase) previousRecords(ctx context.Context, inputs []NewProductInput) map[string]*domain.Product {
	if u.images == nil {
		return nil
	}

	ids := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input.Code) != "" {
			ids = append(ids, domain.NewProductID(input.Code))
		}
	}
	if len(ids) == 0 {
		return nil
	}

	found, err := u.indexStore.Get(ctx, ids)
	if err != nil {
		u.logger.Warnf("failed to read records replaced by bulk insert, their images stay: %v", err)
		return nil
	}
	return found
}

// insertOne валидирует, векторизует и сохраняет одну запись.
func (u *IngestionUseCase) insertOne(ctx context.Context, position int, input NewProductInput) ItemOutcome {
	const op = "IngestionUseCase.insertOne"

	id := domain.NewProductID(input.Code)

	// Валидация до любых внешних вызовов
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return failureOutcome(position, id, e.Wrap(op, e.ErrEmptyDescription))
	}

	vector, err := embedText(ctx, u.vectorizer, description, u.dimension)
	if err != nil {
		return failureOutcome(position, id, e.Wrap(op, err))
	}

	product := domain.NewProduct(id, domain.DisplayName(input.Name, description), description, vector, input.Metadata.Clone())
	if err := u.indexStore.Upsert(ctx, product); err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("index").Inc()
		return failureOutcome(position, id, e.Wrap(op, e.As(e.ErrIndexUnavailable, err)))
	}

	return successOutcome(position, product)
}

// UpdateProduct частично обновляет запись. Если передано описание, вектор пересчитывается
// до записи, поэтому сохранённый вектор всегда соответствует сохранённому описанию.
func (u *IngestionUseCase) UpdateProduct(ctx context.Context, req *UpdateProductReq) (res *UpdateProductRes, err error) {
	const op = "IngestionUseCase.UpdateProduct"

	ctx, span := observability.StartSpan(ctx, op, attribute.String("product_id", req.ID))
	defer func() {
		observability.IngestOutcomesTotal.WithLabelValues("update", resultLabel(err)).Inc()
		observability.EndSpan(span, err)
	}()

	// Валидация
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, e.Wrap(op, e.ErrEmptyID)
	}
	var description string
	if req.Description != nil {
		description = strings.TrimSpace(*req.Description)
		if description == "" {
			return nil, e.Wrap(op, e.ErrEmptyDescription)
		}
	}

	existing, err := u.getOne(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	updated := existing.Clone()
	recomputed := false
	if req.Description != nil {
		vector, err := embedText(ctx, u.vectorizer, description, u.dimension)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		updated.Description = description
		updated.Embedding = vector
		recomputed = true
	}
	if req.Name != nil {
		updated.Name = domain.DisplayName(*req.Name, updated.Description)
	}
	if req.Metadata != nil {
		updated.Metadata = req.Metadata.Clone()
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := u.indexStore.Upsert(ctx, updated); err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("index").Inc()
		return nil, e.Wrap(op, e.As(e.ErrIndexUnavailable, err))
	}

	u.publish(ctx, []domain.ProductEvent{newProductEvent(domain.EventUpsert, updated.ID, 1)})
	u.cleanupImages(domain.StaleImageKeys(existing, updated))
	u.logger.Infof("%s: product %s updated, embedding recomputed: %t", op, updated.ID, recomputed)

	return &UpdateProductRes{Product: updated, EmbeddingRecomputed: recomputed}, nil
}

// DeleteProduct удаляет одну запись; неизвестный ID - e.ErrNotFound.
func (u *IngestionUseCase) DeleteProduct(ctx context.Context, id string) (err error) {
	const op = "IngestionUseCase.DeleteProduct"

	ctx, span := observability.StartSpan(ctx, op, attribute.String("product_id", id))
	defer func() {
		observability.IngestOutcomesTotal.WithLabelValues("delete", resultLabel(err)).Inc()
		observability.EndSpan(span, err)
	}()

	id = strings.TrimSpace(id)
	if id == "" {
		return e.Wrap(op, e.ErrEmptyID)
	}

	existing, err := u.getOne(ctx, id)
	if err != nil {
		return e.Wrap(op, err)
	}

	if err := u.indexStore.Delete(ctx, existing.ID); err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("index").Inc()
		return e.Wrap(op, e.As(e.ErrIndexUnavailable, err))
	}

	u.publish(ctx, []domain.ProductEvent{newProductEvent(domain.EventDelete, existing.ID, 1)})
	u.cleanupImages(existing.ImageKeys())
	return nil
}

// DeleteProducts удаляет набор записей. Неизвестные ID дают e.ErrNotFound в своих исходах,
// остальные удаляются одной операцией.
func (u *IngestionUseCase) DeleteProducts(ctx context.Context, req *DeleteProductsReq) (res *DeleteProductsRes, err error) {
	const op = "IngestionUseCase.DeleteProducts"

	ctx, span := observability.StartSpan(ctx, op, attribute.Int("ids", len(req.IDs)))
	defer func() { observability.EndSpan(span, err) }()

	outcomes := make([]DeleteOutcome, len(req.IDs))
	lookup := make([]string, 0, len(req.IDs))
	seen := make(map[string]struct{}, len(req.IDs))

	for i, raw := range req.IDs {
		id := strings.TrimSpace(raw)
		outcomes[i] = DeleteOutcome{Position: i, ID: id}

		if id == "" {
			outcomes[i].Err = e.Wrap(op, e.ErrEmptyID)
			continue
		}
		canonical, ok := normalizeID(id)
		if !ok {
			outcomes[i].Err = e.Wrap(op, fmt.Errorf("product %s: %w", id, e.ErrNotFound))
			continue
		}
		outcomes[i].ID = canonical
		if _, dup := seen[canonical]; !dup {
			seen[canonical] = struct{}{}
			lookup = append(lookup, canonical)
		}
	}

	if len(lookup) > 0 {
		u.deleteExisting(ctx, op, lookup, outcomes)
	}

	events := make([]domain.ProductEvent, 0, len(lookup))
	deleted := make(map[string]struct{}, len(lookup))
	for _, o := range outcomes {
		observability.IngestOutcomesTotal.WithLabelValues("delete", resultLabel(o.Err)).Inc()
		if o.Err != nil {
			continue
		}
		if _, done := deleted[o.ID]; !done {
			deleted[o.ID] = struct{}{}
			events = append(events, newProductEvent(domain.EventDelete, o.ID, 1))
		}
	}
	u.publish(ctx, events)

	u.logger.Infof("%s: requested=%d deleted=%d", op, len(req.IDs), len(deleted))
	return &DeleteProductsRes{Outcomes: outcomes}, nil
}

// deleteExisting проставляет исходы для ещё не завершённых позиций: NotFound для отсутствующих,
// ошибку индекса для всех найденных, если удаление не удалось.
func (u *IngestionUseCase) deleteExisting(ctx context.Context, op string, ids []string, outcomes []DeleteOutcome) {
	found, err := u.indexStore.Get(ctx, ids)
	if err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("index").Inc()
		failPending(outcomes, e.Wrap(op, e.As(e.ErrIndexUnavailable, err)))
		return
	}

	toDelete := make([]string, 0, len(found))
	for _, id := range ids {
		if _, ok := found[id]; ok {
			toDelete = append(toDelete, id)
		}
	}

	for i := range outcomes {
		if outcomes[i].Err != nil {
			continue
		}
		if _, ok := found[outcomes[i].ID]; !ok {
			outcomes[i].Err = e.Wrap(op, fmt.Errorf("product %s: %w", outcomes[i].ID, e.ErrNotFound))
		}
	}

	if len(toDelete) == 0 {
		return
	}

	if err := u.indexStore.DeleteMany(ctx, toDelete); err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("index").Inc()
		failPending(outcomes, e.Wrap(op, e.As(e.ErrIndexUnavailable, err)))
		return
	}

	keys := make([]string, 0)
	for _, id := range toDelete {
		keys = append(keys, found[id].ImageKeys()...)
	}
	u.cleanupImages(keys)
}

func failPending(outcomes []DeleteOutcome, err error) {
	for i := range outcomes {
		if outcomes[i].Err == nil {
			outcomes[i].Err = err
		}
	}
}

// IssueDeleteAllToken выдаёт одноразовый токен подтверждения delete-all.
func (u *IngestionUseCase) IssueDeleteAllToken(ctx context.Context) (*DeleteAllTokenRes, error) {
	const op = "IngestionUseCase.IssueDeleteAllToken"

	if u.confirmations == nil {
		return nil, e.Wrap(op, e.ErrConfirmationUnavailable)
	}

	token, ttl, err := u.confirmations.Issue(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	u.logger.Warnf("%s: delete-all confirmation token issued, expires in %s", op, ttl)
	return &DeleteAllTokenRes{Token: token, ExpiresIn: ttl}, nil
}

// DeleteAll безвозвратно очищает индекс. Требует явного подтверждения;
// при настроенном хранилище подтверждений дополнительно требует действующий токен.
// Пустой индекс - успех с нулём удалённых записей.
func (u *IngestionUseCase) DeleteAll(ctx context.Context, req *DeleteAllReq) (res *DeleteAllRes, err error) {
	const op = "IngestionUseCase.DeleteAll"

	ctx, span := observability.StartSpan(ctx, op)
	defer func() { observability.EndSpan(span, err) }()

	if !req.Confirm {
		return nil, e.Wrap(op, e.ErrDeleteAllNotConfirmed)
	}

	if u.confirmations != nil {
		token := strings.TrimSpace(req.Token)
		if token == "" {
			return nil, e.Wrap(op, e.ErrInvalidConfirmationToken)
		}

		ok, err := u.confirmations.Consume(ctx, token)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		if !ok {
			return nil, e.Wrap(op, e.ErrInvalidConfirmationToken)
		}
	}

	deleted, err := u.indexStore.DeleteAll(ctx)
	if err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("index").Inc()
		return nil, e.Wrap(op, e.As(e.ErrIndexUnavailable, err))
	}

	u.publish(ctx, []domain.ProductEvent{newProductEvent(domain.EventDeleteAll, "", deleted)})
	if u.images != nil {
		u.images.PurgeImages()
	}
	u.logger.Warnf("%s: index cleared, %d records deleted", op, deleted)

	return &DeleteAllRes{Deleted: deleted}, nil
}

// getOne читает одну запись из индекса.
func (u *IngestionUseCase) getOne(ctx context.Context, id string) (*domain.Product, error) {
	return getProduct(ctx, u.indexStore, id)
}

// cleanupImages удаляет изображения, на которые больше не ссылается ни одна запись.
func (u *IngestionUseCase) cleanupImages(keys []string) {
	if u.images != nil && len(keys) > 0 {
		u.images.CleanupImages(keys)
	}
}

// publish отправляет события после подтверждённой записи. Ошибки только логируются.
func (u *IngestionUseCase) publish(ctx context.Context, events []domain.ProductEvent) {
	if u.publisher == nil || len(events) == 0 {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := u.publisher.Publish(pubCtx, events); err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("events").Inc()
		u.logger.Warnf("failed to publish %d product events: %v", len(events), err)
	}
}

func newProductEvent(eventType domain.EventType, productID string, affected uint64) domain.ProductEvent {
	return domain.ProductEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		ProductID:  productID,
		Affected:   affected,
		OccurredAt: time.Now().UTC(),
	}
}

// getProduct возвращает запись по ID или e.ErrNotFound.
func getProduct(ctx context.Context, store IndexStore, id string) (*domain.Product, error) {
	canonical, ok := normalizeID(id)
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, e.ErrNotFound)
	}

	found, err := store.Get(ctx, []string{canonical})
	if err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("index").Inc()
		return nil, e.As(e.ErrIndexUnavailable, err)
	}

	product, ok := found[canonical]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", canonical, e.ErrNotFound)
	}

	return product, nil
}

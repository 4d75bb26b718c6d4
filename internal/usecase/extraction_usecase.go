package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/observability"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/images"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	journalTimeout       = 5 * time.Second
	defaultIngestTimeout = 2 * time.Minute
)

// ExtractionUseCase обрабатывает архивы с папками товаров: извлекает карточки из изображений
// и передаёт успешные в массовую загрузку.
type ExtractionUseCase struct {
	extractor   Extractor
	ingestion   IngestionUC
	imagesInfra ImagesInfra          // nil - изображения не архивируются
	journal     RunJournalRepository // nil - запуски не журналируются
	fetcher     FileFetcher          // nil - загрузка по URL недоступна
	cfg         *cfg.ExtractionCfg
	logger      logger.Logger
}

func NewExtractionUC(
	extractor Extractor,
	ingestion IngestionUC,
	imagesInfra ImagesInfra,
	journal RunJournalRepository,
	fetcher FileFetcher,
	cfg *cfg.ExtractionCfg,
	logger logger.Logger,
) *ExtractionUseCase {
	return &ExtractionUseCase{
		extractor:   extractor,
		ingestion:   ingestion,
		imagesInfra: imagesInfra,
		journal:     journal,
		fetcher:     fetcher,
		cfg:         cfg,
		logger:      logger,
	}
}

// unitOutcome - результат одной единицы после извлечения. Каждая горутина пишет только свой.
type unitOutcome struct {
	unit      domain.ExtractionUnit
	state     domain.UnitState
	candidate *domain.Candidate
	imageKeys []string
	err       error
}

// ExtractImage извлекает карточку товара без сохранения в индекс. Источник - одно изображение,
// zip с изображениями одного товара или файл по URL.
func (u *ExtractionUseCase) ExtractImage(ctx context.Context, req *ExtractImageReq) (res *ExtractImageRes, err error) {
	const op = "ExtractionUseCase.ExtractImage"

	ctx, span := observability.StartSpan(ctx, op, attribute.String("file", req.Image.Name))
	defer func() { observability.EndSpan(span, err) }()

	source, err := u.resolveSource(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	payload, format, err := u.sourceImages(source)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	span.SetAttributes(attribute.Int("images", len(payload)))

	if u.cfg.UnitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.UnitTimeout)
		defer cancel()
	}

	candidate, err := u.extractor.Extract(ctx, payload)
	if err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("extractor").Inc()
		return nil, e.Wrap(op, e.As(e.ErrExtraction, err))
	}
	if candidate == nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: empty extractor response", e.ErrExtraction))
	}
	if candidate.ImageFormat == "" {
		candidate.ImageFormat = string(format)
	}

	return &ExtractImageRes{Candidate: *candidate}, nil
}

// resolveSource возвращает загруженный файл или скачивает его по URL.
func (u *ExtractionUseCase) resolveSource(ctx context.Context, req *ExtractImageReq) (*domain.Image, error) {
	if len(req.Image.Data) > 0 {
		return &req.Image, nil
	}

	fileURL := strings.TrimSpace(req.FileURL)
	if fileURL == "" {
		return nil, fmt.Errorf("%w: image file or file_url is required", e.ErrBadRequest)
	}
	if u.fetcher == nil {
		return nil, fmt.Errorf("%w: file_url is not supported", e.ErrBadRequest)
	}

	img, err := u.fetcher.Fetch(ctx, fileURL, max(u.cfg.MaxImageBytes, u.cfg.MaxArchiveBytes))
	if err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("file_fetch").Inc()
		return nil, err
	}

	return img, nil
}

// sourceImages раскрывает zip в набор изображений и готовит каждое к отправке.
// Возвращает формат первого изображения в исходном виде.
func (u *ExtractionUseCase) sourceImages(source *domain.Image) ([]domain.Image, images.Format, error) {
	var files []domain.Image
	switch {
	case images.IsZip(source.Data):
		if u.cfg.MaxArchiveBytes > 0 && int64(len(source.Data)) > u.cfg.MaxArchiveBytes {
			return nil, "", fmt.Errorf("%w: archive exceeds %d bytes", e.ErrFileTooLarge, u.cfg.MaxArchiveBytes)
		}
		unpacked, err := UnpackImages(source.Data, ArchiveLimits{
			MaxEntries:       u.cfg.MaxEntries,
			MaxImageBytes:    u.cfg.MaxImageBytes,
			MaxImagesPerUnit: u.cfg.MaxImagesPerUnit,
		})
		if err != nil {
			return nil, "", err
		}
		files = unpacked
	default:
		if u.cfg.MaxImageBytes > 0 && int64(len(source.Data)) > u.cfg.MaxImageBytes {
			return nil, "", fmt.Errorf("%w: image exceeds %d bytes", e.ErrFileTooLarge, u.cfg.MaxImageBytes)
		}
		files = []domain.Image{*source}
	}

	return providerPayload(files)
}

// providerPayload проверяет изображения целиком и перекодирует неподдерживаемые провайдером форматы.
func providerPayload(files []domain.Image) ([]domain.Image, images.Format, error) {
	payload := make([]domain.Image, len(files))
	var first images.Format
	for i, img := range files {
		data, sent, err := images.ForProvider(img.Data)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", img.Name, err)
		}
		if i == 0 {
			first, _ = images.Detect(img.Data)
		}
		payload[i] = domain.Image{Name: img.Name, Data: data, MimeType: sent.MimeType()}
	}
	return payload, first, nil
}

// ProcessArchive распаковывает архив, параллельно (с ограничением) извлекает карточки по папкам,
// загружает успешные одним пакетом и возвращает три непересекающихся набора исходов.
// Отмена контекста помечает незавершённые единицы как FAILED, отчёт возвращается всё равно.
func (u *ExtractionUseCase) ProcessArchive(ctx context.Context, req *ProcessArchiveReq) (report *ArchiveReport, err error) {
	const op = "ExtractionUseCase.ProcessArchive"

	startedAt := time.Now().UTC()
	ctx, span := observability.StartSpan(ctx, op, attribute.String("archive", req.Name), attribute.Int("bytes", len(req.Archive)))
	defer func() {
		observability.ExtractionRunDuration.Observe(time.Since(startedAt).Seconds())
		observability.EndSpan(span, err)
	}()

	if len(req.Archive) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: empty payload", e.ErrInvalidArchive))
	}
	if u.cfg.MaxArchiveBytes > 0 && int64(len(req.Archive)) > u.cfg.MaxArchiveBytes {
		return nil, e.Wrap(op, fmt.Errorf("%w: archive exceeds %d bytes", e.ErrInvalidArchive, u.cfg.MaxArchiveBytes))
	}

	units, err := UnpackArchive(req.Archive, ArchiveLimits{
		MaxEntries:       u.cfg.MaxEntries,
		MaxImageBytes:    u.cfg.MaxImageBytes,
		MaxImagesPerUnit: u.cfg.MaxImagesPerUnit,
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	runID := uuid.NewString()
	span.SetAttributes(attribute.String("run_id", runID), attribute.Int("units", len(units)))
	u.logger.Infof("%s: run %s started, archive=%q units=%d", op, runID, req.Name, len(units))

	outcomes := u.dispatch(ctx, runID, units)

	report = u.aggregate(ctx, runID, req.Name, outcomes)
	report.StartedAt = startedAt
	report.FinishedAt = time.Now().UTC()

	u.saveRun(ctx, req.Name, report)
	u.logger.Infof(
		"%s: run %s finished, units=%d inserted=%d extraction_failures=%d ingestion_failures=%d",
		op, runID, report.Units, len(report.Inserted), len(report.ExtractionFailures), len(report.IngestionFailures),
	)

	return report, nil
}

// GetRun возвращает сохранённый итог запуска.
func (u *ExtractionUseCase) GetRun(ctx context.Context, runID string) (*domain.ExtractionRun, error) {
	const op = "ExtractionUseCase.GetRun"

	id, ok := normalizeID(strings.TrimSpace(runID))
	if !ok || u.journal == nil {
		return nil, e.Wrap(op, fmt.Errorf("run %s: %w", runID, e.ErrNotFound))
	}

	run, err := u.journal.GetRun(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return run, nil
}

// dispatch запускает извлечение всех единиц с ограничением конкурентности и ждёт завершения всех.
// Ошибка одной единицы не отменяет остальные.
func (u *ExtractionUseCase) dispatch(ctx context.Context, runID string, units []domain.ExtractionUnit) []unitOutcome {
	outcomes := make([]unitOutcome, len(units))

	var g errgroup.Group
	g.SetLimit(u.cfg.MaxConcurrent)
	for i, unit := range units {
		g.Go(func() error {
			outcomes[i] = u.extractUnit(ctx, runID, unit)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// extractUnit проводит единицу через DISPATCHED → EXTRACTED | FAILED.
func (u *ExtractionUseCase) extractUnit(ctx context.Context, runID string, unit domain.ExtractionUnit) (out unitOutcome) {
	const op = "ExtractionUseCase.extractUnit"

	out = unitOutcome{unit: unit, state: domain.UnitDispatched}
	fail := func(err error) unitOutcome {
		out.state = domain.UnitFailed
		out.err = err
		return out
	}

	// Единица, до которой очередь дошла после дедлайна, не отправляется
	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("%w: %v", e.ErrUnitTimeout, err))
	}
	if len(unit.Problems) > 0 {
		return fail(fmt.Errorf("%w: %s", e.ErrMalformedImage, strings.Join(unit.Problems, "; ")))
	}
	if len(unit.Images) == 0 {
		return fail(e.ErrNoImages)
	}

	payload, format, err := providerPayload(unit.Images)
	if err != nil {
		return fail(err)
	}

	unitCtx := ctx
	if u.cfg.UnitTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, u.cfg.UnitTimeout)
		defer cancel()
	}

	spanCtx, span := observability.StartSpan(unitCtx, op, attribute.String("unit", unit.Ref), attribute.Int("images", len(payload)))
	defer func() { observability.EndSpan(span, out.err) }()

	candidate, err := u.extractor.Extract(spanCtx, payload)
	if err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("extractor").Inc()
		if ctxErr := unitCtx.Err(); ctxErr != nil {
			return fail(fmt.Errorf("%w: %v", e.ErrUnitTimeout, errors.Join(ctxErr, err)))
		}
		return fail(e.As(e.ErrExtraction, err))
	}
	if candidate == nil {
		return fail(fmt.Errorf("%w: empty extractor response", e.ErrExtraction))
	}
	if candidate.ImageFormat == "" {
		candidate.ImageFormat = string(format)
	}

	out.state = domain.UnitExtracted
	out.candidate = candidate
	out.imageKeys = u.archiveImages(ctx, runID, unit.Ref, unit.Images)

	return out
}

// archiveImages сохраняет исходные изображения извлечённой единицы. Ошибка не влияет на исход единицы.
// Единица уже завершилась, поэтому загрузка не зависит от дедлайна вызывающего.
func (u *ExtractionUseCase) archiveImages(ctx context.Context, runID, ref string, files []domain.Image) []string {
	if u.imagesInfra == nil {
		return nil
	}

	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.ingestTimeout())
	defer cancel()

	res, err := u.imagesInfra.UploadImages(uploadCtx, &UploadImagesReq{Prefix: runID + "/" + ref, Images: files})
	if err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("object_storage").Inc()
		u.logger.Warnf("failed to archive images of unit %q: %v", ref, err)
		return nil
	}

	return res.ImagesKeys
}

// aggregate передаёт извлечённые карточки в массовую загрузку и раскладывает исходы по трём наборам.
func (u *ExtractionUseCase) aggregate(ctx context.Context, runID, archiveName string, outcomes []unitOutcome) *ArchiveReport {
	const op = "ExtractionUseCase.aggregate"

	report := &ArchiveReport{
		RunID:              runID,
		Units:              len(outcomes),
		Inserted:           make([]domain.Product, 0),
		ExtractionFailures: make([]domain.FailureEntry, 0),
		IngestionFailures:  make([]domain.FailureEntry, 0),
	}

	inputs := make([]NewProductInput, 0, len(outcomes))
	extracted := make([]unitOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.state != domain.UnitExtracted {
			report.ExtractionFailures = append(report.ExtractionFailures, newFailureEntry(o.unit.Ref, domain.StageExtraction, o.err))
			observability.ExtractionUnitsTotal.WithLabelValues("extraction_failed").Inc()
			continue
		}
		inputs = append(inputs, toProductInput(archiveName, o))
		extracted = append(extracted, o)
	}

	if len(inputs) == 0 {
		return report
	}

	// извлечённые единицы уже завершились: дедлайн вызывающего их исход не меняет
	ingestCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.ingestTimeout())
	defer cancel()

	bulk, err := u.ingestion.BulkInsert(ingestCtx, NewBulkInsertReq(inputs))
	if err != nil {
		u.logger.Errorf(err, "%s: bulk insert of run %s failed", op, runID)
		for _, o := range extracted {
			report.IngestionFailures = append(report.IngestionFailures, newFailureEntry(o.unit.Ref, domain.StageIngestion, err))
			observability.ExtractionUnitsTotal.WithLabelValues("ingestion_failed").Inc()
			u.cleanupImages(o.imageKeys)
		}
		return report
	}

	for i, outcome := range bulk.Outcomes {
		o := extracted[i]
		if outcome.Succeeded() {
			report.Inserted = append(report.Inserted, *outcome.Product)
			observability.ExtractionUnitsTotal.WithLabelValues("inserted").Inc()
			continue
		}
		report.IngestionFailures = append(report.IngestionFailures, newFailureEntry(o.unit.Ref, domain.StageIngestion, outcome.Err))
		observability.ExtractionUnitsTotal.WithLabelValues("ingestion_failed").Inc()
		u.cleanupImages(o.imageKeys)
	}

	return report
}

func (u *ExtractionUseCase) ingestTimeout() time.Duration {
	if u.cfg.IngestTimeout > 0 {
		return u.cfg.IngestTimeout
	}
	return defaultIngestTimeout
}

func (u *ExtractionUseCase) cleanupImages(keys []string) {
	if u.imagesInfra != nil && len(keys) > 0 {
		u.imagesInfra.CleanupImages(keys)
	}
}

// saveRun записывает итог запуска в журнал. Ошибка журнала не влияет на результат.
func (u *ExtractionUseCase) saveRun(ctx context.Context, archiveName string, report *ArchiveReport) {
	if u.journal == nil {
		return
	}

	ids := make([]string, 0, len(report.Inserted))
	for _, p := range report.Inserted {
		ids = append(ids, p.ID)
	}

	run := &domain.ExtractionRun{
		ID:                 report.RunID,
		ArchiveName:        archiveName,
		Units:              report.Units,
		InsertedIDs:        ids,
		ExtractionFailures: report.ExtractionFailures,
		IngestionFailures:  report.IngestionFailures,
		StartedAt:          report.StartedAt,
		FinishedAt:         report.FinishedAt,
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	if err := u.journal.SaveRun(saveCtx, run); err != nil {
		u.logger.Warnf("failed to journal run %s: %v", report.RunID, err)
	}
}

// toProductInput превращает извлечённую карточку во входную запись загрузки.
func toProductInput(archiveName string, o unitOutcome) NewProductInput {
	c := o.candidate

	metadata := domain.Metadata{
		"source_folder": o.unit.Ref,
		"image_files":   strings.Join(imageNames(o.unit), ","),
		"image_format":  c.ImageFormat,
	}
	if archiveName != "" {
		metadata["source_archive"] = archiveName
	}
	if code := strings.TrimSpace(c.Code); code != "" {
		metadata["product_code"] = code
	}
	if len(o.imageKeys) > 0 {
		metadata[domain.MetadataImageKeys] = strings.Join(o.imageKeys, ",")
	}

	return NewProductInput{
		Code:        provisionalCode(archiveName, o.unit.Ref),
		Name:        c.Name,
		Description: c.Description(),
		Metadata:    metadata,
	}
}

// provisionalCode выводит код записи из имени папки (и имени архива, если оно известно),
// чтобы повторная обработка того же архива перезаписывала те же записи.
func provisionalCode(archiveName, ref string) string {
	if archiveName == "" {
		return "archive-unit:" + ref
	}
	return "archive-unit:" + archiveName + "/" + ref
}

func newFailureEntry(ref string, stage domain.FailureStage, err error) domain.FailureEntry {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return domain.FailureEntry{
		UnitRef: ref,
		Stage:   stage,
		Reason:  reason,
		Kind:    e.Kind(err),
	}
}

package usecase

import (
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
)

// INGESTION

// NewProductInput - входная запись массовой загрузки.
type NewProductInput struct {
	Code        string // внешний код товара; если задан, ID выводится из него
	Name        string
	Description string
	Metadata    domain.Metadata
}

type BulkInsertReq struct {
	Products []NewProductInput
}

func NewBulkInsertReq(products []NewProductInput) *BulkInsertReq {
	return &BulkInsertReq{Products: products}
}

// ItemOutcome - исход обработки одной записи: либо Product, либо Err.
type ItemOutcome struct {
	Position int
	ID       string
	Product  *domain.Product
	Err      error
}

// Succeeded сообщает, завершилась ли запись успешно.
func (o ItemOutcome) Succeeded() bool {
	return o.Err == nil
}

func successOutcome(position int, product *domain.Product) ItemOutcome {
	return ItemOutcome{Position: position, ID: product.ID, Product: product}
}

func failureOutcome(position int, id string, err error) ItemOutcome {
	return ItemOutcome{Position: position, ID: id, Err: err}
}

// BulkInsertRes - исходы в порядке входных записей.
type BulkInsertRes struct {
	Outcomes []ItemOutcome
}

// Counts возвращает число успешных и неуспешных записей.
func (r *BulkInsertRes) Counts() (succeeded, failed int) {
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// UpdateProductReq - частичное обновление: nil-поля не меняются.
// Metadata, если передана, целиком заменяет сохранённую.
type UpdateProductReq struct {
	ID          string
	Name        *string
	Description *string
	Metadata    domain.Metadata
}

type UpdateProductRes struct {
	Product             *domain.Product
	EmbeddingRecomputed bool
}

type DeleteProductsReq struct {
	IDs []string
}

// DeleteOutcome - исход удаления одного ID.
type DeleteOutcome struct {
	Position int
	ID       string
	Err      error
}

type DeleteProductsRes struct {
	Outcomes []DeleteOutcome
}

type DeleteAllTokenRes struct {
	Token     string
	ExpiresIn time.Duration
}

type DeleteAllReq struct {
	Confirm bool
	Token   string
}

type DeleteAllRes struct {
	Deleted uint64
}

// RECOMMENDATION

type RecommendByIDReq struct {
	ProductID string
	K         int
}

type RecommendByQueryReq struct {
	Text string
	K    int
}

type RecommendRes struct {
	Items []domain.Recommendation
}

// EXTRACTION

// ExtractImageReq - изображение или zip с изображениями одного товара; FileURL используется, если Image пуст.
type ExtractImageReq struct {
	Image   domain.Image
	FileURL string
}

type ExtractImageRes struct {
	Candidate domain.Candidate
}

type ProcessArchiveReq struct {
	Name    string
	Archive []byte
}

// ArchiveReport - итог обработки архива. Units == len(Inserted) + len(ExtractionFailures) + len(IngestionFailures).
type ArchiveReport struct {
	RunID              string
	Units              int
	Inserted           []domain.Product
	ExtractionFailures []domain.FailureEntry
	IngestionFailures  []domain.FailureEntry
	StartedAt          time.Time
	FinishedAt         time.Time
}

// INFRASTRUCTURE

// UploadImagesReq - запрос на загрузку изображений единицы архива.
type UploadImagesReq struct {
	Prefix string
	Images []domain.Image
}

// UploadImagesRes - ключи загруженных объектов в MinIO.
type UploadImagesRes struct {
	ImagesKeys []string
}

func NewUploadImagesRes(keys []string) *UploadImagesRes {
	return &UploadImagesRes{ImagesKeys: keys}
}

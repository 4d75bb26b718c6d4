package http

import (
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
)

// REQUESTS

type ProductInput struct {
	Code        string            `json:"code" validate:"max=256"`
	Name        string            `json:"name" validate:"max=512"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata" validate:"max=64"`
}

type BulkInsertRequest struct {
	Products []ProductInput `json:"products" validate:"max=10000,dive"`
}

type UpdateProductRequest struct {
	Name        *string           `json:"name" validate:"omitempty,max=512"`
	Description *string           `json:"description"`
	Metadata    map[string]string `json:"metadata" validate:"max=64"`
}

type DeleteProductsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=10000"`
}

type DeleteAllRequest struct {
	Confirm bool   `json:"confirm"`
	Token   string `json:"token" validate:"max=128"`
}

type RecommendByQueryRequest struct {
	Text string `json:"text" validate:"max=8192"`
	K    int    `json:"k"`
}

// RESPONSES

type ProductResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type OutcomeError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ItemOutcomeResponse struct {
	Position int              `json:"position"`
	ID       string           `json:"id,omitempty"`
	Status   string           `json:"status"`
	Product  *ProductResponse `json:"product,omitempty"`
	Error    *OutcomeError    `json:"error,omitempty"`
}

type BulkInsertResponse struct {
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Outcomes  []ItemOutcomeResponse `json:"outcomes"`
}

type UpdateProductResponse struct {
	Product             ProductResponse `json:"product"`
	EmbeddingRecomputed bool            `json:"embedding_recomputed"`
}

type DeleteProductsResponse struct {
	Outcomes []ItemOutcomeResponse `json:"outcomes"`
}

type DeleteAllTokenResponse struct {
	Token            string `json:"token"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

type DeleteAllResponse struct {
	Deleted uint64 `json:"deleted"`
}

type RecommendationItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Score     float32 `json:"score"`
}

type RecommendResponse struct {
	Items []RecommendationItem `json:"items"`
}

type CandidateResponse struct {
	Name             string `json:"name"`
	Code             string `json:"code"`
	ShortDescription string `json:"short_description"`
	LongDescription  string `json:"long_description"`
	ImageFormat      string `json:"image_format"`
}

type ArchiveReportResponse struct {
	RunID              string                `json:"run_id"`
	Units              int                   `json:"units"`
	Inserted           []ProductResponse     `json:"inserted"`
	ExtractionFailures []domain.FailureEntry `json:"extraction_failures"`
	IngestionFailures  []domain.FailureEntry `json:"ingestion_failures"`
	StartedAt          time.Time             `json:"started_at"`
	FinishedAt         time.Time             `json:"finished_at"`
}

type RunResponse struct {
	RunID              string                `json:"run_id"`
	ArchiveName        string                `json:"archive_name"`
	Units              int                   `json:"units"`
	InsertedIDs        []string              `json:"inserted_ids"`
	ExtractionFailures []domain.FailureEntry `json:"extraction_failures"`
	IngestionFailures  []domain.FailureEntry `json:"ingestion_failures"`
	StartedAt          time.Time             `json:"started_at"`
	FinishedAt         time.Time             `json:"finished_at"`
}

// CONVERTERS

func toProductInputs(in []ProductInput) []usecase.NewProductInput {
	out := make([]usecase.NewProductInput, len(in))
	for i, p := range in {
		out[i] = usecase.NewProductInput{
			Code:        p.Code,
			Name:        p.Name,
			Description: p.Description,
			Metadata:    domain.Metadata(p.Metadata),
		}
	}
	return out
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toOutcomeError(err error) *OutcomeError {
	_, msg := ToHTTPResponse(err)
	return &OutcomeError{Kind: e.Kind(err), Message: msg}
}

func toBulkInsertResponse(res *usecase.BulkInsertRes) BulkInsertResponse {
	succeeded, failed := res.Counts()
	out := BulkInsertResponse{
		Succeeded: succeeded,
		Failed:    failed,
		Outcomes:  make([]ItemOutcomeResponse, len(res.Outcomes)),
	}

	for i, o := range res.Outcomes {
		item := ItemOutcomeResponse{Position: o.Position, ID: o.ID, Status: "ok"}
		if o.Succeeded() {
			product := toProductResponse(o.Product)
			item.Product = &product
		} else {
			item.Status = "error"
			item.Error = toOutcomeError(o.Err)
		}
		out.Outcomes[i] = item
	}

	return out
}

func toDeleteProductsResponse(res *usecase.DeleteProductsRes) DeleteProductsResponse {
	out := DeleteProductsResponse{Outcomes: make([]ItemOutcomeResponse, len(res.Outcomes))}
	for i, o := range res.Outcomes {
		item := ItemOutcomeResponse{Position: o.Position, ID: o.ID, Status: "ok"}
		if o.Err != nil {
			item.Status = "error"
			item.Error = toOutcomeError(o.Err)
		}
		out.Outcomes[i] = item
	}
	return out
}

func toRecommendResponse(res *usecase.RecommendRes) RecommendResponse {
	items := make([]RecommendationItem, len(res.Items))
	for i, r := range res.Items {
		items[i] = RecommendationItem{ProductID: r.ProductID, Name: r.Name, Score: r.Score}
	}
	return RecommendResponse{Items: items}
}

func toCandidateResponse(c domain.Candidate) CandidateResponse {
	return CandidateResponse{
		Name:             c.Name,
		Code:             c.Code,
		ShortDescription: c.ShortDescription,
		LongDescription:  c.LongDescription,
		ImageFormat:      c.ImageFormat,
	}
}

func toArchiveReportResponse(r *usecase.ArchiveReport) ArchiveReportResponse {
	inserted := make([]ProductResponse, len(r.Inserted))
	for i := range r.Inserted {
		inserted[i] = toProductResponse(&r.Inserted[i])
	}

	return ArchiveReportResponse{
		RunID:              r.RunID,
		Units:              r.Units,
		Inserted:           inserted,
		ExtractionFailures: nonNilFailures(r.ExtractionFailures),
		IngestionFailures:  nonNilFailures(r.IngestionFailures),
		StartedAt:          r.StartedAt,
		FinishedAt:         r.FinishedAt,
	}
}

func toRunResponse(run *domain.ExtractionRun) RunResponse {
	ids := run.InsertedIDs
	if ids == nil {
		ids = []string{}
	}

	return RunResponse{
		RunID:              run.ID,
		ArchiveName:        run.ArchiveName,
		Units:              run.Units,
		InsertedIDs:        ids,
		ExtractionFailures: nonNilFailures(run.ExtractionFailures),
		IngestionFailures:  nonNilFailures(run.IngestionFailures),
		StartedAt:          run.StartedAt,
		FinishedAt:         run.FinishedAt,
	}
}

func nonNilFailures(f []domain.FailureEntry) []domain.FailureEntry {
	if f == nil {
		return []domain.FailureEntry{}
	}
	return f
}

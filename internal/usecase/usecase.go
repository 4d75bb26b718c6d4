package usecase

import (
	"context"

	"github.com/DRSN-tech/go-recommender/internal/domain"
)

type IngestionUC interface {
	BulkInsert(ctx context.Context, req *BulkInsertReq) (*BulkInsertRes, error)
	UpdateProduct(ctx context.Context, req *UpdateProductReq) (*UpdateProductRes, error)
	DeleteProduct(ctx context.Context, id string) error
	DeleteProducts(ctx context.Context, req *DeleteProductsReq) (*DeleteProductsRes, error)
	IssueDeleteAllToken(ctx context.Context) (*DeleteAllTokenRes, error)
	DeleteAll(ctx context.Context, req *DeleteAllReq) (*DeleteAllRes, error)
}

type RecommendationUC interface {
	RecommendByID(ctx context.Context, req *RecommendByIDReq) (*RecommendRes, error)
	RecommendByQuery(ctx context.Context, req *RecommendByQueryReq) (*RecommendRes, error)
}

type ExtractionUC interface {
	ExtractImage(ctx context.Context, req *ExtractImageReq) (*ExtractImageRes, error)
	ProcessArchive(ctx context.Context, req *ProcessArchiveReq) (*ArchiveReport, error)
	GetRun(ctx context.Context, runID string) (*domain.ExtractionRun, error)
}

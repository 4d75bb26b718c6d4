package http

import (
	"errors"
	"net/http"

	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	ingestion    usecase.IngestionUC
	maxBodyBytes int64
	logger       logger.Logger
}

func NewProductHandler(ingestion usecase.IngestionUC, maxBodyBytes int64, logger logger.Logger) *ProductHandler {
	return &ProductHandler{ingestion: ingestion, maxBodyBytes: maxBodyBytes, logger: logger}
}

// bulkInsert
//
//	@Summary		Массовая загрузка товаров
//	@Description	Векторизует и сохраняет записи. Ошибка одной записи не отменяет остальные.
//	@Tags			products
//	@Accept			json
//	@Produce		json
//	@Param			request	body		BulkInsertRequest	true	"Записи"
//	@Success		200		{object}	BulkInsertResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/products/bulk [post]
func (p *ProductHandler) bulkInsert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodyBytes)

	var req BulkInsertRequest
	if err := decodeJSON(r, &req); err != nil {
		p.logger.Warnf("%d bulk insert: %v", http.StatusBadRequest, err)
		WriteError(w, err)
		return
	}

	res, err := p.ingestion.BulkInsert(r.Context(), usecase.NewBulkInsertReq(toProductInputs(req.Products)))
	if err != nil {
		p.logger.Errorf(err, "bulk insert failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toBulkInsertResponse(res))
}

// updateProduct
//
//	@Summary	Частичное обновление товара
//	@Tags		products
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"ID товара"
//	@Param		request	body		UpdateProductRequest	true	"Изменяемые поля"
//	@Success	200		{object}	UpdateProductResponse
//	@Failure	404		{object}	ErrorResponse
//	@Router		/products/{id} [patch]
func (p *ProductHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodyBytes)

	var req UpdateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	res, err := p.ingestion.UpdateProduct(r.Context(), &usecase.UpdateProductReq{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		p.logger.Warnf("update product %s: %v", chi.URLParam(r, "id"), err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, UpdateProductResponse{
		Product:             toProductResponse(res.Product),
		EmbeddingRecomputed: res.EmbeddingRecomputed,
	})
}

func (p *ProductHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := p.ingestion.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		p.logger.Warnf("delete product %s: %v", chi.URLParam(r, "id"), err)
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (p *ProductHandler) deleteProducts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodyBytes)

	var req DeleteProductsRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	res, err := p.ingestion.DeleteProducts(r.Context(), &usecase.DeleteProductsReq{IDs: req.IDs})
	if err != nil {
		p.logger.Errorf(err, "delete products failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toDeleteProductsResponse(res))
}

// issueDeleteAllToken
//
//	@Summary	Выдать одноразовый токен подтверждения удаления всего каталога
//	@Tags		products
//	@Produce	json
//	@Success	201	{object}	DeleteAllTokenResponse
//	@Failure	409	{object}	ErrorResponse
//	@Router		/products/delete-all/token [post]
func (p *ProductHandler) issueDeleteAllToken(w http.ResponseWriter, r *http.Request) {
	res, err := p.ingestion.IssueDeleteAllToken(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, DeleteAllTokenResponse{
		Token:            res.Token,
		ExpiresInSeconds: int64(res.ExpiresIn.Seconds()),
	})
}

// deleteAll
//
//	@Summary	Удалить все товары
//	@Tags		products
//	@Accept		json
//	@Produce	json
//	@Param		request	body		DeleteAllRequest	true	"Подтверждение"
//	@Success	200		{object}	DeleteAllResponse
//	@Failure	400		{object}	ErrorResponse
//	@Router		/products/delete-all [post]
func (p *ProductHandler) deleteAll(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodyBytes)

	var req DeleteAllRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	res, err := p.ingestion.DeleteAll(r.Context(), &usecase.DeleteAllReq{Confirm: req.Confirm, Token: req.Token})
	if err != nil {
		if !errors.Is(err, e.ErrValidation) {
			p.logger.Errorf(err, "delete all failed")
		}
		WriteError(w, err)
		return
	}

	p.logger.Infof("delete all: %d products removed", res.Deleted)
	WriteSuccess(w, http.StatusOK, DeleteAllResponse{Deleted: res.Deleted})
}

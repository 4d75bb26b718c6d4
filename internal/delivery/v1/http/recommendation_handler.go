package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// maxQueryBodyBytes - лимит тела запроса рекомендаций по тексту.
const maxQueryBodyBytes = 64 << 10

type RecommendationHandler struct {
	recommendations usecase.RecommendationUC
	logger          logger.Logger
}

func NewRecommendationHandler(recommendations usecase.RecommendationUC, logger logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{recommendations: recommendations, logger: logger}
}

// recommendByID
//
//	@Summary	Похожие товары
//	@Tags		recommendations
//	@Produce	json
//	@Param		id	path		string	true	"ID товара"
//	@Param		k	query		int		false	"Число результатов (0 - по умолчанию)"
//	@Success	200	{object}	RecommendResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/products/{id}/recommendations [get]
func (h *RecommendationHandler) recommendByID(w http.ResponseWriter, r *http.Request) {
	k, err := parseK(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.recommendations.RecommendByID(r.Context(), &usecase.RecommendByIDReq{
		ProductID: chi.URLParam(r, "id"),
		K:         k,
	})
	if err != nil {
		h.logger.Warnf("recommend by id %s: %v", chi.URLParam(r, "id"), err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toRecommendResponse(res))
}

// recommendByQuery
//
//	@Summary	Товары, похожие на текстовый запрос
//	@Tags		recommendations
//	@Accept		json
//	@Produce	json
//	@Param		request	body		RecommendByQueryRequest	true	"Запрос"
//	@Success	200		{object}	RecommendResponse
//	@Failure	400		{object}	ErrorResponse
//	@Router		/recommendations/query [post]
func (h *RecommendationHandler) recommendByQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)

	var req RecommendByQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.recommendations.RecommendByQuery(r.Context(), &usecase.RecommendByQueryReq{Text: req.Text, K: req.K})
	if err != nil {
		h.logger.Warnf("recommend by query: %v", err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toRecommendResponse(res))
}

// parseK читает необязательный параметр k; отсутствие означает значение по умолчанию.
func parseK(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("k")
	if raw == "" {
		return 0, nil
	}

	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: k must be an integer", e.ErrBadRequest)
	}
	return k, nil
}

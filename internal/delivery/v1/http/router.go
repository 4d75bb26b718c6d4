package http

import (
	"net/http"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Limits - ограничения размеров тел запросов.
type Limits struct {
	MaxBodyBytes    int64
	MaxImageBytes   int64
	MaxArchiveBytes int64
}

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(ingestUC usecase.IngestionUC, recUC usecase.RecommendationUC, extrUC usecase.ExtractionUC, limits Limits) {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RealIP)
	r.router.Use(r.requestLogger)
	r.router.Use(middleware.Recoverer)

	r.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.router.Handle("/metrics", promhttp.Handler())

	r.router.Route("/api/v1", func(v1 chi.Router) {
		prHandler := NewProductHandler(ingestUC, limits.MaxBodyBytes, r.logger)
		recHandler := NewRecommendationHandler(recUC, r.logger)
		exHandler := NewExtractionHandler(extrUC, limits.MaxImageBytes, limits.MaxArchiveBytes, r.logger)

		registerProductRoutes(v1, prHandler, recHandler)
		registerRecommendationRoutes(v1, recHandler)
		registerExtractionRoutes(v1, exHandler)
	})
}

func registerProductRoutes(router chi.Router, prHandler *ProductHandler, recHandler *RecommendationHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Post("/bulk", prHandler.bulkInsert)
		pr.Post("/delete", prHandler.deleteProducts)
		pr.Post("/delete-all/token", prHandler.issueDeleteAllToken)
		pr.Post("/delete-all", prHandler.deleteAll)
		pr.Patch("/{id}", prHandler.updateProduct)
		pr.Delete("/{id}", prHandler.deleteProduct)
		pr.Get("/{id}/recommendations", recHandler.recommendByID)
	})
}

func registerRecommendationRoutes(router chi.Router, recHandler *RecommendationHandler) {
	router.Post("/recommendations/query", recHandler.recommendByQuery)
}

func registerExtractionRoutes(router chi.Router, exHandler *ExtractionHandler) {
	router.Route("/extractions", func(ex chi.Router) {
		ex.Post("/image", exHandler.extractImage)
		ex.Post("/archive", exHandler.processArchive)
		ex.Get("/{runID}", exHandler.getRun)
	})
}

func (r *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

		next.ServeHTTP(ww, req)

		r.logger.Debugf("%s %s %d %dB %v request_id=%s",
			req.Method, req.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start), middleware.GetReqID(req.Context()))
	})
}

package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead - запас на заголовки и границы multipart поверх размера файла.
const multipartOverhead = 1 << 20

type ExtractionHandler struct {
	extraction      usecase.ExtractionUC
	maxImageBytes   int64
	maxArchiveBytes int64
	logger          logger.Logger
}

func NewExtractionHandler(extraction usecase.ExtractionUC, maxImageBytes, maxArchiveBytes int64, logger logger.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		extraction:      extraction,
		maxImageBytes:   maxImageBytes,
		maxArchiveBytes: maxArchiveBytes,
		logger:          logger,
	}
}

// extractImage
//
//	@Summary		Извлечь карточку товара из изображения
//	@Description	Принимает изображение, ZIP с изображениями одного товара или file_url, по которому файл будет скачан.
//	@Tags			extractions
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image		formData	file	false	"Изображение товара или ZIP с изображениями"
//	@Param			file_url	formData	string	false	"URL файла, если image не передан"
//	@Success		200			{object}	CandidateResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		413			{object}	ErrorResponse
//	@Failure		502			{object}	ErrorResponse
//	@Router			/extractions/image [post]
func (h *ExtractionHandler) extractImage(w http.ResponseWriter, r *http.Request) {
	maxSize := max(h.maxImageBytes, h.maxArchiveBytes)
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := ensureMultipartForm(r); err != nil {
		h.logger.Warnf("%d extract image: %v", http.StatusBadRequest, err)
		WriteError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := &usecase.ExtractImageReq{}
	if _, ok := r.MultipartForm.File["image"]; ok {
		data, name, err := readFormFile(r, "image", maxSize)
		if err != nil {
			WriteError(w, err)
			return
		}
		req.Image = domain.Image{Name: name, Data: data, MimeType: http.DetectContentType(data)}
	} else {
		req.FileURL = strings.TrimSpace(r.FormValue("file_url"))
		if req.FileURL == "" {
			WriteError(w, fmt.Errorf("%w: form file \"image\" or field \"file_url\" is required", e.ErrBadRequest))
			return
		}
	}

	res, err := h.extraction.ExtractImage(r.Context(), req)
	if err != nil {
		h.logger.Warnf("extract image %s%s: %v", req.Image.Name, req.FileURL, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toCandidateResponse(res.Candidate))
}

// processArchive
//
//	@Summary		Обработать ZIP-архив с папками товаров
//	@Description	Каждая папка верхнего уровня - один товар. Отчёт содержит три непересекающихся набора исходов.
//	@Tags			extractions
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			archive	formData	file	true	"ZIP-архив"
//	@Success		200		{object}	ArchiveReportResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/extractions/archive [post]
func (h *ExtractionHandler) processArchive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxArchiveBytes+multipartOverhead)

	if err := ensureMultipartForm(r); err != nil {
		h.logger.Warnf("%d process archive: %v", http.StatusBadRequest, err)
		WriteError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	data, name, err := readFormFile(r, "archive", h.maxArchiveBytes)
	if err != nil {
		WriteError(w, err)
		return
	}

	report, err := h.extraction.ProcessArchive(r.Context(), &usecase.ProcessArchiveReq{Name: name, Archive: data})
	if err != nil {
		h.logger.Warnf("process archive %s: %v", name, err)
		WriteError(w, err)
		return
	}

	h.logger.Infof("archive %s processed: run=%s units=%d inserted=%d extraction_failures=%d ingestion_failures=%d",
		name, report.RunID, report.Units, len(report.Inserted), len(report.ExtractionFailures), len(report.IngestionFailures))
	WriteSuccess(w, http.StatusOK, toArchiveReportResponse(report))
}

func (h *ExtractionHandler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.extraction.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toRunResponse(run))
}

package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/jimlawless/whereami"
)

// maxMultipartMemory - сколько байт multipart-формы держать в памяти, остальное уходит во временные файлы.
const maxMultipartMemory = 32 << 20

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

type ErrorResponse struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, kind, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// publicErrors - сентинелы, текст которых можно показывать клиенту. От частных к общим.
var publicErrors = []error{
	e.ErrEmptyID,
	e.ErrEmptyDescription,
	e.ErrInvalidQuery,
	e.ErrInvalidK,
	e.ErrDeleteAllNotConfirmed,
	e.ErrInvalidConfirmationToken,
	e.ErrInvalidArchive,
	e.ErrMalformedImage,
	e.ErrUnsupportedMediaType,
	e.ErrExpectedMultipart,
	e.ErrFileTooLarge,
	e.ErrRemoteFile,
	e.ErrBadRequest,
	e.ErrValidation,
	e.ErrNotFound,
	e.ErrZeroVector,
	e.ErrVectorDimensionMismatch,
	e.ErrEmbedding,
	e.ErrNoImages,
	e.ErrUnitTimeout,
	e.ErrExtraction,
	e.ErrIndexUnavailable,
	e.ErrEmptyArchive,
	e.ErrConfirmationUnavailable,
}

// ToHTTPResponse возвращает статус и сообщение для клиента. Внутренние детали наружу не попадают.
func ToHTTPResponse(err error) (int, string) {
	var maxBytesErr *http.MaxBytesError

	var status int
	switch {
	case errors.As(err, &maxBytesErr), errors.Is(err, e.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, e.ErrFileTooLarge.Error()
	case errors.Is(err, e.ErrUnsupportedMediaType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, e.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, e.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, e.ErrEmptyArchive):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, e.ErrConfirmationUnavailable):
		status = http.StatusConflict
	case errors.Is(err, e.ErrEmbedding), errors.Is(err, e.ErrExtraction):
		status = http.StatusBadGateway
	case errors.Is(err, e.ErrIndexUnavailable):
		status = http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}

	return status, publicMessage(err)
}

func publicMessage(err error) string {
	for _, sentinel := range publicErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return e.ErrInternalServerError.Error()
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	kind := e.Kind(err)
	if code == http.StatusRequestEntityTooLarge {
		kind = e.Kind(e.ErrFileTooLarge)
	}
	WriteSuccess(w, code, NewErrorResponse(code, kind, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst и проверяет теги validate.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return e.Wrap(whereami.WhereAmI(), e.ErrFileTooLarge)
		}
		if errors.Is(err, io.EOF) {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: empty body", e.ErrBadRequest))
		}
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %v", e.ErrBadRequest, err))
	}

	if err := getValidator().Struct(dst); err != nil {
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %s", e.ErrBadRequest, describeValidation(err)))
	}

	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func ensureMultipartForm(r *http.Request) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return e.Wrap(whereami.WhereAmI(), e.ErrFileTooLarge)
		}
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %v", e.ErrBadRequest, err))
	}
	return nil
}

// readFormFile читает файл формы field целиком, но не больше maxSize байт.
func readFormFile(r *http.Request, field string, maxSize int64) ([]byte, string, error) {
	src, fh, err := r.FormFile(field)
	if err != nil {
		return nil, "", e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: form file %q is required", e.ErrBadRequest, field))
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return nil, "", e.Wrap(whereami.WhereAmI(), err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	return data, fh.Filename, nil
}

package e

import (
	"errors"
	"fmt"
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Некорректная переменная окружения
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// Базовые категории ошибок ядра. Все остальные ошибки оборачивают одну из них.
var (
	ErrValidation       = fmt.Errorf("validation error")
	ErrNotFound         = fmt.Errorf("not found")
	ErrEmbedding        = fmt.Errorf("embedding error")
	ErrExtraction       = fmt.Errorf("extraction error")
	ErrIndexUnavailable = fmt.Errorf("index unavailable")
	ErrEmptyArchive     = fmt.Errorf("archive contains no product folders")
)

var (
	// 400 Bad Request
	ErrEmptyID                  = fmt.Errorf("%w: id is empty", ErrValidation)
	ErrEmptyDescription         = fmt.Errorf("%w: description is empty", ErrValidation)
	ErrInvalidQuery             = fmt.Errorf("%w: query text is empty", ErrValidation)
	ErrInvalidK                 = fmt.Errorf("%w: k must not be negative", ErrValidation)
	ErrDeleteAllNotConfirmed    = fmt.Errorf("%w: delete-all must be confirmed", ErrValidation)
	ErrInvalidConfirmationToken = fmt.Errorf("%w: confirmation token is invalid or expired", ErrValidation)
	ErrInvalidArchive           = fmt.Errorf("%w: invalid archive", ErrValidation)
	ErrMalformedImage           = fmt.Errorf("%w: malformed image", ErrValidation)
	ErrUnsupportedMediaType     = fmt.Errorf("%w: unsupported media type", ErrValidation)
	ErrExpectedMultipart        = fmt.Errorf("%w: expected multipart/form-data", ErrValidation)
	ErrFileTooLarge             = fmt.Errorf("%w: file too large", ErrValidation)
	ErrBadRequest               = fmt.Errorf("%w: bad request", ErrValidation)
	ErrRemoteFile               = fmt.Errorf("%w: unable to retrieve file from URL", ErrValidation)

	// Ошибки векторов
	ErrEmptyVector             = fmt.Errorf("%w: empty vector", ErrEmbedding)
	ErrZeroVector              = fmt.Errorf("%w: zero vector", ErrEmbedding)
	ErrVectorDimensionMismatch = fmt.Errorf("%w: vector dimension mismatch", ErrEmbedding)

	// Ошибки обработки единиц архива
	ErrNoImages    = fmt.Errorf("%w: folder contains no images", ErrExtraction)
	ErrUnitTimeout = fmt.Errorf("%w: extraction timed out", ErrExtraction)

	// Подтверждение удаления через токен не настроено
	ErrConfirmationUnavailable = fmt.Errorf("delete-all confirmation store is not configured")

	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// As помечает err категорией kind, если она ещё не помечена.
func As(kind, err error) error {
	if err == nil || errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Kind возвращает стабильный машинный код категории ошибки.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, ErrExtraction):
		return "extraction_error"
	case errors.Is(err, ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, ErrEmptyArchive):
		return "empty_archive"
	case errors.Is(err, ErrConfirmationUnavailable):
		return "confirmation_unavailable"
	default:
		return "internal_error"
	}
}

package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/DRSN-tech/go-recommender/internal/observability"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/google/uuid"
)

// embedText вычисляет вектор текста и проверяет, что он пригоден для поиска.
func embedText(ctx context.Context, vectorizer Vectorizer, text string, dimension int) ([]float32, error) {
	vector, err := vectorizer.Embed(ctx, text)
	if err != nil {
		observability.ExternalCallFailuresTotal.WithLabelValues("vectorizer").Inc()
		return nil, e.As(e.ErrEmbedding, err)
	}

	if err := validateVector(vector, dimension); err != nil {
		return nil, err
	}

	return vector, nil
}

// validateVector отклоняет пустые, нулевые, нечисловые векторы и векторы чужой размерности.
func validateVector(vector []float32, dimension int) error {
	if len(vector) == 0 {
		return e.ErrEmptyVector
	}
	if dimension > 0 && len(vector) != dimension {
		return fmt.Errorf("%w: got %d, want %d", e.ErrVectorDimensionMismatch, len(vector), dimension)
	}

	nonZero := false
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite component at %d", e.ErrEmbedding, i)
		}
		if v != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return e.ErrZeroVector
	}

	return nil
}

// normalizeID приводит идентификатор к каноническому виду uuid.
// false означает, что такой записи существовать не может.
func normalizeID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id, false
	}
	return parsed.String(), true
}

// resultLabel - метка исхода для метрик.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return e.Kind(err)
}

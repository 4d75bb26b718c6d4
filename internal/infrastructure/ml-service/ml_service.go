package ml_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/jitter"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// embedTextMethod - полное имя unary-метода ML-сервиса. Запрос и ответ передаются как google.protobuf.Struct.
const embedTextMethod = "/ml.MachineLearningService/EmbedText"

// MLService клиент для векторизации текста внешним ML-сервисом
type MLService struct {
	conn        grpc.ClientConnInterface
	model       string
	maxRetries  int
	timeout     time.Duration
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      logger.Logger
}

func NewMLService(conn grpc.ClientConnInterface, model string, maxRetries int, timeout time.Duration, logger logger.Logger) *MLService {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &MLService{
		conn:        conn,
		model:       model,
		maxRetries:  maxRetries,
		timeout:     timeout,
		baseBackoff: 1 * time.Second,
		maxBackoff:  30 * time.Second,
		logger:      logger,
	}
}

// Embed выполняет векторизацию текста с retry-логикой и экспоненциальной задержкой
func (m *MLService) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "MLService.Embed"

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		vector, err := m.embedOnce(ctx, text)
		if err == nil {
			return vector, nil
		}
		lastErr = err

		if !retryable(err) || attempt == m.maxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(m.baseBackoff, m.maxBackoff, attempt, jitter.DefaultJitter)
		m.logger.Warnf("vectorization failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return nil, e.Wrap(op, e.As(e.ErrEmbedding, errors.Join(err, lastErr)))
		}
	}

	return nil, e.Wrap(op, e.As(e.ErrEmbedding, fmt.Errorf("after %d attempts: %w", m.maxRetries, lastErr)))
}

func (m *MLService) embedOnce(ctx context.Context, text string) ([]float32, error) {
	req, err := structpb.NewStruct(map[string]any{
		"text":  text,
		"model": m.model,
	})
	if err != nil {
		return nil, err
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := m.conn.Invoke(ctx, embedTextMethod, req, resp); err != nil {
		return nil, err
	}

	return decodeVector(resp)
}

// decodeVector читает поле "vector" ответа. Нечисловые элементы - ошибка ответа.
func decodeVector(resp *structpb.Struct) ([]float32, error) {
	field, ok := resp.GetFields()["vector"]
	if !ok {
		return nil, fmt.Errorf("%w: response has no vector field", e.ErrEmptyVector)
	}

	values := field.GetListValue().GetValues()
	if len(values) == 0 {
		return nil, e.ErrEmptyVector
	}

	vector := make([]float32, len(values))
	for i, v := range values {
		num, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not a number", e.ErrEmbedding, i)
		}
		vector[i] = float32(num.NumberValue)
	}

	return vector, nil
}

// retryable: повторяем только временные отказы транспорта.
func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

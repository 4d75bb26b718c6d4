package resilience

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"golang.org/x/time/rate"
)

// GuardedVectorizer защищает векторизатор circuit breaker'ом.
type GuardedVectorizer struct {
	next    usecase.Vectorizer
	breaker *Breaker[[]float32]
}

func NewGuardedVectorizer(next usecase.Vectorizer, c *cfg.BreakerCfg, logger logger.Logger) *GuardedVectorizer {
	return &GuardedVectorizer{
		next:    next,
		breaker: NewBreaker[[]float32]("vectorizer", c, logger),
	}
}

func (g *GuardedVectorizer) Embed(ctx context.Context, text string) ([]float32, error) {
	return g.breaker.Execute(e.ErrEmbedding, func() ([]float32, error) {
		return g.next.Embed(ctx, text)
	})
}

// GuardedExtractor ограничивает частоту запросов к сервису извлечения и защищает его circuit breaker'ом.
// Ожидание токена прерывается контекстом единицы.
type GuardedExtractor struct {
	next    usecase.Extractor
	limiter *rate.Limiter
	breaker *Breaker[*domain.Candidate]
}

func NewGuardedExtractor(next usecase.Extractor, extraction *cfg.ExtractionCfg, breaker *cfg.BreakerCfg, logger logger.Logger) *GuardedExtractor {
	limit := rate.Inf
	if extraction.RequestsPerSecond > 0 {
		limit = rate.Limit(extraction.RequestsPerSecond)
	}
	burst := extraction.Burst
	if burst <= 0 {
		burst = 1
	}

	return &GuardedExtractor{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		breaker: NewBreaker[*domain.Candidate]("extractor", breaker, logger),
	}
}

func (g *GuardedExtractor) Extract(ctx context.Context, images []domain.Image) (*domain.Candidate, error) {
	const op = "GuardedExtractor.Extract"

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: rate limiter: %w", e.ErrExtraction, err))
	}

	return g.breaker.Execute(e.ErrExtraction, func() (*domain.Candidate, error) {
		return g.next.Extract(ctx, images)
	})
}

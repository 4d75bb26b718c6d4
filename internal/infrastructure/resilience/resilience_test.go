package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/sony/gobreaker/v2"
)

type countingVectorizer struct {
	calls atomic.Int32
	err   error
}

func (c *countingVectorizer) Embed(_ context.Context, _ string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{1, 0}, nil
}

type stubExtractor struct {
	calls atomic.Int32
}

func (s *stubExtractor) Extract(_ context.Context, _ []domain.Image) (*domain.Candidate, error) {
	s.calls.Add(1)
	return &domain.Candidate{Name: "mug"}, nil
}

func TestGuardedVectorizerOpensAfterConsecutiveFailures(t *testing.T) {
	next := &countingVectorizer{err: errors.New("connection refused")}
	g := NewGuardedVectorizer(next, &cfg.BreakerCfg{MaxFailures: 3, OpenTimeout: time.Hour}, logger.NewNopLogger())

	for i := 0; i < 3; i++ {
		if _, err := g.Embed(context.Background(), "text"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if g.breaker.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", g.breaker.State())
	}

	_, err := g.Embed(context.Background(), "text")
	if !errors.Is(err, e.ErrEmbedding) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected open-state embedding error, got %v", err)
	}
	if next.calls.Load() != 3 {
		t.Errorf("open breaker must not call through: calls=%d", next.calls.Load())
	}
}

func TestGuardedVectorizerIgnoresValidationErrors(t *testing.T) {
	next := &countingVectorizer{err: e.ErrInvalidQuery}
	g := NewGuardedVectorizer(next, &cfg.BreakerCfg{MaxFailures: 1, OpenTimeout: time.Hour}, logger.NewNopLogger())

	for i := 0; i < 3; i++ {
		_, _ = g.Embed(context.Background(), "text")
	}
	if g.breaker.State() != gobreaker.StateClosed {
		t.Errorf("validation errors must not trip the breaker, state = %s", g.breaker.State())
	}
}

func TestGuardedVectorizerPassesThrough(t *testing.T) {
	next := &countingVectorizer{}
	g := NewGuardedVectorizer(next, &cfg.BreakerCfg{MaxFailures: 1, OpenTimeout: time.Hour}, logger.NewNopLogger())

	vec, err := g.Embed(context.Background(), "text")
	if err != nil || len(vec) != 2 {
		t.Fatalf("Embed = %v, %v", vec, err)
	}
}

func TestGuardedExtractorRespectsContextWhileWaiting(t *testing.T) {
	next := &stubExtractor{}
	g := NewGuardedExtractor(next,
		&cfg.ExtractionCfg{RequestsPerSecond: 0.001, Burst: 1},
		&cfg.BreakerCfg{MaxFailures: 5, OpenTimeout: time.Hour},
		logger.NewNopLogger(),
	)

	if _, err := g.Extract(context.Background(), nil); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Extract(ctx, nil)
	if !errors.Is(err, e.ErrExtraction) {
		t.Errorf("expected ErrExtraction while waiting for a token, got %v", err)
	}
	if next.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", next.calls.Load())
	}
}

func TestGuardedExtractorUnlimited(t *testing.T) {
	next := &stubExtractor{}
	g := NewGuardedExtractor(next, &cfg.ExtractionCfg{}, &cfg.BreakerCfg{MaxFailures: 5, OpenTimeout: time.Hour}, logger.NewNopLogger())

	for i := 0; i < 10; i++ {
		if _, err := g.Extract(context.Background(), nil); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
}

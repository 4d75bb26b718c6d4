// Package resilience оборачивает внешние вызовы в circuit breaker и ограничитель частоты.
package resilience

import (
	"context"
	"errors"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/observability"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/sony/gobreaker/v2"
)

// Breaker размыкается после MaxFailures подряд неудачных вызовов и пропускает пробный вызов через OpenTimeout.
type Breaker[T any] struct {
	cb   *gobreaker.CircuitBreaker[T]
	name string
}

func NewBreaker[T any](name string, c *cfg.BreakerCfg, logger logger.Logger) *Breaker[T] {
	observability.BreakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     c.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.BreakerState.WithLabelValues(name).Set(stateValue(to))
			logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
		IsSuccessful: countsAsSuccess,
	}

	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings), name: name}
}

// Execute выполняет fn под защитой автомата. Отказ открытого автомата оборачивает kind.
func (b *Breaker[T]) Execute(kind error, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.ExternalCallFailuresTotal.WithLabelValues(b.name).Inc()
		return res, e.As(kind, err)
	}
	return res, err
}

// State - текущее состояние автомата.
func (b *Breaker[T]) State() gobreaker.State {
	return b.cb.State()
}

// countsAsSuccess не засчитывает отмену вызова и ошибки валидации входа как сбой зависимости.
func countsAsSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, e.ErrValidation)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

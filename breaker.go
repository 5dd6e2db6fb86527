package gamelan

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
)

// BreakerConnector wraps a Connector in a circuit breaker so a browned-out
// endpoint fails fast instead of queueing attempts behind a dead transport.
// An open circuit surfaces as a transmit error carrying ErrBreakerOpen,
// which the default classifier treats as transient, so the retry strategy
// still bounds the recovery probing.
type BreakerConnector struct {
	next Connector
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerConnector wraps next with the given gobreaker settings. A zero
// Settings value uses gobreaker's defaults (trip after 5 consecutive
// failures, 60s open interval).
func NewBreakerConnector(next Connector, settings gobreaker.Settings) *BreakerConnector {
	if settings.Name == "" {
		settings.Name = "gamelan-connector"
	}
	return &BreakerConnector{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// Transmit implements the Connector interface.
func (b *BreakerConnector) Transmit(ctx context.Context, req *Request) (*Response, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Transmit(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrBreakerOpen, err)
		}
		return nil, err
	}
	return result.(*Response), nil
}

// State exposes the underlying breaker state for observability.
func (b *BreakerConnector) State() gobreaker.State {
	return b.cb.State()
}

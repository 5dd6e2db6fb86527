package gamelan

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrorKind classifies a retryable failure.
type ErrorKind int

const (
	// KindTransient covers transport faults and 5xx-style server failures.
	KindTransient ErrorKind = iota
	// KindThrottling covers explicit slow-down signals; throttled retries
	// additionally consume from the token budget.
	KindThrottling
	// KindTimeout covers attempt-level deadline expirations.
	KindTimeout
	// KindClient covers caller mistakes, which are never retryable.
	KindClient
)

// String returns the kind's label used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindThrottling:
		return "throttling"
	case KindTimeout:
		return "timeout"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// Classifier decides whether an error is retryable and of what kind.
type Classifier interface {
	Classify(err error) (kind ErrorKind, retryable bool)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(err error) (ErrorKind, bool)

func (f ClassifierFunc) Classify(err error) (ErrorKind, bool) {
	return f(err)
}

// DefaultClassifier classifies phase-wrapped orchestrator errors.
// Endpoint/identity resolution, transmit and deserialize failures are
// transient; attempt deadline expirations are timeouts; transport errors
// carrying a throttle signal are throttling. Everything else, including
// modeled service errors, is a non-retryable client error.
type DefaultClassifier struct{}

// Classify implements the Classifier interface.
func (DefaultClassifier) Classify(err error) (ErrorKind, bool) {
	if err == nil {
		return KindClient, false
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		switch opErr.Type {
		case ErrorTypeTimeout:
			return KindTimeout, true
		case ErrorTypeEndpointResolution, ErrorTypeIdentityResolution,
			ErrorTypeTransmit, ErrorTypeDeserialization:
			if errors.Is(err, context.DeadlineExceeded) {
				return KindTimeout, true
			}
			var throttler Throttler
			if errors.As(err, &throttler) && throttler.Throttled() {
				return KindThrottling, true
			}
			return KindTransient, true
		default:
			return KindClient, false
		}
	}

	return KindClient, false
}

// RetryState is the per-invocation retry accounting: completed attempts,
// cumulative backoff delay, the backoff engine and the shared token budget.
// It is owned by one orchestrator run and never shared.
type RetryState struct {
	Attempt     int
	MaxAttempts int
	TotalDelay  time.Duration

	backoff *backoff.ExponentialBackOff
	bucket  *TokenBucket
}

// RetryStrategy decides whether, and after what delay, a classified failure
// is retried.
type RetryStrategy interface {
	// NewState creates the accounting for one orchestrator run.
	NewState(maxAttempts int, bucket *TokenBucket) *RetryState
	// NextDelay returns the backoff before the next attempt, or false to
	// stop retrying.
	NextDelay(state *RetryState, kind ErrorKind) (time.Duration, bool)
}

// StandardRetryStrategy retries with exponential backoff and jitter, bounds
// total attempts, and gates throttled retries behind the token budget so
// sustained throttling cannot produce a retry storm.
type StandardRetryStrategy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64
	ThrottleCost   int64
}

// NewStandardRetryStrategy returns the default strategy: 3 attempts,
// 100ms initial backoff doubling up to 10s with 10% jitter, one budget
// token per throttled retry.
func NewStandardRetryStrategy() *StandardRetryStrategy {
	return &StandardRetryStrategy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
		ThrottleCost:   1,
	}
}

// NewState implements the RetryStrategy interface. maxAttempts <= 0 falls
// back to the strategy's own bound.
func (s *StandardRetryStrategy) NewState(maxAttempts int, bucket *TokenBucket) *RetryState {
	if maxAttempts <= 0 {
		maxAttempts = s.MaxAttempts
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.InitialBackoff
	b.MaxInterval = s.MaxBackoff
	b.Multiplier = s.Multiplier
	b.RandomizationFactor = s.Jitter
	b.Reset()
	return &RetryState{
		MaxAttempts: maxAttempts,
		backoff:     b,
		bucket:      bucket,
	}
}

// NextDelay implements the RetryStrategy interface.
func (s *StandardRetryStrategy) NextDelay(state *RetryState, kind ErrorKind) (time.Duration, bool) {
	if kind == KindClient {
		return 0, false
	}
	if state.Attempt >= state.MaxAttempts {
		return 0, false
	}
	if kind == KindThrottling && state.bucket != nil && !state.bucket.Acquire(s.ThrottleCost) {
		return 0, false
	}

	delay := state.backoff.NextBackOff()
	state.TotalDelay += delay
	return delay, true
}

// TokenBucket is a consumable retry allowance shared by all invocations of
// one client. Throttled retries drain it; successful attempts regenerate it
// one token at a time, so a client under sustained throttling converges to
// no retries instead of amplifying load.
type TokenBucket struct {
	capacity int64
	tokens   atomic.Int64
}

// NewTokenBucket creates a bucket filled to capacity.
func NewTokenBucket(capacity int64) *TokenBucket {
	b := &TokenBucket{capacity: capacity}
	b.tokens.Store(capacity)
	return b
}

// Acquire consumes n tokens, reporting false without consuming anything if
// fewer than n remain.
func (b *TokenBucket) Acquire(n int64) bool {
	for {
		cur := b.tokens.Load()
		if cur < n {
			return false
		}
		if b.tokens.CompareAndSwap(cur, cur-n) {
			return true
		}
	}
}

// Regenerate returns n tokens to the bucket, capped at capacity.
func (b *TokenBucket) Regenerate(n int64) {
	for {
		cur := b.tokens.Load()
		next := cur + n
		if next > b.capacity {
			next = b.capacity
		}
		if cur == next || b.tokens.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Tokens returns the current token count.
func (b *TokenBucket) Tokens() int64 {
	return b.tokens.Load()
}

// Capacity returns the bucket's maximum token count.
func (b *TokenBucket) Capacity() int64 {
	return b.capacity
}

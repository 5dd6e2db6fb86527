package gamelan

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Phase identifies a stage of the orchestrator state machine. Phases run in
// declaration order; ResolveEndpoint, ResolveIdentity, Transmit and
// Deserialize participate in the retry loop, which always re-enters at
// ResolveEndpoint so identity and signature are recomputed per attempt.
type Phase string

const (
	PhaseInit            Phase = "Init"
	PhaseSerialize       Phase = "Serialize"
	PhaseResolveEndpoint Phase = "ResolveEndpoint"
	PhaseResolveIdentity Phase = "ResolveIdentity"
	PhaseSign            Phase = "Sign"
	PhaseTransmit        Phase = "Transmit"
	PhaseDeserialize     Phase = "Deserialize"
	PhaseComplete        Phase = "Complete"
)

// invocation is the single-owner state threaded through one operation call.
// It is created per call, never shared across concurrent executions, and
// discarded at completion.
type invocation struct {
	id       string
	op       *Operation
	cfg      *View
	start    time.Time
	req      *Request
	endpoint Endpoint
	identity *Identity
	retry    *RetryState
	scope    hookScope
	hc       *HookContext
}

// run executes the orchestrator state machine for one invocation.
func (c *Client) run(ctx context.Context, inv *invocation, input any, registry *interceptorRegistry) (any, error) {
	op := inv.op

	if timeout, ok := Resolve(inv.cfg, KeyOperationTimeout); ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c.observePhase(inv, PhaseInit, 0, c.clock.Now(), nil)

	if err := registry.beforeExecution(ctx, inv.hc, &inv.scope); err != nil {
		return nil, c.fail(ctx, inv, registry, c.newError(inv, ErrorTypeInterceptor, PhaseInit, "before-execution hook failed", err))
	}
	if err := registry.beforeSerialization(ctx, inv.hc, &inv.scope); err != nil {
		return nil, c.fail(ctx, inv, registry, c.newError(inv, ErrorTypeInterceptor, PhaseSerialize, "before-serialization hook failed", err))
	}

	// Serialize once; the byte body is reused verbatim across attempts.
	phaseStart := c.clock.Now()
	req, err := op.Serializer.Serialize(input, inv.cfg)
	c.observePhase(inv, PhaseSerialize, 0, phaseStart, err)
	if err != nil {
		return nil, c.fail(ctx, inv, registry, c.newError(inv, ErrorTypeSerialization, PhaseSerialize, "serialization failed", err))
	}
	if req == nil {
		return nil, c.fail(ctx, inv, registry, c.newError(inv, ErrorTypeSerialization, PhaseSerialize, "serializer returned no request", nil))
	}
	req.Operation = op.Name
	inv.req = req
	inv.hc.Request = req

	inv.retry = c.strategy.NewState(ResolveOr(inv.cfg, KeyMaxAttempts, 0), c.bucket)

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			stop := c.ctxError(inv, PhaseResolveEndpoint, ctxErr)
			if inv.retry.Attempt > 0 {
				// The last attempt's error hooks already fired when it
				// failed; firing them again here would break pairing.
				c.metrics.RecordError(stop.Type, op.Name)
				return nil, stop
			}
			return nil, c.fail(ctx, inv, registry, stop)
		}

		attempt := inv.retry.Attempt + 1
		inv.scope.resetAttempt()
		inv.hc.Attempt = attempt
		inv.hc.Response = nil
		inv.hc.Err = nil

		output, attemptErr := c.runAttempt(ctx, inv, attempt, registry)
		inv.retry.Attempt = attempt

		if attemptErr == nil {
			inv.hc.Output = output
			if herr := registry.onSuccess(ctx, inv.hc, &inv.scope); herr != nil {
				return nil, c.fail(ctx, inv, registry, c.newError(inv, ErrorTypeInterceptor, PhaseComplete, "on-success hook failed", herr))
			}
			// The run only counts as a success once the hooks accept it.
			if c.bucket != nil {
				c.bucket.Regenerate(1)
				c.metrics.RecordRetryBudgetTokens(c.bucket.Tokens())
			}
			c.observePhase(inv, PhaseComplete, attempt, inv.start, nil)
			return output, nil
		}

		// The attempt's paired error hooks fire exactly once, regardless of
		// whether the failure turns out to be terminal or retried.
		inv.hc.Err = attemptErr
		registry.onError(ctx, inv.hc, &inv.scope)
		c.metrics.RecordError(errorTypeOf(attemptErr), op.Name)

		if !retryablePhase(attemptErr) {
			return nil, attemptErr
		}
		kind, retryable := c.classifier.Classify(attemptErr)
		if !retryable {
			return nil, attemptErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			stop := c.ctxError(inv, phaseOf(attemptErr), ctxErr)
			c.metrics.RecordError(stop.Type, op.Name)
			return nil, stop
		}

		delay, ok := c.strategy.NextDelay(inv.retry, kind)
		if !ok {
			return nil, c.retryExhausted(inv, kind, attemptErr)
		}

		c.metrics.RecordRetry(op.Name, kind)
		if c.bucket != nil {
			c.metrics.RecordRetryBudgetTokens(c.bucket.Tokens())
		}
		if c.logger != nil {
			c.logger.Info("scheduling retry",
				"operation", op.Name, "invocationID", inv.id,
				"attempt", attempt, "kind", kind.String(), "backoff", delay)
		}
		if sleepErr := c.clock.Sleep(ctx, delay); sleepErr != nil {
			stop := c.ctxError(inv, phaseOf(attemptErr), sleepErr)
			c.metrics.RecordError(stop.Type, op.Name)
			return nil, stop
		}
	}
}

// runAttempt executes ResolveEndpoint through Deserialize once. Errors come
// back wrapped with phase identity and attempt number.
func (c *Client) runAttempt(ctx context.Context, inv *invocation, attempt int, registry *interceptorRegistry) (any, error) {
	if timeout, ok := Resolve(inv.cfg, KeyAttemptTimeout); ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	phaseStart := c.clock.Now()
	endpoint, err := c.resolver.ResolveEndpoint(inv.cfg, inv.op)
	c.observePhase(inv, PhaseResolveEndpoint, attempt, phaseStart, err)
	if err != nil {
		return nil, c.newError(inv, ErrorTypeEndpointResolution, PhaseResolveEndpoint, "endpoint resolution failed", err)
	}
	inv.endpoint = endpoint

	if c.identity != nil {
		phaseStart = c.clock.Now()
		identity, err := c.identity.Resolve(ctx)
		c.observePhase(inv, PhaseResolveIdentity, attempt, phaseStart, err)
		if err != nil {
			return nil, c.newError(inv, ErrorTypeIdentityResolution, PhaseResolveIdentity, "identity resolution failed", err)
		}
		inv.identity = identity
	}

	// Sign a fresh clone each attempt: signatures may be bound to the
	// endpoint or the current time.
	base := inv.req.Clone()
	base.Endpoint = endpoint
	phaseStart = c.clock.Now()
	signed, err := c.signer.Sign(base, inv.identity, inv.cfg)
	c.observePhase(inv, PhaseSign, attempt, phaseStart, err)
	if err != nil {
		return nil, c.newError(inv, ErrorTypeSigning, PhaseSign, "signing failed", err)
	}
	inv.hc.Request = signed

	if err := registry.beforeTransmit(ctx, inv.hc, &inv.scope); err != nil {
		return nil, c.newError(inv, ErrorTypeInterceptor, PhaseTransmit, "before-transmit hook failed", err)
	}

	// Hooks may have swapped the request; transmit what they left behind.
	phaseStart = c.clock.Now()
	resp, err := c.connector.Transmit(ctx, inv.hc.Request)
	c.observePhase(inv, PhaseTransmit, attempt, phaseStart, err)
	if err != nil {
		return nil, c.newError(inv, ErrorTypeTransmit, PhaseTransmit, "transmit failed", err)
	}
	inv.hc.Response = resp

	if err := registry.beforeDeserialization(ctx, inv.hc, &inv.scope); err != nil {
		return nil, c.newError(inv, ErrorTypeInterceptor, PhaseDeserialize, "before-deserialization hook failed", err)
	}

	phaseStart = c.clock.Now()
	output, err := inv.op.Deserializer.Deserialize(resp)
	c.observePhase(inv, PhaseDeserialize, attempt, phaseStart, err)
	if err != nil {
		var modeled *ModeledError
		if errors.As(err, &modeled) {
			return nil, c.newError(inv, ErrorTypeModeledService, PhaseDeserialize, "service returned an error", err)
		}
		return nil, c.newError(inv, ErrorTypeDeserialization, PhaseDeserialize, "deserialization failed", err)
	}

	if err := registry.afterDeserialization(ctx, inv.hc, &inv.scope); err != nil {
		return nil, c.newError(inv, ErrorTypeInterceptor, PhaseDeserialize, "after-deserialization hook failed", err)
	}

	return output, nil
}

// fail finalizes a terminal error raised outside the attempt loop, firing
// the paired error hooks for whatever entered so far.
func (c *Client) fail(ctx context.Context, inv *invocation, registry *interceptorRegistry, err *OperationError) error {
	inv.hc.Err = err
	registry.onError(ctx, inv.hc, &inv.scope)
	c.metrics.RecordError(err.Type, inv.op.Name)
	return err
}

// newError wraps a phase-local failure with phase identity and attempt
// accounting. Context expirations override the phase type so timeouts and
// cancellations keep their own classification.
func (c *Client) newError(inv *invocation, errType string, phase Phase, msg string, cause error) *OperationError {
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		errType = ErrorTypeTimeout
	case errors.Is(cause, context.Canceled):
		errType = ErrorTypeCancellation
	}
	maxAttempts := 0
	if inv.retry != nil {
		maxAttempts = inv.retry.MaxAttempts
	}
	return &OperationError{
		Type:         errType,
		Phase:        phase,
		Message:      msg,
		Cause:        cause,
		Operation:    inv.op.Name,
		InvocationID: inv.id,
		Attempt:      inv.hc.Attempt,
		MaxAttempts:  maxAttempts,
		Timestamp:    c.clock.Now(),
		Duration:     c.clock.Now().Sub(inv.start),
	}
}

// ctxError maps a context error to its terminal classification: deadline
// expiry is a timeout, anything else a cancellation.
func (c *Client) ctxError(inv *invocation, phase Phase, cause error) *OperationError {
	errType := ErrorTypeCancellation
	msg := "operation canceled"
	if errors.Is(cause, context.DeadlineExceeded) {
		errType = ErrorTypeTimeout
		msg = "operation timed out"
	}
	return c.newError(inv, errType, phase, msg, cause)
}

// retryExhausted wraps the last classified error once the strategy stops
// granting retries, distinguishing budget exhaustion from the attempt bound.
func (c *Client) retryExhausted(inv *invocation, kind ErrorKind, last error) *OperationError {
	msg := "retry attempts exhausted"
	cause := last
	if kind == KindThrottling && inv.retry.Attempt < inv.retry.MaxAttempts {
		msg = "retry token budget exhausted"
		cause = fmt.Errorf("%w: %w", ErrRetryBudgetExhausted, last)
		c.metrics.RecordRetryBudgetDenied(inv.op.Name)
	}
	err := c.newError(inv, ErrorTypeRetryExhausted, phaseOf(last), msg, cause)
	c.metrics.RecordError(err.Type, inv.op.Name)
	return err
}

// observePhase records one phase transition to metrics and the event sink.
func (c *Client) observePhase(inv *invocation, phase Phase, attempt int, start time.Time, err error) {
	duration := c.clock.Now().Sub(start)
	c.metrics.RecordPhase(phase, duration)
	if c.sink != nil {
		c.sink.Emit(PhaseEvent{
			Operation:    inv.op.Name,
			InvocationID: inv.id,
			Phase:        phase,
			Attempt:      attempt,
			Duration:     duration,
			Err:          err,
		})
	}
}

// retryablePhase reports whether the error came from a phase eligible for
// the retry loop. Serialize, Sign, hook and modeled-service failures are
// structurally terminal no matter what a classifier says.
func retryablePhase(err error) bool {
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		return false
	}
	switch opErr.Type {
	case ErrorTypeEndpointResolution, ErrorTypeIdentityResolution,
		ErrorTypeTransmit, ErrorTypeDeserialization, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

func phaseOf(err error) Phase {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Phase
	}
	return PhaseInit
}

func errorTypeOf(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return "Unknown"
}

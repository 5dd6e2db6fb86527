package gamelan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultRetryTokenCapacity is the token budget a client starts with unless
// WithRetryTokenBudget overrides it.
const DefaultRetryTokenCapacity = 500

// DefaultIdentityBuffer is the lead time before credential expiry at which a
// proactive refresh is attempted.
const DefaultIdentityBuffer = 10 * time.Second

// Client executes typed remote operations through the orchestrator
// pipeline: serialize, resolve endpoint and identity, sign, transmit,
// deserialize, with retries, interceptors and phase observability layered
// around every attempt. A Client is safe for concurrent use; concurrent
// calls share only the immutable configuration layers, the identity cache
// and the retry token budget.
type Client struct {
	connector  Connector
	resolver   EndpointResolver
	signer     Signer
	classifier Classifier
	strategy   RetryStrategy
	bucket     *TokenBucket

	provider       IdentityProvider
	identity       *IdentityCache
	onRefreshError RefreshErrorHandler

	interceptors []Interceptor

	layer    *LayerBuilder
	config   *Layer
	extras   []*Layer
	defaults *Layer

	metrics *MetricsCollector
	logger  Logger
	sink    EventSink
	clock   Clock

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	c := &Client{
		resolver:   ConfigEndpointResolver{},
		signer:     AnonymousSigner{},
		classifier: DefaultClassifier{},
		strategy:   NewStandardRetryStrategy(),
		bucket:     NewTokenBucket(DefaultRetryTokenCapacity),
		layer:      NewLayer("client"),
		clock:      realClock{},
	}

	for _, option := range options {
		option(c)
	}

	c.config = c.layer.Freeze()
	c.defaults = builtinDefaults()

	if c.sink == nil && c.logger != nil {
		c.sink = NewLogSink(c.logger)
	}

	if c.identity == nil && c.provider != nil {
		buffer := ResolveOr(NewView(c.config, c.defaults), KeyIdentityBuffer, DefaultIdentityBuffer)
		c.identity = NewIdentityCache(c.provider, buffer)
	}
	if c.identity != nil {
		c.identity.clock = c.clock
		c.identity.metrics = c.metrics
		if c.onRefreshError != nil {
			c.identity.onRefreshError = c.onRefreshError
		} else if c.logger != nil {
			logger := c.logger
			c.identity.onRefreshError = func(err error) {
				logger.Warn("background identity refresh failed", "error", err.Error())
			}
		}
	}

	if err := c.validateConfiguration(); err != nil {
		c.validationError = err
	}

	return c
}

func builtinDefaults() *Layer {
	b := NewLayer("defaults")
	Set(b, KeyMaxAttempts, 3)
	Set(b, KeyIdentityBuffer, DefaultIdentityBuffer)
	return b.Freeze()
}

// Execute runs one typed operation invocation and returns its typed output
// or a classified *OperationError. Internal retries are not observable
// except through the event sink and the final error's attempt count.
func (c *Client) Execute(ctx context.Context, op *Operation, input any, opts ...CallOption) (any, error) {
	if c.validationError != nil {
		return nil, &OperationError{
			Type:      ErrorTypeConstruction,
			Message:   "client configuration invalid",
			Cause:     c.validationError,
			Timestamp: c.clock.Now(),
		}
	}
	if err := validateOperation(op); err != nil {
		return nil, &OperationError{
			Type:      ErrorTypeConstruction,
			Message:   "operation invalid",
			Cause:     err,
			Timestamp: c.clock.Now(),
		}
	}

	co := callOptions{layer: NewLayer("call")}
	for _, opt := range opts {
		opt(&co)
	}

	layers := make([]*Layer, 0, len(c.extras)+len(co.extras)+4)
	layers = append(layers, co.layer.Freeze())
	layers = append(layers, co.extras...)
	layers = append(layers, op.Config, c.config)
	layers = append(layers, c.extras...)
	layers = append(layers, c.defaults)
	view := NewView(layers...)

	registry := &interceptorRegistry{}
	registry.interceptors = append(registry.interceptors, c.interceptors...)
	registry.interceptors = append(registry.interceptors, co.interceptors...)

	inv := &invocation{
		id:    uuid.NewString(),
		op:    op,
		cfg:   view,
		start: c.clock.Now(),
	}
	inv.hc = &HookContext{
		Operation:    op.Name,
		InvocationID: inv.id,
		Config:       view,
		Input:        input,
	}

	c.metrics.RecordOperationStart(op.Name)
	defer c.metrics.RecordOperationEnd(op.Name)

	output, err := c.run(ctx, inv, input, registry)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.RecordOperation(op.Name, outcome, c.clock.Now().Sub(inv.start))
	return output, err
}

func validateOperation(op *Operation) error {
	switch {
	case op == nil:
		return fmt.Errorf("operation is nil")
	case op.Name == "":
		return fmt.Errorf("operation name is empty")
	case op.Serializer == nil:
		return fmt.Errorf("operation %q has no serializer", op.Name)
	case op.Deserializer == nil:
		return fmt.Errorf("operation %q has no deserializer", op.Name)
	}
	return nil
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// validateConfiguration checks the composed configuration for defects that
// would otherwise surface as confusing mid-call failures.
func (c *Client) validateConfiguration() error {
	var problems []string

	if c.connector == nil {
		problems = append(problems, "connector must be set")
	}
	if c.resolver == nil {
		problems = append(problems, "endpoint resolver cannot be nil")
	}
	if c.signer == nil {
		problems = append(problems, "signer cannot be nil")
	}
	if c.classifier == nil {
		problems = append(problems, "classifier cannot be nil")
	}
	if c.strategy == nil {
		problems = append(problems, "retry strategy cannot be nil")
	}
	if std, ok := c.strategy.(*StandardRetryStrategy); ok {
		if std.MaxAttempts < 1 {
			problems = append(problems, "retry MaxAttempts must be at least 1")
		}
		if std.InitialBackoff <= 0 {
			problems = append(problems, "retry InitialBackoff must be positive")
		}
		if std.MaxBackoff < std.InitialBackoff {
			problems = append(problems, "retry MaxBackoff must be at least InitialBackoff")
		}
		if std.Multiplier <= 0 {
			problems = append(problems, "retry Multiplier must be positive")
		}
		if std.Jitter < 0 || std.Jitter > 1 {
			problems = append(problems, "retry Jitter must be between 0 and 1")
		}
		if std.ThrottleCost < 1 {
			problems = append(problems, "retry ThrottleCost must be at least 1")
		}
	}
	if c.bucket != nil && c.bucket.Capacity() <= 0 {
		problems = append(problems, "retry token budget capacity must be positive")
	}
	if buffer, ok := Resolve(NewView(c.config, c.defaults), KeyIdentityBuffer); ok && buffer < 0 {
		problems = append(problems, "identity buffer must be non-negative")
	}
	for i, interceptor := range c.interceptors {
		if interceptor == nil {
			problems = append(problems, fmt.Sprintf("interceptor[%d] cannot be nil", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %v", problems)
	}
	return nil
}

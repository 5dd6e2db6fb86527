package gamelan

import "time"

// WithConnector sets the transport used to transmit signed wire requests.
// A connector is required.
func WithConnector(connector Connector) Option {
	return func(c *Client) {
		c.connector = connector
	}
}

// WithEndpoint fixes the endpoint URL in the client configuration tier.
// Operation- and call-tier overrides still take precedence.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		Set(c.layer, KeyEndpoint, Endpoint{URL: url})
	}
}

// WithEndpointResolver replaces the default configuration-driven resolver.
func WithEndpointResolver(resolver EndpointResolver) Option {
	return func(c *Client) {
		c.resolver = resolver
	}
}

// WithSigner sets the request signing strategy. The default passes requests
// through unsigned.
func WithSigner(signer Signer) Option {
	return func(c *Client) {
		c.signer = signer
	}
}

// WithIdentityProvider sets the credential source. The client owns one
// identity cache around it for the client's whole lifetime.
func WithIdentityProvider(provider IdentityProvider) Option {
	return func(c *Client) {
		c.provider = provider
	}
}

// WithIdentityCache injects a pre-built cache, for sharing credentials
// between clients constructed from the same configuration scope.
func WithIdentityCache(cache *IdentityCache) Option {
	return func(c *Client) {
		c.identity = cache
	}
}

// WithIdentityBuffer sets the lead time before expiry at which identity
// material is proactively refreshed.
func WithIdentityBuffer(d time.Duration) Option {
	return func(c *Client) {
		Set(c.layer, KeyIdentityBuffer, d)
	}
}

// WithRefreshErrorHandler routes background identity refresh failures.
// Without a handler they are logged when a logger is configured, otherwise
// dropped; the next resolve attempts a fresh provider call either way.
func WithRefreshErrorHandler(handler RefreshErrorHandler) Option {
	return func(c *Client) {
		c.onRefreshError = handler
	}
}

// WithMaxAttempts bounds total attempts per call in the client tier.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		Set(c.layer, KeyMaxAttempts, n)
	}
}

// WithAttemptTimeout bounds each attempt from endpoint resolution through
// deserialization.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) {
		Set(c.layer, KeyAttemptTimeout, d)
	}
}

// WithOperationTimeout bounds the whole call including backoff delays.
func WithOperationTimeout(d time.Duration) Option {
	return func(c *Client) {
		Set(c.layer, KeyOperationTimeout, d)
	}
}

// WithRetryStrategy replaces the standard retry strategy.
func WithRetryStrategy(strategy RetryStrategy) Option {
	return func(c *Client) {
		c.strategy = strategy
	}
}

// WithClassifier replaces the default error classifier.
func WithClassifier(classifier Classifier) Option {
	return func(c *Client) {
		c.classifier = classifier
	}
}

// WithRetryTokenBudget sizes the client's retry token budget. Throttled
// retries drain it; successful attempts regenerate it one token at a time.
func WithRetryTokenBudget(capacity int64) Option {
	return func(c *Client) {
		c.bucket = NewTokenBucket(capacity)
	}
}

// WithInterceptors appends interceptors in registration order.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// WithConfig appends an extra client-tier layer, e.g. one loaded from a
// profile file. Explicit client options take precedence over it.
func WithConfig(layer *Layer) Option {
	return func(c *Client) {
		if layer != nil {
			c.extras = append(c.extras, layer)
		}
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the structured logger. Without an explicit event sink the
// logger also receives one debug line per phase transition.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithEventSink sets the phase event sink. Sinks must not block.
func WithEventSink(sink EventSink) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

// WithClock replaces the wall clock, primarily for tests.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// callOptions accumulates the per-call override tier.
type callOptions struct {
	layer        *LayerBuilder
	extras       []*Layer
	interceptors []Interceptor
}

// CallOption configures a single Execute call.
type CallOption func(*callOptions)

// WithCallEndpoint overrides the endpoint for this call only.
func WithCallEndpoint(url string) CallOption {
	return func(co *callOptions) {
		Set(co.layer, KeyEndpoint, Endpoint{URL: url})
	}
}

// WithCallMaxAttempts overrides the attempt bound for this call only.
func WithCallMaxAttempts(n int) CallOption {
	return func(co *callOptions) {
		Set(co.layer, KeyMaxAttempts, n)
	}
}

// WithCallAttemptTimeout overrides the attempt timeout for this call only.
func WithCallAttemptTimeout(d time.Duration) CallOption {
	return func(co *callOptions) {
		Set(co.layer, KeyAttemptTimeout, d)
	}
}

// WithCallOperationTimeout overrides the overall timeout for this call only.
func WithCallOperationTimeout(d time.Duration) CallOption {
	return func(co *callOptions) {
		Set(co.layer, KeyOperationTimeout, d)
	}
}

// WithCallConfig adds a pre-built layer to the per-call override tier.
func WithCallConfig(layer *Layer) CallOption {
	return func(co *callOptions) {
		if layer != nil {
			co.extras = append(co.extras, layer)
		}
	}
}

// WithCallInterceptors appends interceptors after the client's, for this
// call only.
func WithCallInterceptors(interceptors ...Interceptor) CallOption {
	return func(co *callOptions) {
		co.interceptors = append(co.interceptors, interceptors...)
	}
}

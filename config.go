package gamelan

import "time"

// Key identifies a typed configuration value. The name must be stable and
// unique per value kind; the type parameter pins the value's Go type so
// resolution never needs reflection.
type Key[T any] struct {
	name string
}

// NewKey creates a typed configuration key.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's stable identifier.
func (k Key[T]) Name() string {
	return k.name
}

// Standard keys recognized by the orchestrator. Additional keys may be
// defined by serializers, signers and interceptors for their own use.
var (
	// KeyEndpoint overrides endpoint resolution with a fixed endpoint.
	KeyEndpoint = NewKey[Endpoint]("endpoint")
	// KeyMaxAttempts bounds the total attempt count for one operation call.
	KeyMaxAttempts = NewKey[int]("retry.max_attempts")
	// KeyAttemptTimeout bounds a single attempt (resolve through deserialize).
	KeyAttemptTimeout = NewKey[time.Duration]("timeout.attempt")
	// KeyOperationTimeout bounds the whole call including retries and backoff.
	KeyOperationTimeout = NewKey[time.Duration]("timeout.operation")
	// KeyIdentityBuffer is the lead time before expiry at which identity
	// material is proactively refreshed.
	KeyIdentityBuffer = NewKey[time.Duration]("identity.buffer")
)

// Layer is an immutable, named collection of type-keyed values. Layers are
// created through LayerBuilder and never change after Freeze, so concurrent
// reads need no locking.
type Layer struct {
	name   string
	values map[string]any
}

// Name returns the layer's name, used for diagnostics only.
func (l *Layer) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// LayerBuilder accumulates values for a configuration layer. It is not safe
// for concurrent use; Freeze produces the shareable snapshot.
type LayerBuilder struct {
	name   string
	values map[string]any
}

// NewLayer starts a builder for a named configuration layer.
func NewLayer(name string) *LayerBuilder {
	return &LayerBuilder{
		name:   name,
		values: make(map[string]any),
	}
}

// Set stores a typed value under key in the builder. It returns the builder
// for chaining. Set is a package function because Go methods cannot carry
// their own type parameters.
func Set[T any](b *LayerBuilder, key Key[T], value T) *LayerBuilder {
	b.values[key.name] = value
	return b
}

// Freeze produces the immutable layer. The builder may continue to be used;
// later mutations do not affect already-frozen layers.
func (b *LayerBuilder) Freeze() *Layer {
	values := make(map[string]any, len(b.values))
	for k, v := range b.values {
		values[k] = v
	}
	return &Layer{name: b.name, values: values}
}

// View is a precedence-ordered composite of layers, most specific first.
// A frozen View resolves every key to the same value for its whole lifetime.
type View struct {
	layers []*Layer
}

// NewView composes layers into a view. Layers are consulted in argument
// order, so pass the per-call override first and defaults last. Nil layers
// are skipped.
func NewView(layers ...*Layer) *View {
	v := &View{layers: make([]*Layer, 0, len(layers))}
	for _, l := range layers {
		if l != nil {
			v.layers = append(v.layers, l)
		}
	}
	return v
}

// Resolve walks the view's layers from most specific to least specific and
// returns the first value present for key. Absence is a valid outcome, not
// an error.
func Resolve[T any](v *View, key Key[T]) (T, bool) {
	var zero T
	if v == nil {
		return zero, false
	}
	for _, l := range v.layers {
		if raw, ok := l.values[key.name]; ok {
			if typed, ok := raw.(T); ok {
				return typed, true
			}
		}
	}
	return zero, false
}

// ResolveOr resolves key or returns fallback when the key is absent.
func ResolveOr[T any](v *View, key Key[T], fallback T) T {
	if value, ok := Resolve(v, key); ok {
		return value
	}
	return fallback
}

package gamelan

import "context"

// Request is the protocol-agnostic wire request the orchestrator threads
// through serialization, signing and transmission. The body is a byte slice
// so retries never need to re-serialize.
type Request struct {
	Operation string
	Endpoint  Endpoint
	Headers   map[string]string
	Body      []byte
}

// Clone returns a deep copy safe to mutate independently, used so a signer
// never alters the request a later attempt re-signs.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := &Request{
		Operation: r.Operation,
		Endpoint:  r.Endpoint,
	}
	if r.Headers != nil {
		out.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			out.Headers[k] = v
		}
	}
	if r.Body != nil {
		out.Body = make([]byte, len(r.Body))
		copy(out.Body, r.Body)
	}
	return out
}

// SetHeader sets a header, allocating the map on first use.
func (r *Request) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
}

// Response is the protocol-agnostic wire response handed to deserializers.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Endpoint is a resolved destination for wire requests.
type Endpoint struct {
	URL     string
	Headers map[string]string
}

// Operation describes one typed remote operation: its name, its wire codec,
// and an optional operation-tier configuration layer that sits between the
// per-call override and the client configuration.
type Operation struct {
	Name         string
	Serializer   Serializer
	Deserializer Deserializer
	Config       *Layer
}

// Serializer turns a typed operation input into a wire request. Serializer
// errors indicate a local construction defect and are never retried.
type Serializer interface {
	Serialize(input any, cfg *View) (*Request, error)
}

// SerializerFunc adapts a function to the Serializer interface.
type SerializerFunc func(input any, cfg *View) (*Request, error)

func (f SerializerFunc) Serialize(input any, cfg *View) (*Request, error) {
	return f(input, cfg)
}

// Deserializer turns a wire response into a typed output or a modeled
// service error. Malformed responses yield a Deserialize-phase error.
type Deserializer interface {
	Deserialize(resp *Response) (any, error)
}

// DeserializerFunc adapts a function to the Deserializer interface.
type DeserializerFunc func(resp *Response) (any, error)

func (f DeserializerFunc) Deserialize(resp *Response) (any, error) {
	return f(resp)
}

// Connector transmits a signed wire request and returns the wire response.
// Transport errors are classified by the retry strategy.
type Connector interface {
	Transmit(ctx context.Context, req *Request) (*Response, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, req *Request) (*Response, error)

func (f ConnectorFunc) Transmit(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// EndpointResolver produces the endpoint for an attempt. Resolution runs on
// every attempt because endpoints may rotate between retries.
type EndpointResolver interface {
	ResolveEndpoint(cfg *View, op *Operation) (Endpoint, error)
}

// EndpointResolverFunc adapts a function to the EndpointResolver interface.
type EndpointResolverFunc func(cfg *View, op *Operation) (Endpoint, error)

func (f EndpointResolverFunc) ResolveEndpoint(cfg *View, op *Operation) (Endpoint, error) {
	return f(cfg, op)
}

// Signer applies credential material to a wire request. Signing failures
// indicate a local defect and are never retried; the signature itself is
// recomputed on every attempt since it may be time- or endpoint-dependent.
type Signer interface {
	Sign(req *Request, identity *Identity, cfg *View) (*Request, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(req *Request, identity *Identity, cfg *View) (*Request, error)

func (f SignerFunc) Sign(req *Request, identity *Identity, cfg *View) (*Request, error) {
	return f(req, identity, cfg)
}

// IdentityProvider fetches fresh identity material. It is invoked only by
// the identity cache, which guarantees single-flight refreshes.
type IdentityProvider interface {
	ProvideIdentity(ctx context.Context) (*Identity, error)
}

// IdentityProviderFunc adapts a function to the IdentityProvider interface.
type IdentityProviderFunc func(ctx context.Context) (*Identity, error)

func (f IdentityProviderFunc) ProvideIdentity(ctx context.Context) (*Identity, error) {
	return f(ctx)
}

// Option represents a client configuration option.
type Option func(*Client)

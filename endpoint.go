package gamelan

import "context"

// ConfigEndpointResolver resolves the endpoint from the KeyEndpoint
// configuration key, honoring per-call and per-operation overrides through
// normal layer precedence. It is the client's default resolver.
type ConfigEndpointResolver struct{}

// ResolveEndpoint implements the EndpointResolver interface.
func (ConfigEndpointResolver) ResolveEndpoint(cfg *View, _ *Operation) (Endpoint, error) {
	if ep, ok := Resolve(cfg, KeyEndpoint); ok && ep.URL != "" {
		return ep, nil
	}
	return Endpoint{}, ErrNoEndpoint
}

// StaticEndpointResolver always resolves the same endpoint, ignoring
// configuration. Useful for tests and single-host deployments.
type StaticEndpointResolver struct {
	Endpoint Endpoint
}

// ResolveEndpoint implements the EndpointResolver interface.
func (r StaticEndpointResolver) ResolveEndpoint(*View, *Operation) (Endpoint, error) {
	if r.Endpoint.URL == "" {
		return Endpoint{}, ErrNoEndpoint
	}
	return r.Endpoint, nil
}

// AnonymousSigner passes requests through unsigned, for services that do
// not authenticate. It never touches the identity.
type AnonymousSigner struct{}

// Sign implements the Signer interface.
func (AnonymousSigner) Sign(req *Request, _ *Identity, _ *View) (*Request, error) {
	return req, nil
}

// StaticIdentityProvider returns a fixed identity, typically for tests or
// environment-injected credentials that never rotate.
type StaticIdentityProvider struct {
	Identity *Identity
}

// ProvideIdentity implements the IdentityProvider interface.
func (p StaticIdentityProvider) ProvideIdentity(context.Context) (*Identity, error) {
	return p.Identity, nil
}

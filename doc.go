// Package gamelan is the request-execution orchestrator shared by generated
// typed service clients: a phase state machine that turns a typed operation
// input into a signed wire request, transmits it, and produces a typed
// output or classified error.
//
//   - Layered, type-keyed configuration (call > operation > client > defaults)
//   - Single-flight identity cache with stale-while-revalidate refresh
//   - Retries with exponential backoff + jitter and a retry token budget
//   - Interceptor hooks on every phase, with scoped before/after pairing
//   - Pluggable serializer, connector, endpoint resolver and signer
//   - Prometheus metrics and zerolog-backed structured phase events
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Wire protocols and signature algorithms stay outside: the package
//     invokes them through interfaces, it does not define them
//
// Typical usage:
//
//	client := gamelan.New(
//	    gamelan.WithConnector(transport),
//	    gamelan.WithEndpoint("https://api.example.com"),
//	    gamelan.WithIdentityProvider(tokenProvider),
//	    gamelan.WithMaxAttempts(3),
//	    gamelan.WithRetryTokenBudget(500),
//	)
//	out, err := client.Execute(ctx, getThingOp, &GetThingInput{ID: "42"})
//
// One Execute call yields exactly one final result; internal retries are
// observable only through the event sink and the final error's attempt
// count.
package gamelan

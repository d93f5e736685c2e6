// Package declarest compiles a declarative JSON description of remote REST
// APIs into callable endpoint handles:
//
//   - Config-driven clients: base URL, endpoints, auth, caching and retry
//     all live in a JSON document with ${VAR:default} placeholders
//   - Auth variants: Bearer, Basic, API key, and a dynamic-token flow with
//     automatic login / refresh and single-flight renewal gating
//   - Pluggable cache port with in-memory and Redis backends and lazy expiry
//   - Bounded exponential-backoff retries with jitter and an observer hook
//   - A typed error taxonomy (configuration, validation, authentication,
//     API, retry exhaustion, cache) that survives errors.Is / errors.As
//   - Prometheus metrics and lightweight structured event logging
//
// Design goals:
//   - Small surface area: load a config, get a Client, invoke by name
//   - Explicit lookup tables and ownership, no runtime code generation
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via functional options, middleware and pluggable ports
//
// Typical usage:
//
//	cfg, err := declarest.LoadConfig("apis.json")
//	client, err := cfg.Client("billing-api", declarest.WithMetrics())
//	resp, err := client.Invoke(ctx, "get_invoice", declarest.CallArgs{
//	    Params: map[string]any{"id": 42},
//	})
//
// Every invocation either returns a mapped *Response or exactly one error
// from the taxonomy; cache failures degrade to misses and never become the
// call's result.
package declarest

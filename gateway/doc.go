// Package gateway composes the storage, throttle, cache, retry,
// circuit-breaker, timeout, and auth/RBAC layers into a single compiled
// policy chain per path, and dispatches requests through it.
//
// # Quick Start
//
//	cfg, err := gateway.LoadConfig("gateway.yaml")
//	gw, err := gateway.New(*cfg, gateway.WithCacheProvider(cache.NewMemoryProvider()))
//	http.ListenAndServe(":8080", gw)
//
// A request is matched against the configured paths in declaration order;
// the first match's compiled feature chain runs stats tracking, timeout,
// retry, circuit-breaker, rate-limit, cache, monitoring, and auth/RBAC
// (innermost) before forwarding to a chosen backend or a mounted local
// handler. The chain for each compiled feature is built once and reused
// for the life of the Gateway.
package gateway

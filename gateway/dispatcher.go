package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/krishna-kudari/apigateway/auth"
	"github.com/krishna-kudari/apigateway/cache"
	"github.com/krishna-kudari/apigateway/circuitbreaker"
	"github.com/krishna-kudari/apigateway/forward"
	"github.com/krishna-kudari/apigateway/gatewayerrors"
	"github.com/krishna-kudari/apigateway/loadbalancer"
	"github.com/krishna-kudari/apigateway/metrics"
	"github.com/krishna-kudari/apigateway/ratelimit"
	"github.com/krishna-kudari/apigateway/rbac"
	"github.com/krishna-kudari/apigateway/retry"
)

// Gateway dispatches inbound requests through the compiled policy chain
// for the first matching path (spec §4.13).
type Gateway struct {
	keyspace string
	compiled []*CompiledFeature
	fallback *CompiledFeature

	cacheProvider    cache.Provider
	redisForCompile  redis.UniversalClient
	metricsCollector *metrics.Collector
	stats            *Stats
	logger           zerolog.Logger

	lb        loadbalancer.LoadBalancer
	client    *http.Client
	local     http.Handler
	dashboard http.Handler

	dashboardPrefix string
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithCacheProvider sets the backing store for the cache feature.
func WithCacheProvider(p cache.Provider) Option {
	return func(g *Gateway) { g.cacheProvider = p }
}

// WithRedis switches rate-limit algorithms over to a Redis-backed store
// for every compiled path (call before New compiles the config).
func WithRedis(client redis.UniversalClient) Option {
	return func(g *Gateway) { g.redisForCompile = client }
}

// WithMetricsCollector instruments every compiled path's rate limiter
// with Prometheus admission counts, countdown latency, and backend error
// metrics (metrics.Wrap). Unset by default — instrumentation is opt-in
// since it requires the caller to own a Prometheus registry.
func WithMetricsCollector(c *metrics.Collector) Option {
	return func(g *Gateway) { g.metricsCollector = c }
}

// WithLogger overrides the gateway's zerolog.Logger. The default is
// zerolog.Nop(), which discards all output.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithLocalHandler mounts a handler served for unmatched paths, and as the
// innermost handler of matched paths when no backend servers are
// configured, e.g. for embedding the gateway in front of an in-process
// service.
func WithLocalHandler(h http.Handler) Option {
	return func(g *Gateway) { g.local = h }
}

// WithDashboardPrefix overrides the default "/_gateway" dashboard prefix.
func WithDashboardPrefix(prefix string) Option {
	return func(g *Gateway) { g.dashboardPrefix = prefix }
}

// WithHTTPClient overrides the client used to reach backend servers.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// New compiles cfg into a Gateway ready to dispatch requests.
func New(cfg GatewayConfig, opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		keyspace:        cfg.Keyspace,
		stats:           NewStats(defaultRingCapacity),
		logger:          zerolog.Nop(),
		client:          http.DefaultClient,
		dashboardPrefix: "/_gateway",
	}
	for _, o := range opts {
		o(gw)
	}
	gw.dashboard = newDashboard(gw)

	if len(cfg.Servers) > 0 {
		lb, err := loadbalancer.NewRoundRobin(cfg.Servers)
		if err != nil {
			return nil, err
		}
		gw.lb = lb
	}

	for _, pc := range cfg.Paths {
		cf, err := compilePath(pc, cfg.Keyspace, gw.redisForCompile, gw.metricsCollector)
		if err != nil {
			return nil, fmt.Errorf("gateway: compile path %q: %w", pc.Pattern, err)
		}
		gw.compiled = append(gw.compiled, cf)
	}
	if cfg.DefaultFeatures != nil {
		cf, err := compilePath(PathConfig{Pattern: "^.*$", Features: *cfg.DefaultFeatures}, cfg.Keyspace, gw.redisForCompile, gw.metricsCollector)
		if err != nil {
			return nil, fmt.Errorf("gateway: compile default features: %w", err)
		}
		gw.fallback = cf
	}

	return gw, nil
}

// ServeHTTP implements http.Handler (spec §4.13).
func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if strings.HasPrefix(r.URL.Path, gw.dashboardPrefix) {
		gw.dashboard.ServeHTTP(w, r)
		return
	}

	cf := gw.match(r.URL.Path)
	if cf == nil {
		if gw.local != nil {
			gw.local.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ASGI Gateway - No features configured")
		return
	}

	var hit bool
	rw := &statusCapture{ResponseWriter: w, status: http.StatusOK}
	ctx := cache.WithHitRecorder(r.Context(), &hit)

	handler := cf.compile(gw)
	err := handler(rw, r.WithContext(ctx))
	if err != nil {
		gatewayerrors.WriteJSON(rw, err)
	}

	gw.stats.Record(RequestRecord{
		Timestamp:      time.Now(),
		Method:         r.Method,
		Path:           r.URL.Path,
		Status:         rw.status,
		ResponseTimeMs: float64(time.Since(start).Microseconds()) / 1000,
		CacheHit:       hit,
	})
}

// ServeWS upgrades and proxies a WebSocket connection to a backend chosen
// by the load balancer. No path matching is done and none of the compiled
// middleware chain applies to the connection.
func (gw *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) error {
	target, err := gw.chooseBackend()
	if err != nil {
		return err
	}
	return forward.New(target, gw.client).ServeWS(w, r)
}

func (gw *Gateway) match(path string) *CompiledFeature {
	for _, cf := range gw.compiled {
		if cf.pattern.MatchString(path) {
			return cf
		}
	}
	return gw.fallback
}

func (gw *Gateway) chooseBackend() (string, error) {
	if gw.lb == nil {
		return "", loadbalancer.ErrNoServers
	}
	return gw.lb.Choose(), nil
}

// statusCapture records the status code written so Stats can see it
// without the forwarder or cache layer needing to report it explicitly.
type statusCapture struct {
	http.ResponseWriter
	status int
}

func (s *statusCapture) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// ─── Handler chain construction (spec §4.13 build order) ───────────────────

// compile builds and memoizes cf's handler chain, keyed by cf's own
// identity (one handler per compiled feature, never rebuilt). Stats
// tracking is the outermost layer per spec §4.13, but it is applied once
// in ServeHTTP around dispatch rather than per compiled feature.
// Dashboard requests and requests that match no path are not recorded.
func (cf *CompiledFeature) compile(gw *Gateway) Handler {
	cf.handlerOnce.Do(func() {
		h := gw.innermost(cf)
		if cf.authenticator != nil {
			h = authLayer(cf, h)
		}
		h = monitoringLayer(cf, gw, h)
		h = cacheLayer(cf, gw, h)
		if cf.limiter != nil {
			h = rateLimitLayer(cf, h)
		}
		if cf.breaker != nil {
			h = circuitBreakerLayer(cf, h)
		}
		if cf.retryConfig != nil {
			h = retryLayer(cf, h)
		}
		if cf.timeoutConfig != nil {
			h = timeoutLayer(cf, h)
		}
		cf.handler = h
	})
	return cf.handler
}

// innermost forwards to a chosen backend, or to the gateway's mounted
// local handler if no backends are configured.
func (gw *Gateway) innermost(cf *CompiledFeature) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		if gw.lb == nil {
			if gw.local != nil {
				gw.local.ServeHTTP(w, r)
				return nil
			}
			w.WriteHeader(http.StatusOK)
			return nil
		}
		target := gw.lb.Choose()
		forward.New(target, gw.client).ServeHTTP(w, r)
		return nil
	}
}

func timeoutLayer(cf *CompiledFeature, next Handler) Handler {
	seconds := cf.timeoutConfig.Seconds
	return func(w http.ResponseWriter, r *http.Request) error {
		done := make(chan error, 1)
		ctx, cancel := context.WithTimeout(r.Context(), secondsToDuration(seconds))
		defer cancel()
		go func() { done <- next(w, r.WithContext(ctx)) }()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return &gatewayerrors.DeadlineExceeded{}
		}
	}
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

func retryLayer(cf *CompiledFeature, next Handler) Handler {
	rc := cf.retryConfig
	return func(w http.ResponseWriter, r *http.Request) error {
		err := retry.Do(r.Context(), func(ctx context.Context) error {
			return next(w, r.WithContext(ctx))
		}, retry.WithMaxAttempts(rc.MaxAttempts), retry.WithWait(retry.Constant(secondsToDuration(rc.Wait))))
		if err == nil {
			return nil
		}
		var exhausted *retry.ErrMaxAttemptsExceeded
		if errors.As(err, &exhausted) {
			return &gatewayerrors.MaxRetriesExceeded{Cause: exhausted.Cause}
		}
		return err
	}
}

// breakerRecognizedFailure reports whether err should count against the
// circuit breaker's failure threshold. Rate-limit rejections are expected,
// client-driven outcomes, not upstream failures, so they pass through
// without tripping the breaker, per spec §4.13.
func breakerRecognizedFailure(err error) bool {
	var quota *gatewayerrors.QuotaExceeded
	var bucketFull *gatewayerrors.BucketFull
	if errors.As(err, &quota) || errors.As(err, &bucketFull) {
		return false
	}
	return true
}

func circuitBreakerLayer(cf *CompiledFeature, next Handler) Handler {
	b := cf.breaker
	return func(w http.ResponseWriter, r *http.Request) error {
		err := b.Call(func() error {
			return next(w, r)
		}, breakerRecognizedFailure)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return &gatewayerrors.CircuitOpen{}
		}
		return err
	}
}

func rateLimitLayer(cf *CompiledFeature, next Handler) Handler {
	rl := cf.rlConfig
	return func(w http.ResponseWriter, r *http.Request) error {
		key := clientKey(r)
		cd, err := cf.limiter.Countdown(r.Context(), key, rl.Quota, rl.Duration)
		if err != nil {
			var full *ratelimit.BucketFullError
			if errors.As(err, &full) {
				return &gatewayerrors.BucketFull{}
			}
			return &gatewayerrors.StorageUnavailable{Cause: err}
		}
		if cd != ratelimit.Admitted {
			return &gatewayerrors.QuotaExceeded{SecondsUntilAvailable: cd}
		}
		return next(w, r)
	}
}

func cacheLayer(cf *CompiledFeature, gw *Gateway, next Handler) Handler {
	if cf.cacheConfig == nil || gw.cacheProvider == nil {
		return next
	}
	ttl := secondsToDuration(cf.cacheConfig.ExpireSeconds)
	keyFn := cache.DefaultKeyFunc
	if cf.cacheConfig.CacheKey != "" {
		literal := cf.cacheConfig.CacheKey
		keyFn = func(*http.Request) string { return literal }
	}
	wrapped := cache.HTTPMiddleware(gw.cacheProvider, ttl, keyFn, toHTTPHandler(next))
	return fromHTTPHandler(wrapped)
}

func monitoringLayer(cf *CompiledFeature, gw *Gateway, next Handler) Handler {
	if cf.monitoring == nil {
		return next
	}
	threshold := cf.monitoring.LogThreshold
	return func(w http.ResponseWriter, r *http.Request) error {
		start := time.Now()
		err := next(w, r)
		if elapsed := time.Since(start); threshold > 0 && elapsed.Seconds() >= threshold {
			gw.logger.Warn().Str("path", r.URL.Path).Dur("elapsed", elapsed).Msg("slow request")
		}
		return err
	}
}

type userContextKey struct{}

func authLayer(cf *CompiledFeature, next Handler) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		user, err := cf.authenticator.Authenticate(r.Header)
		if err != nil {
			return mapAuthError(err)
		}
		if cf.rbacHandler != nil {
			username := user.Username
			if username == "" {
				username = rbac.ExtractUsername(user.Claims)
			}
			if err := cf.rbacHandler.Authorize(username, r.URL.Path); err != nil {
				return mapRBACError(err)
			}
		}
		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		return next(w, r.WithContext(ctx))
	}
}

// UserFromContext retrieves the authenticated user set by the gateway's
// auth layer, if any.
func UserFromContext(ctx context.Context) (auth.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(auth.User)
	return u, ok
}

func mapAuthError(err error) error {
	switch e := err.(type) {
	case auth.MissingAuthHeaderError:
		return &gatewayerrors.MissingAuthHeader{}
	case auth.InvalidAuthHeaderError:
		return &gatewayerrors.InvalidAuthHeader{Reason: e.Reason}
	case auth.InvalidCredentialsError:
		return &gatewayerrors.InvalidCredentials{}
	case auth.InvalidTokenError:
		return &gatewayerrors.InvalidToken{Reason: e.Reason}
	default:
		return err
	}
}

func mapRBACError(err error) error {
	if ad, ok := err.(*rbac.AccessDeniedError); ok {
		return &gatewayerrors.AccessDenied{
			User:     ad.User,
			Path:     ad.Path,
			Required: permissionStrings(ad.Required),
			Granted:  permissionStrings(ad.Granted),
		}
	}
	return err
}

func permissionStrings(perms []rbac.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = p.String()
	}
	return out
}

// clientKey identifies the caller for rate limiting, combining path and
// client IP so distinct endpoints get independent quotas.
func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return r.URL.Path + ":" + xff
	}
	return r.URL.Path + ":" + r.RemoteAddr
}

// ─── Handler <-> http.Handler adapters ──────────────────────────────────────

func toHTTPHandler(h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			gatewayerrors.WriteJSON(w, err)
		}
	})
}

func fromHTTPHandler(h http.Handler) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		h.ServeHTTP(w, r)
		return nil
	}
}

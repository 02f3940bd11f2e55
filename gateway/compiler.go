package gateway

import (
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/krishna-kudari/apigateway/auth"
	"github.com/krishna-kudari/apigateway/circuitbreaker"
	"github.com/krishna-kudari/apigateway/metrics"
	"github.com/krishna-kudari/apigateway/ratelimit"
	"github.com/krishna-kudari/apigateway/rbac"
)

// CompiledFeature is the result of compiling one PathConfig (spec §3,
// §4.12): a matched regex plus the instantiated, stateful collaborators
// for that path. Its circuit breaker is the only field mutated after
// compilation; the handler chain is built once and memoized.
type CompiledFeature struct {
	pattern *regexp.Regexp
	raw     PathConfig

	limiter       ratelimit.Algorithm
	rlConfig      *RateLimitConfig
	breaker       *circuitbreaker.Breaker
	cbConfig      *CircuitBreakerConfig
	retryConfig   *RetryConfig
	timeoutConfig *TimeoutConfig
	monitoring    *MonitoringConfig
	cacheConfig   *CacheConfig
	authenticator auth.Authenticator
	rbacHandler   *rbac.Handler
	authConfig    *AuthConfig

	handlerOnce sync.Once
	handler     Handler
}

// compilePath builds a CompiledFeature for one PathConfig, instantiating
// the rate limiter, circuit breaker, and auth/RBAC collaborators named by
// its FeatureConfig. Mirrors spec §4.12's "_compile_features".
func compilePath(pc PathConfig, keyspace string, rdb redis.UniversalClient, collector *metrics.Collector) (*CompiledFeature, error) {
	re, err := compileRoutePattern(pc.Pattern)
	if err != nil {
		return nil, err
	}

	cf := &CompiledFeature{
		pattern: re,
		raw:     pc,
	}

	f := pc.Features
	if f.RateLimit != nil {
		cf.rlConfig = f.RateLimit
		algo, err := buildLimiter(*f.RateLimit, keyspace, rdb)
		if err != nil {
			return nil, err
		}
		if collector != nil {
			algo = metrics.Wrap(algo, rateLimitMetricsName(f.RateLimit.Algorithm), collector)
		}
		cf.limiter = algo
	}
	if f.CircuitBreaker != nil {
		cf.cbConfig = f.CircuitBreaker
		cf.breaker = circuitbreaker.New(f.CircuitBreaker.FailureThreshold,
			time.Duration(f.CircuitBreaker.RecoveryTimeout*float64(time.Second)))
	}
	cf.retryConfig = f.Retry
	cf.timeoutConfig = f.Timeout
	cf.monitoring = f.Monitoring
	cf.cacheConfig = f.Cache

	if f.Auth != nil {
		cf.authConfig = f.Auth
		authenticator, err := buildAuthenticator(*f.Auth)
		if err != nil {
			return nil, err
		}
		cf.authenticator = authenticator
		if f.Auth.RBAC != nil {
			cf.rbacHandler = buildRBACHandler(*f.Auth.RBAC)
		}
	}

	return cf, nil
}

func buildLimiter(rl RateLimitConfig, keyspace string, rdb redis.UniversalClient) (ratelimit.Algorithm, error) {
	b := ratelimit.NewBuilder().KeyPrefix(keyspace)
	switch rl.Algorithm {
	case "sliding_window":
		b = b.SlidingWindow()
	case "token_bucket":
		b = b.TokenBucket()
	case "leaky_bucket":
		b = b.LeakyBucket(rl.BucketSize)
	case "fixed_window", "":
		b = b.FixedWindow()
	default:
		b = b.FixedWindow()
	}
	if rdb != nil {
		b = b.Redis(rdb)
	}
	return b.Build()
}

// rateLimitMetricsName maps a path's configured algorithm name to the
// metrics package's algorithm label constants, defaulting the same way
// buildLimiter does.
func rateLimitMetricsName(algorithm string) string {
	switch algorithm {
	case "sliding_window":
		return metrics.SlidingWindow
	case "token_bucket":
		return metrics.TokenBucket
	case "leaky_bucket":
		return metrics.LeakyBucket
	default:
		return metrics.FixedWindow
	}
}

func buildAuthenticator(cfg AuthConfig) (auth.Authenticator, error) {
	switch cfg.Type {
	case "jwt":
		return auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:    cfg.Secret,
			Algorithm: cfg.Algorithm,
			VerifyExp: boolOr(cfg.VerifyExp, true),
			VerifyNbf: boolOr(cfg.VerifyNbf, true),
			VerifyIat: boolOr(cfg.VerifyIat, true),
			Audience:  cfg.Audience,
			Issuer:    cfg.Issuer,
		}), nil
	default:
		return auth.NewBasicAuthenticator(cfg.Username, cfg.Password), nil
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func buildRBACHandler(cfg RBACConfig) *rbac.Handler {
	rc := rbac.NewConfig()
	rc.AllowAny = cfg.AllowAny
	for name, role := range cfg.Roles {
		r, err := rbac.NewRole(name, role.Description)
		if err != nil {
			continue
		}
		for _, permStr := range role.Permissions {
			if p, err := rbac.ParsePermission(permStr); err == nil {
				r.AddPermission(p)
			}
		}
		rc.AddRole(r)
	}
	if cfg.DefaultRole != "" {
		rc.SetDefaultRole(cfg.DefaultRole)
	}
	for user, roles := range cfg.UserRoles {
		for _, role := range roles {
			rc.AddUserRole(user, role)
		}
	}
	for pattern, perms := range cfg.Routes {
		var parsed []rbac.Permission
		for _, s := range perms {
			if p, err := rbac.ParsePermission(s); err == nil {
				parsed = append(parsed, p)
			}
		}
		_ = rc.AddRoutePermission(pattern, parsed...)
	}
	return rbac.NewHandler(rc)
}

// compileRoutePattern turns a path pattern into a regex per spec §4.12: a
// `^`-prefixed pattern is used verbatim (already a regex); a pattern
// containing glob metacharacters maps `*` to `.*` and `?` to `.`, wrapped
// in `^...$`; otherwise the pattern is escaped for an exact match.
func compileRoutePattern(pattern string) (*regexp.Regexp, error) {
	if strings.HasPrefix(pattern, "^") {
		return regexp.Compile(pattern)
	}
	if strings.ContainsAny(pattern, "*?[") {
		var b strings.Builder
		b.WriteByte('^')
		for _, r := range pattern {
			switch r {
			case '*':
				b.WriteString(".*")
			case '?':
				b.WriteByte('.')
			default:
				b.WriteString(regexp.QuoteMeta(string(r)))
			}
		}
		b.WriteByte('$')
		return regexp.Compile(b.String())
	}
	return regexp.Compile("^" + regexp.QuoteMeta(pattern) + "$")
}

// Handler is the gateway's internal middleware unit: it either serves the
// response itself or delegates to next, returning an error that the
// dispatcher maps to an HTTP status via gatewayerrors.
type Handler func(w http.ResponseWriter, r *http.Request) error

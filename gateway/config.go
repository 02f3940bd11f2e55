package gateway

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GatewayConfig is the top-level, immutable-after-load configuration (spec
// §3). It decodes from the YAML shape described in spec §6.
type GatewayConfig struct {
	Keyspace        string          `yaml:"keyspace"`
	Servers         []string        `yaml:"servers"`
	Paths           []PathConfig    `yaml:"paths"`
	DefaultFeatures *FeatureConfig  `yaml:"default_features"`
}

// PathConfig pairs a path pattern (glob or `^`-prefixed regex) with the
// feature bundle applied to requests matching it.
type PathConfig struct {
	Pattern  string        `yaml:"pattern"`
	Features FeatureConfig `yaml:"features"`
}

// FeatureConfig is a bundle of independent, optional sub-configs (spec
// §3). Any combination is valid; a nil field means that feature is
// disabled for the path.
type FeatureConfig struct {
	Cache          *CacheConfig          `yaml:"cache"`
	RateLimit      *RateLimitConfig      `yaml:"rate_limit"`
	Retry          *RetryConfig          `yaml:"retry"`
	Timeout        *TimeoutConfig        `yaml:"timeout"`
	Monitoring     *MonitoringConfig     `yaml:"monitoring"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker"`
	Auth           *AuthConfig           `yaml:"auth"`
}

// CacheConfig configures the cache layer for a path.
type CacheConfig struct {
	ExpireSeconds float64 `yaml:"expire_s"`
	CacheKey      string  `yaml:"cache_key"`
}

// RateLimitConfig selects one of the four throttle algorithms (spec
// §4.3) and its parameters.
type RateLimitConfig struct {
	Quota        int64   `yaml:"quota"`
	Duration     float64 `yaml:"duration"`
	Algorithm    string  `yaml:"algorithm"` // fixed_window | sliding_window | token_bucket | leaky_bucket
	BucketSize   int64   `yaml:"bucket_size"`
	ErrorStatus  int     `yaml:"error_status"`
	ErrorMessage string  `yaml:"error_message"`
}

// RetryConfig configures the retry engine's wrapping of the inner chain.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	Wait        float64 `yaml:"wait"`
}

// TimeoutConfig bounds the wall time of the inner chain.
type TimeoutConfig struct {
	Seconds      float64 `yaml:"seconds"`
	ErrorStatus  int     `yaml:"error_status"`
	ErrorMessage string  `yaml:"error_message"`
}

// MonitoringConfig controls slow-request logging.
type MonitoringConfig struct {
	LogThreshold float64 `yaml:"log_threshold"`
}

// CircuitBreakerConfig configures a path's dedicated breaker instance.
type CircuitBreakerConfig struct {
	FailureThreshold int     `yaml:"failure_threshold"`
	RecoveryTimeout  float64 `yaml:"recovery_timeout"`
}

// AuthConfig selects Basic or JWT authentication, with an optional
// chained RBAC authorization config (spec §4.9).
type AuthConfig struct {
	Type      string  `yaml:"type"` // basic | jwt
	Username  string  `yaml:"username"`
	Password  string  `yaml:"password"`
	Secret    string  `yaml:"secret"`
	Algorithm string  `yaml:"algorithm"`
	Audience  string  `yaml:"audience"`
	Issuer    string  `yaml:"issuer"`
	VerifyExp *bool   `yaml:"verify_exp"`
	VerifyNbf *bool   `yaml:"verify_nbf"`
	VerifyIat *bool   `yaml:"verify_iat"`
	RBAC      *RBACConfig `yaml:"rbac"`
}

// RBACConfig is the YAML shape for rbac.Config (spec §4.8).
type RBACConfig struct {
	Roles       map[string]RoleConfig `yaml:"roles"`
	UserRoles   map[string][]string   `yaml:"user_roles"`
	DefaultRole string                `yaml:"default_role"`
	Routes      map[string][]string   `yaml:"routes"`
	AllowAny    bool                  `yaml:"allow_any"`
}

// RoleConfig is the YAML shape of a single role entry.
type RoleConfig struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// LoadConfig reads and decodes a YAML gateway config file.
func LoadConfig(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gateway: read config: %w", err)
	}
	var cfg GatewayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("gateway: parse config: %w", err)
	}
	return &cfg, nil
}

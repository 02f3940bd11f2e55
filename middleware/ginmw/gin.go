// Package ginmw provides Gin middleware for rate limiting.
//
// Separated from the middleware package so that importing the HTTP middleware
// does not pull in github.com/gin-gonic/gin.
//
// Usage:
//
//	algo := ratelimit.NewTokenBucket()
//	r := gin.Default()
//	r.Use(ginmw.RateLimit(algo, 1000, 60, ginmw.KeyByClientIP))
package ginmw

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/krishna-kudari/apigateway/ratelimit"
)

// KeyFunc extracts the rate limiting key from a Gin context.
type KeyFunc func(c *gin.Context) string

// DeniedHandler is called when a request is rate limited.
type DeniedHandler func(c *gin.Context, secondsToWait float64)

// ErrorHandler is called when the algorithm's backend returns an error.
type ErrorHandler func(c *gin.Context, err error)

// Config holds the rate limit middleware configuration.
type Config struct {
	// Algorithm is the rate limiter instance (required).
	Algorithm ratelimit.Algorithm

	// Quota and DurationSeconds parameterize every Countdown call.
	Quota           int64
	DurationSeconds float64

	// KeyFunc extracts the rate limit key (required).
	KeyFunc KeyFunc

	// DeniedHandler is called on denial. Default: 429 JSON.
	DeniedHandler DeniedHandler

	// ErrorHandler is called on a backend error. Default: pass-through (fail open).
	ErrorHandler ErrorHandler

	// ExcludePaths are request paths that bypass rate limiting.
	ExcludePaths map[string]bool
}

// RateLimit creates Gin middleware with default settings.
func RateLimit(algo ratelimit.Algorithm, quota int64, durationSeconds float64, keyFunc KeyFunc) gin.HandlerFunc {
	return RateLimitWithConfig(Config{
		Algorithm:       algo,
		Quota:           quota,
		DurationSeconds: durationSeconds,
		KeyFunc:         keyFunc,
	})
}

// RateLimitWithConfig creates Gin middleware with full configuration control.
func RateLimitWithConfig(cfg Config) gin.HandlerFunc {
	if cfg.Algorithm == nil {
		panic("ginmw: Algorithm is required")
	}
	if cfg.KeyFunc == nil {
		panic("ginmw: KeyFunc is required")
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	return func(c *gin.Context) {
		if cfg.ExcludePaths != nil && cfg.ExcludePaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c)
		countdown, err := cfg.Algorithm.Countdown(c.Request.Context(), key, cfg.Quota, cfg.DurationSeconds)
		if err != nil {
			cfg.ErrorHandler(c, err)
			return
		}

		if countdown != ratelimit.Admitted {
			c.Header("Retry-After", strconv.FormatInt(int64(countdown+0.5), 10))
			cfg.DeniedHandler(c, countdown)
			return
		}

		c.Next()
	}
}

// ─── Built-in Key Extractors ─────────────────────────────────────────────────

// KeyByClientIP uses Gin's ClientIP() which respects trusted proxies.
func KeyByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByHeader returns a KeyFunc that extracts from a request header.
func KeyByHeader(header string) KeyFunc {
	return func(c *gin.Context) string {
		return c.GetHeader(header)
	}
}

// KeyByParam returns a KeyFunc that extracts from a URL parameter.
func KeyByParam(param string) KeyFunc {
	return func(c *gin.Context) string {
		return c.Param(param)
	}
}

// KeyByPathAndIP combines the request path and client IP.
func KeyByPathAndIP(c *gin.Context) string {
	return c.FullPath() + ":" + c.ClientIP()
}

// ─── Internals ───────────────────────────────────────────────────────────────

func defaultDeniedHandler(c *gin.Context, _ float64) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
}

func defaultErrorHandler(c *gin.Context, _ error) {
	c.Next()
}

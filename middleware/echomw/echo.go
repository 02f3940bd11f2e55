// Package echomw provides Echo middleware for rate limiting.
//
// Separated from the middleware package so that importing the HTTP middleware
// does not pull in github.com/labstack/echo.
//
// Usage:
//
//	algo := ratelimit.NewTokenBucket()
//	e := echo.New()
//	e.Use(echomw.RateLimit(algo, 1000, 60, echomw.KeyByRealIP))
package echomw

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/krishna-kudari/apigateway/ratelimit"
)

// KeyFunc extracts the rate limiting key from an Echo context.
type KeyFunc func(c echo.Context) string

// DeniedHandler is called when a request is rate limited.
type DeniedHandler func(c echo.Context, secondsToWait float64) error

// ErrorHandler is called when the algorithm's backend returns an error.
type ErrorHandler func(c echo.Context, err error) error

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

// RateLimit creates Echo middleware with default settings.
func RateLimit(algo ratelimit.Algorithm, quota int64, durationSeconds float64, keyFunc KeyFunc) echo.MiddlewareFunc {
	return RateLimitWithConfig(Config{
		Algorithm:       algo,
		Quota:           quota,
		DurationSeconds: durationSeconds,
		KeyFunc:         keyFunc,
	})
}

// RateLimitWithConfig creates Echo middleware with full configuration control.
func RateLimitWithConfig(cfg Config) echo.MiddlewareFunc {
	if cfg.Algorithm == nil {
		panic("echomw: Algorithm is required")
	}
	if cfg.KeyFunc == nil {
		panic("echomw: KeyFunc is required")
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.ExcludePaths != nil && cfg.ExcludePaths[c.Request().URL.Path] {
				return next(c)
			}

			key := cfg.KeyFunc(c)
			countdown, err := cfg.Algorithm.Countdown(c.Request().Context(), key, cfg.Quota, cfg.DurationSeconds)
			if err != nil {
				if cfg.ErrorHandler == nil {
					return next(c)
				}
				return cfg.ErrorHandler(c, err)
			}

			if countdown != ratelimit.Admitted {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(int64(countdown+0.5), 10))
				return cfg.DeniedHandler(c, countdown)
			}

			return next(c)
		}
	}
}

// ─── Built-in Key Extractors ─────────────────────────────────────────────────

// KeyByRealIP uses Echo's RealIP() which respects X-Forwarded-For / X-Real-IP.
func KeyByRealIP(c echo.Context) string {
	return c.RealIP()
}

// KeyByHeader returns a KeyFunc that extracts from a request header.
func KeyByHeader(header string) KeyFunc {
	return func(c echo.Context) string {
		return c.Request().Header.Get(header)
	}
}

// KeyByParam returns a KeyFunc that extracts from a path parameter.
func KeyByParam(param string) KeyFunc {
	return func(c echo.Context) string {
		return c.Param(param)
	}
}

// KeyByPathAndIP combines the request path and real IP.
func KeyByPathAndIP(c echo.Context) string {
	return c.Path() + ":" + c.RealIP()
}

// ─── Internals ───────────────────────────────────────────────────────────────

func defaultDeniedHandler(c echo.Context, _ float64) error {
	return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
}

// Package fibermw provides Fiber middleware for rate limiting.
//
// Separated from the middleware package so that importing the HTTP middleware
// does not pull in github.com/gofiber/fiber. Fiber uses fasthttp (not net/http),
// so a dedicated adapter is required.
//
// Usage:
//
//	algo := ratelimit.NewTokenBucket()
//	app := fiber.New()
//	app.Use(fibermw.RateLimit(algo, 1000, 60, fibermw.KeyByIP))
package fibermw

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/krishna-kudari/apigateway/ratelimit"
)

// KeyFunc extracts the rate limiting key from a Fiber context.
type KeyFunc func(c *fiber.Ctx) string

// DeniedHandler is called when a request is rate limited.
type DeniedHandler func(c *fiber.Ctx, secondsToWait float64) error

// ErrorHandler is called when the algorithm's backend returns an error.
type ErrorHandler func(c *fiber.Ctx, err error) error

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

// RateLimit creates Fiber middleware with default settings.
func RateLimit(algo ratelimit.Algorithm, quota int64, durationSeconds float64, keyFunc KeyFunc) fiber.Handler {
	return RateLimitWithConfig(Config{
		Algorithm:       algo,
		Quota:           quota,
		DurationSeconds: durationSeconds,
		KeyFunc:         keyFunc,
	})
}

// RateLimitWithConfig creates Fiber middleware with full configuration control.
func RateLimitWithConfig(cfg Config) fiber.Handler {
	if cfg.Algorithm == nil {
		panic("fibermw: Algorithm is required")
	}
	if cfg.KeyFunc == nil {
		panic("fibermw: KeyFunc is required")
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	return func(c *fiber.Ctx) error {
		if cfg.ExcludePaths != nil && cfg.ExcludePaths[c.Path()] {
			return c.Next()
		}

		key := cfg.KeyFunc(c)
		countdown, err := cfg.Algorithm.Countdown(c.UserContext(), key, cfg.Quota, cfg.DurationSeconds)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if countdown != ratelimit.Admitted {
			c.Set("Retry-After", strconv.FormatInt(int64(countdown+0.5), 10))
			return cfg.DeniedHandler(c, countdown)
		}

		return c.Next()
	}
}

// ─── Built-in Key Extractors ─────────────────────────────────────────────────

// KeyByIP uses Fiber's IP() method which respects proxy headers.
func KeyByIP(c *fiber.Ctx) string {
	return c.IP()
}

// KeyByHeader returns a KeyFunc that extracts from a request header.
func KeyByHeader(header string) KeyFunc {
	return func(c *fiber.Ctx) string {
		return c.Get(header)
	}
}

// KeyByParam returns a KeyFunc that extracts from a route parameter.
func KeyByParam(param string) KeyFunc {
	return func(c *fiber.Ctx) string {
		return c.Params(param)
	}
}

// KeyByPathAndIP combines the request path and client IP.
func KeyByPathAndIP(c *fiber.Ctx) string {
	return c.Path() + ":" + c.IP()
}

// ─── Internals ───────────────────────────────────────────────────────────────

func defaultDeniedHandler(c *fiber.Ctx, _ float64) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
}

func defaultErrorHandler(c *fiber.Ctx, _ error) error {
	return c.Next()
}

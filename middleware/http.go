// Package middleware adapts the gateway's countdown-based rate limiter
// (package ratelimit) into net/http middleware, and into framework-native
// middleware for Gin, Echo, Fiber, and gRPC in its subpackages.
package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/krishna-kudari/apigateway/ratelimit"
)

// KeyFunc extracts the rate limiting key from an HTTP request.
// The returned string identifies the caller (e.g. IP, API key, user ID).
type KeyFunc func(r *http.Request) string

// ErrorHandler is called when the algorithm's backend returns an error.
// Default behavior: 500 Internal Server Error.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// DeniedHandler is called when a request is rate limited. secondsToWait
// is the countdown value returned by Algorithm.Countdown.
// Default behavior: 429 Too Many Requests with a Retry-After header.
type DeniedHandler func(w http.ResponseWriter, r *http.Request, secondsToWait float64)

// Config holds the rate limit middleware configuration.
type Config struct {
	// Algorithm is the rate limiter instance (required).
	Algorithm ratelimit.Algorithm

	// Quota and DurationSeconds parameterize every Countdown call.
	Quota           int64
	DurationSeconds float64

	// KeyFunc extracts the rate limit key from the request (required).
	KeyFunc KeyFunc

	// ErrorHandler is called when the algorithm returns an error.
	// Default: responds with 500.
	ErrorHandler ErrorHandler

	// DeniedHandler is called when a request is denied.
	// Default: responds with 429 and Retry-After header.
	DeniedHandler DeniedHandler

	// ExcludePaths are request paths that bypass rate limiting.
	ExcludePaths map[string]bool

	// Message is the response body for denied requests.
	// Default: "Too Many Requests".
	Message string

	// StatusCode is the HTTP status code for denied requests.
	// Default: 429.
	StatusCode int
}

// RateLimit creates HTTP middleware with default settings, admitting up
// to quota requests per durationSeconds for each key.
//
// Usage with net/http:
//
//	mux := http.NewServeMux()
//	algo := ratelimit.NewTokenBucket()
//	mux.Handle("/api/", middleware.RateLimit(algo, 100, 60, middleware.KeyByIP)(handler))
func RateLimit(algo ratelimit.Algorithm, quota int64, durationSeconds float64, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return RateLimitWithConfig(Config{
		Algorithm:       algo,
		Quota:           quota,
		DurationSeconds: durationSeconds,
		KeyFunc:         keyFunc,
	})
}

// RateLimitWithConfig creates HTTP middleware with full configuration control.
func RateLimitWithConfig(cfg Config) func(http.Handler) http.Handler {
	if cfg.Algorithm == nil {
		panic("middleware: Algorithm is required")
	}
	if cfg.KeyFunc == nil {
		panic("middleware: KeyFunc is required")
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler(cfg.Message, cfg.StatusCode)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.ExcludePaths != nil && cfg.ExcludePaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.KeyFunc(r)
			countdown, err := cfg.Algorithm.Countdown(r.Context(), key, cfg.Quota, cfg.DurationSeconds)
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			if countdown != ratelimit.Admitted {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(countdown+0.5), 10))
				cfg.DeniedHandler(w, r, countdown)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ─── Built-in Key Extractors ─────────────────────────────────────────────────

// KeyByIP extracts the client IP address as the rate limit key.
// It checks X-Forwarded-For, X-Real-IP, then falls back to RemoteAddr.
func KeyByIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// KeyByHeader returns a KeyFunc that uses the value of the given header.
// Useful for API key-based rate limiting.
func KeyByHeader(header string) KeyFunc {
	return func(r *http.Request) string {
		return r.Header.Get(header)
	}
}

// KeyByPathAndIP returns a KeyFunc that combines the request path and client IP.
// Useful for per-endpoint rate limiting.
func KeyByPathAndIP(r *http.Request) string {
	return r.URL.Path + ":" + KeyByIP(r)
}

// ─── Default Handlers ────────────────────────────────────────────────────────

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func defaultDeniedHandler(message string, statusCode int) DeniedHandler {
	if message == "" {
		message = "Too Many Requests"
	}
	if statusCode == 0 {
		statusCode = http.StatusTooManyRequests
	}
	return func(w http.ResponseWriter, _ *http.Request, _ float64) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		w.Write([]byte(`{"error":"` + message + `"}`))
	}
}

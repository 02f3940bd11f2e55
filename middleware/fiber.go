// This file is kept for backward-compatibility documentation.
// The concrete Fiber middleware implementation lives in the fibermw sub-package
// to avoid pulling github.com/gofiber/fiber into projects that only need HTTP middleware.
// Fiber uses fasthttp (not net/http) so a dedicated adapter is required.
//
// Import:
//
//	import "github.com/krishna-kudari/apigateway/middleware/fibermw"
//
// Usage:
//
//	algo, _ := ratelimit.NewBuilder().TokenBucket().Redis(redisClient).Build()
//	app := fiber.New()
//	app.Use(fibermw.RateLimit(algo, 1000, 50, fibermw.KeyByIP))
//
// Key extractors:
//
//	fibermw.KeyByIP               — Fiber's IP() with proxy support
//	fibermw.KeyByHeader("X-API-Key") — value from request header
//	fibermw.KeyByParam("id")     — value from route parameter
//	fibermw.KeyByPathAndIP       — path + IP for per-endpoint limits
//
// Full config:
//
//	fibermw.RateLimitWithConfig(fibermw.Config{
//	    Algorithm:    algo,
//	    Quota:        1000,
//	    DurationSeconds: 50,
//	    KeyFunc:      fibermw.KeyByIP,
//	    ExcludePaths: map[string]bool{"/health": true},
//	    DeniedHandler: customHandler,
//	})
//
// See package github.com/krishna-kudari/apigateway/middleware/fibermw for full API.
package middleware

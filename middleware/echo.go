// This file is kept for backward-compatibility documentation.
// The concrete Echo middleware implementation lives in the echomw sub-package
// to avoid pulling github.com/labstack/echo into projects that only need HTTP middleware.
//
// Import:
//
//	import "github.com/krishna-kudari/apigateway/middleware/echomw"
//
// Usage:
//
//	algo, _ := ratelimit.NewBuilder().TokenBucket().Redis(redisClient).Build()
//	e := echo.New()
//	e.Use(echomw.RateLimit(algo, 1000, 50, echomw.KeyByRealIP))
//
// Key extractors:
//
//	echomw.KeyByRealIP            — Echo's RealIP() with proxy support
//	echomw.KeyByHeader("X-API-Key") — value from request header
//	echomw.KeyByParam("id")      — value from path parameter
//	echomw.KeyByPathAndIP        — path + real IP for per-endpoint limits
//
// Full config:
//
//	echomw.RateLimitWithConfig(echomw.Config{
//	    Algorithm:    algo,
//	    Quota:        1000,
//	    DurationSeconds: 50,
//	    KeyFunc:      echomw.KeyByRealIP,
//	    ExcludePaths: map[string]bool{"/health": true},
//	    DeniedHandler: customHandler,
//	})
//
// See package github.com/krishna-kudari/apigateway/middleware/echomw for full API.
package middleware

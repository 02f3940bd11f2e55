// Package ratelimit provides the four throttle algorithms the gateway
// uses to build its rate-limit feature: fixed window, sliding window, token
// bucket, and leaky bucket (admission form), each with an in-memory and a
// Redis-backed implementation.
//
// # Contract
//
// Every algorithm satisfies Algorithm: Countdown returns Admitted (−1) when
// the request is let through, or a positive number of seconds the caller
// must wait before retrying. Algorithms never sleep themselves.
//
//	fw := ratelimit.NewFixedWindow()
//	cd, err := fw.Countdown(ctx, "user:123", 100, 60)
//	if cd == ratelimit.Admitted {
//	    // serve request
//	}
//
// # With Redis
//
//	lim, _ := ratelimit.NewBuilder().
//	    TokenBucket().
//	    Redis(redisClient).
//	    Build()
//	cd, err := lim.Countdown(ctx, "user:123", 100, 10)
//
// # Shaping
//
// Scheduler offers a queue-based alternative to LeakyBucket's hard
// admission failure: callers enqueue with Wait and are released one per
// leak interval instead of being rejected.
package ratelimit

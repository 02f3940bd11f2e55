// Package grpcmw provides gRPC server interceptors for rate limiting.
//
// Separated from the middleware package so that importing the HTTP middleware
// does not pull in google.golang.org/grpc.
//
// Usage:
//
//	algo := ratelimit.NewTokenBucket()
//	server := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptor(algo, 1000, 60, grpcmw.KeyByPeer)),
//	    grpc.ChainStreamInterceptor(grpcmw.StreamServerInterceptor(algo, 1000, 60, grpcmw.StreamKeyByPeer)),
//	)
package grpcmw

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/krishna-kudari/apigateway/ratelimit"
)

// KeyFunc extracts the rate limiting key from a unary RPC context.
type KeyFunc func(ctx context.Context, info *grpc.UnaryServerInfo) string

// StreamKeyFunc extracts the rate limiting key from a streaming RPC context.
type StreamKeyFunc func(ctx context.Context, info *grpc.StreamServerInfo) string

// DeniedHandler produces the gRPC error returned when a request is rate limited.
// Default: codes.ResourceExhausted with retry info.
type DeniedHandler func(ctx context.Context, secondsToWait float64) error

// Config holds full configuration for gRPC rate limit interceptors.
type Config struct {
	// Algorithm is the rate limiter instance (required).
	Algorithm ratelimit.Algorithm

	// Quota and DurationSeconds parameterize every Countdown call.
	Quota           int64
	DurationSeconds float64

	// KeyFunc extracts the rate limit key for unary RPCs (required for unary).
	KeyFunc KeyFunc

	// StreamKeyFunc extracts the rate limit key for streaming RPCs (required for stream).
	StreamKeyFunc StreamKeyFunc

	// DeniedHandler produces the error returned on denial.
	// Default: codes.ResourceExhausted.
	DeniedHandler DeniedHandler

	// ExcludeMethods are full method names (e.g. "/pkg.Service/Method")
	// that bypass rate limiting.
	ExcludeMethods map[string]bool
}

// ─── Unary Interceptors ──────────────────────────────────────────────────────

// UnaryServerInterceptor creates a unary server interceptor with default settings.
func UnaryServerInterceptor(algo ratelimit.Algorithm, quota int64, durationSeconds float64, keyFunc KeyFunc) grpc.UnaryServerInterceptor {
	return UnaryServerInterceptorWithConfig(Config{
		Algorithm:       algo,
		Quota:           quota,
		DurationSeconds: durationSeconds,
		KeyFunc:         keyFunc,
	})
}

// UnaryServerInterceptorWithConfig creates a unary server interceptor with full
// configuration control.
func UnaryServerInterceptorWithConfig(cfg Config) grpc.UnaryServerInterceptor {
	if cfg.Algorithm == nil {
		panic("grpcmw: Algorithm is required")
	}
	if cfg.KeyFunc == nil {
		panic("grpcmw: KeyFunc is required")
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if cfg.ExcludeMethods != nil && cfg.ExcludeMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		key := cfg.KeyFunc(ctx, info)
		countdown, err := cfg.Algorithm.Countdown(ctx, key, cfg.Quota, cfg.DurationSeconds)
		if err != nil {
			return handler(ctx, req)
		}

		if countdown != ratelimit.Admitted {
			setRateLimitMetadata(ctx, countdown)
			return nil, cfg.DeniedHandler(ctx, countdown)
		}

		return handler(ctx, req)
	}
}

// ─── Stream Interceptors ─────────────────────────────────────────────────────

// StreamServerInterceptor creates a stream server interceptor with default settings.
func StreamServerInterceptor(algo ratelimit.Algorithm, quota int64, durationSeconds float64, keyFunc StreamKeyFunc) grpc.StreamServerInterceptor {
	return StreamServerInterceptorWithConfig(Config{
		Algorithm:       algo,
		Quota:           quota,
		DurationSeconds: durationSeconds,
		StreamKeyFunc:   keyFunc,
	})
}

// StreamServerInterceptorWithConfig creates a stream server interceptor with full
// configuration control.
func StreamServerInterceptorWithConfig(cfg Config) grpc.StreamServerInterceptor {
	if cfg.Algorithm == nil {
		panic("grpcmw: Algorithm is required")
	}
	if cfg.StreamKeyFunc == nil {
		panic("grpcmw: StreamKeyFunc is required")
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()

		if cfg.ExcludeMethods != nil && cfg.ExcludeMethods[info.FullMethod] {
			return handler(srv, ss)
		}

		key := cfg.StreamKeyFunc(ctx, info)
		countdown, err := cfg.Algorithm.Countdown(ctx, key, cfg.Quota, cfg.DurationSeconds)
		if err != nil {
			return handler(srv, ss)
		}

		if countdown != ratelimit.Admitted {
			setRateLimitMetadata(ctx, countdown)
			return cfg.DeniedHandler(ctx, countdown)
		}

		return handler(srv, ss)
	}
}

// ─── Built-in Key Extractors ─────────────────────────────────────────────────

// KeyByPeer extracts the remote peer address as the rate limit key.
func KeyByPeer(ctx context.Context, _ *grpc.UnaryServerInfo) string {
	return peerAddr(ctx)
}

// StreamKeyByPeer extracts the remote peer address as the rate limit key for streams.
func StreamKeyByPeer(ctx context.Context, _ *grpc.StreamServerInfo) string {
	return peerAddr(ctx)
}

// KeyByMetadata returns a KeyFunc that uses a value from incoming gRPC metadata.
func KeyByMetadata(header string) KeyFunc {
	return func(ctx context.Context, _ *grpc.UnaryServerInfo) string {
		return metadataValue(ctx, header)
	}
}

// StreamKeyByMetadata returns a StreamKeyFunc that uses a value from incoming gRPC metadata.
func StreamKeyByMetadata(header string) StreamKeyFunc {
	return func(ctx context.Context, _ *grpc.StreamServerInfo) string {
		return metadataValue(ctx, header)
	}
}

// KeyByMethod returns a KeyFunc that uses "method:peer" as the key,
// enabling per-method rate limits.
func KeyByMethod(ctx context.Context, info *grpc.UnaryServerInfo) string {
	return info.FullMethod + ":" + peerAddr(ctx)
}

// StreamKeyByMethod returns a StreamKeyFunc that uses "method:peer" as the key.
func StreamKeyByMethod(ctx context.Context, info *grpc.StreamServerInfo) string {
	return info.FullMethod + ":" + peerAddr(ctx)
}

// ─── Internals ───────────────────────────────────────────────────────────────

func peerAddr(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

func metadataValue(ctx context.Context, header string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if vals := md.Get(header); len(vals) > 0 {
			return vals[0]
		}
	}
	return "unknown"
}

func setRateLimitMetadata(ctx context.Context, countdown float64) {
	md := metadata.Pairs("retry-after", strconv.FormatInt(int64(countdown+0.5), 10))
	_ = grpc.SetHeader(ctx, md)
}

func defaultDeniedHandler(_ context.Context, countdown float64) error {
	return status.Errorf(codes.ResourceExhausted,
		"rate limit exceeded, retry after %.0fs", countdown)
}

// This file is kept for backward-compatibility documentation.
// The concrete gRPC interceptors live in the grpcmw sub-package to avoid
// pulling google.golang.org/grpc into projects that only need HTTP middleware.
//
// Import:
//
//	import "github.com/krishna-kudari/apigateway/middleware/grpcmw"
//
// Usage:
//
//	algo, _ := ratelimit.NewBuilder().TokenBucket().Redis(redisClient).Build()
//	server := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptor(algo, 1000, 50, grpcmw.KeyByPeer)),
//	    grpc.ChainStreamInterceptor(grpcmw.StreamServerInterceptor(algo, 1000, 50, grpcmw.StreamKeyByPeer)),
//	)
//
// Key extractors:
//
//	grpcmw.KeyByPeer                  — remote peer address
//	grpcmw.KeyByMetadata("x-api-key") — value from incoming gRPC metadata
//	grpcmw.KeyByMethod                — method + peer for per-RPC limits
//
// See package github.com/krishna-kudari/apigateway/middleware/grpcmw for full API.
package middleware

package grpcmw_test

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/krishna-kudari/apigateway/middleware/grpcmw"
	"github.com/krishna-kudari/apigateway/ratelimit"

	testgrpc "google.golang.org/grpc/interop/grpc_testing"
)

// ─── Test Service ────────────────────────────────────────────────────────────

type testServer struct {
	testgrpc.UnimplementedTestServiceServer
}

func (s *testServer) EmptyCall(_ context.Context, _ *testgrpc.Empty) (*testgrpc.Empty, error) {
	return &testgrpc.Empty{}, nil
}

func (s *testServer) UnaryCall(_ context.Context, req *testgrpc.SimpleRequest) (*testgrpc.SimpleResponse, error) {
	return &testgrpc.SimpleResponse{}, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func startServer(t *testing.T, opts ...grpc.ServerOption) (testgrpc.TestServiceClient, func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	srv := grpc.NewServer(opts...)
	testgrpc.RegisterTestServiceServer(srv, &testServer{})

	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		srv.Stop()
		t.Fatal(err)
	}

	client := testgrpc.NewTestServiceClient(conn)
	cleanup := func() {
		conn.Close()
		srv.Stop()
	}
	return client, cleanup
}

// ─── Unary Tests ─────────────────────────────────────────────────────────────

func TestUnaryServerInterceptor_AllowsWithinLimit(t *testing.T) {
	algo := ratelimit.NewFixedWindow()

	client, cleanup := startServer(t,
		grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptor(algo, 5, 60, grpcmw.KeyByPeer)),
	)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := client.EmptyCall(ctx, &testgrpc.Empty{})
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
	}
}

func TestUnaryServerInterceptor_DeniesExceedingLimit(t *testing.T) {
	algo := ratelimit.NewFixedWindow()

	client, cleanup := startServer(t,
		grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptor(algo, 3, 60, grpcmw.KeyByPeer)),
	)
	defer cleanup()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.EmptyCall(ctx, &testgrpc.Empty{})
		if err != nil {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	_, err := client.EmptyCall(ctx, &testgrpc.Empty{})
	if err == nil {
		t.Fatal("expected error on 4th request")
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != codes.ResourceExhausted {
		t.Errorf("expected ResourceExhausted, got %v", st.Code())
	}
}

func TestUnaryServerInterceptor_RetryAfterMetadata(t *testing.T) {
	algo := ratelimit.NewFixedWindow()

	client, cleanup := startServer(t,
		grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptor(algo, 1, 60, grpcmw.KeyByPeer)),
	)
	defer cleanup()

	ctx := context.Background()
	_, _ = client.EmptyCall(ctx, &testgrpc.Empty{})

	var header metadata.MD
	_, err := client.EmptyCall(ctx, &testgrpc.Empty{}, grpc.Header(&header))
	if err == nil {
		t.Fatal("expected denial on 2nd request")
	}
	if vals := header.Get("retry-after"); len(vals) == 0 {
		t.Error("expected retry-after header in response metadata")
	}
}

func TestUnaryServerInterceptor_ExcludeMethods(t *testing.T) {
	algo := ratelimit.NewFixedWindow()

	client, cleanup := startServer(t,
		grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptorWithConfig(grpcmw.Config{
			Algorithm:       algo,
			Quota:           1,
			DurationSeconds: 60,
			KeyFunc:         grpcmw.KeyByPeer,
			ExcludeMethods: map[string]bool{
				"/grpc.testing.TestService/EmptyCall": true,
			},
		})),
	)
	defer cleanup()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.EmptyCall(ctx, &testgrpc.Empty{})
		if err != nil {
			t.Fatalf("excluded method should not be rate limited, request %d: %v", i+1, err)
		}
	}
}

func TestUnaryServerInterceptor_CustomDeniedHandler(t *testing.T) {
	algo := ratelimit.NewFixedWindow()

	customCalled := false
	client, cleanup := startServer(t,
		grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptorWithConfig(grpcmw.Config{
			Algorithm:       algo,
			Quota:           1,
			DurationSeconds: 60,
			KeyFunc:         grpcmw.KeyByPeer,
			DeniedHandler: func(_ context.Context, secondsToWait float64) error {
				customCalled = true
				return status.Errorf(codes.Unavailable, "custom: throttled for %.0fs", secondsToWait)
			},
		})),
	)
	defer cleanup()

	ctx := context.Background()

	_, _ = client.EmptyCall(ctx, &testgrpc.Empty{})

	_, err := client.EmptyCall(ctx, &testgrpc.Empty{})
	if err == nil {
		t.Fatal("expected denial")
	}
	st, _ := status.FromError(err)
	if st.Code() != codes.Unavailable {
		t.Errorf("expected Unavailable from custom handler, got %v", st.Code())
	}
	time.Sleep(10 * time.Millisecond)
	if !customCalled {
		t.Error("custom denied handler should have been called")
	}
}

func TestUnaryServerInterceptor_KeyByMetadata(t *testing.T) {
	algo := ratelimit.NewFixedWindow()

	client, cleanup := startServer(t,
		grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptor(algo, 2, 60, grpcmw.KeyByMetadata("x-api-key"))),
	)
	defer cleanup()

	ctxA := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "key-A")
	for i := 0; i < 2; i++ {
		_, err := client.EmptyCall(ctxA, &testgrpc.Empty{})
		if err != nil {
			t.Fatalf("key-A request %d should succeed: %v", i+1, err)
		}
	}

	_, err := client.EmptyCall(ctxA, &testgrpc.Empty{})
	if err == nil {
		t.Fatal("key-A 3rd request should be denied")
	}

	ctxB := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "key-B")
	_, err = client.EmptyCall(ctxB, &testgrpc.Empty{})
	if err != nil {
		t.Fatalf("key-B should be allowed: %v", err)
	}
}

func TestUnaryServerInterceptor_KeyByMethod(t *testing.T) {
	algo := ratelimit.NewFixedWindow()

	client, cleanup := startServer(t,
		grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptor(algo, 1, 60, grpcmw.KeyByMethod)),
	)
	defer cleanup()

	ctx := context.Background()

	_, err := client.EmptyCall(ctx, &testgrpc.Empty{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.EmptyCall(ctx, &testgrpc.Empty{})
	if err == nil {
		t.Fatal("2nd EmptyCall should be denied")
	}

	_, err = client.UnaryCall(ctx, &testgrpc.SimpleRequest{})
	if err != nil {
		t.Fatalf("UnaryCall should be allowed (different method key): %v", err)
	}
}

func TestUnaryServerInterceptor_DifferentAlgorithms(t *testing.T) {
	algorithms := []struct {
		name string
		algo ratelimit.Algorithm
	}{
		{"TokenBucket", ratelimit.NewTokenBucket()},
		{"FixedWindow", ratelimit.NewFixedWindow()},
		{"SlidingWindow", ratelimit.NewSlidingWindow()},
	}

	for _, alg := range algorithms {
		t.Run(alg.name, func(t *testing.T) {
			client, cleanup := startServer(t,
				grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptor(alg.algo, 3, 60, grpcmw.KeyByPeer)),
			)
			defer cleanup()

			ctx := context.Background()
			for i := 0; i < 3; i++ {
				_, err := client.EmptyCall(ctx, &testgrpc.Empty{})
				if err != nil {
					t.Fatalf("%s: request %d should be allowed: %v", alg.name, i+1, err)
				}
			}

			_, err := client.EmptyCall(ctx, &testgrpc.Empty{})
			if err == nil {
				t.Errorf("%s: 4th request should be denied", alg.name)
			}
		})
	}
}

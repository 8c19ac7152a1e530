package igrpc

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check name reported alongside the overall "" entry.
const ServiceName = "relationship-service"

// Checker reports whether a dependency (usually the database) is reachable.
type Checker func(ctx context.Context) error

type Options struct {
	Checker       Checker
	CheckInterval time.Duration
}

// StartGRPCServer listens on addr and serves the standard gRPC health service
// until ctx is cancelled.
func StartGRPCServer(ctx context.Context, addr string, logger *zap.Logger, opts Options) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return Serve(ctx, lis, logger, opts), nil
}

func Serve(ctx context.Context, lis net.Listener, logger *zap.Logger, opts Options) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	setStatus(hs, healthpb.HealthCheckResponse_SERVING)

	if opts.Checker != nil {
		interval := opts.CheckInterval
		if interval <= 0 {
			interval = 10 * time.Second
		}
		go watch(ctx, hs, opts.Checker, interval, logger)
	}

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	return srv
}

func watch(ctx context.Context, hs *health.Server, check Checker, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		err := check(checkCtx)
		cancel()

		switch {
		case err != nil && serving:
			logger.Warn("health check failed", zap.Error(err))
			setStatus(hs, healthpb.HealthCheckResponse_NOT_SERVING)
			serving = false
		case err == nil && !serving:
			logger.Info("health check recovered")
			setStatus(hs, healthpb.HealthCheckResponse_SERVING)
			serving = true
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func setStatus(hs *health.Server, status healthpb.HealthCheckResponse_ServingStatus) {
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
}

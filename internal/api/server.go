package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"advocat/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GatewayService is the health service name reported for the site gateway.
const GatewayService = "advocat.gateway"

// GRPCServer is the ops endpoint: standard gRPC health checks fed by the
// same probes as /readyz, plus optional reflection.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	checks   []ReadyCheck
	log      zerolog.Logger

	stopOnce sync.Once
}

func NewGRPCServer(cfg config.GRPCConfig, checks []ReadyCheck, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return newGRPCServer(cfg, lis, checks, logger)
}

func newGRPCServer(cfg config.GRPCConfig, lis net.Listener, checks []ReadyCheck, logger *zerolog.Logger) (*GRPCServer, error) {
	unary := ChainUnaryInterceptors(
		RecoveryUnaryInterceptor(logger),
		LoggingUnaryInterceptor(logger),
	)
	serverOpts := []grpc.ServerOption{grpc.UnaryInterceptor(unary)}
	if cfg.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			_ = lis.Close()
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	grpcServer := grpc.NewServer(serverOpts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	if cfg.Reflection {
		reflection.Register(grpcServer)
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "grpc").Logger()
	}

	s := &GRPCServer{server: grpcServer, health: hs, listener: lis, checks: checks, log: log}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s, nil
}

func buildTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("grpc tls enabled but cert_file/key_file not set")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load grpc tls keypair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC ops server listening")
	return s.server.Serve(s.listener)
}

func (s *GRPCServer) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(GatewayService, st)
}

// Probe runs the ready checks once and publishes the result.
func (s *GRPCServer) Probe(ctx context.Context) bool {
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			s.log.Warn().Err(err).Str("check", c.Name).Msg("health check failed")
			s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			return false
		}
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return true
}

// RunProbes refreshes the health status every interval until ctx is done.
func (s *GRPCServer) RunProbes(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		s.Probe(pctx)
	}
	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

func (s *GRPCServer) Shutdown(ctx context.Context) {
	s.stopOnce.Do(func() {
		s.health.Shutdown()

		done := make(chan struct{})
		go func() {
			s.server.GracefulStop()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
			s.server.Stop()
		}
	})
}

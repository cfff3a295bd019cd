package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"time"

	apiv1 "github.com/SanjoDeundiak/process-watchdog/api/v1"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

// GRPCServer encapsulates TLS/mTLS configuration, gRPC server instance and listener.
type GRPCServer struct {
	lis net.Listener
	s   *grpc.Server
}

// serverTLSConfig requires client certificates signed by the configured CA.
func serverTLSConfig(cfg config.ServerConfig) (*tls.Config, error) {
	if !cfg.HasTLS() {
		return nil, fmt.Errorf("missing TLS environment variables; require PRN_TLS_KEY, PRN_TLS_CERT, PRN_CA_TLS_CERT")
	}

	cert, err := tls.X509KeyPair([]byte(cfg.TLSCert), []byte(cfg.TLSKey))
	if err != nil {
		return nil, fmt.Errorf("failed to load server key pair: %w", err)
	}

	caPool := x509.NewCertPool()
	if ok := caPool.AppendCertsFromPEM([]byte(cfg.CACert)); !ok {
		return nil, fmt.Errorf("failed to append CA certificate to pool")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		ClientCAs:    caPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// newServer builds a gRPC server with the identity and logging interceptors
// and registers svc.
func newServer(tlsConfig *tls.Config, svc apiv1.SupervisorServer, logger *slog.Logger) *grpc.Server {
	s := grpc.NewServer(
		grpc.Creds(credentials.NewTLS(tlsConfig)),
		grpc.ChainUnaryInterceptor(injectSpiffeIdUnary, logUnary(logger)),
	)
	apiv1.RegisterSupervisorServer(s, svc)
	return s
}

func logUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("rpc", "method", info.FullMethod, "owner", owner(ctx),
			"code", status.Code(err).String(), "duration", time.Since(start))
		return resp, err
	}
}

// NewGRPCServer constructs a TLS-enabled gRPC server that requires client
// certs (mTLS) and listens on the configured address.
func NewGRPCServer(cfg *config.Config, svc apiv1.SupervisorServer, logger *slog.Logger) (*GRPCServer, error) {
	tlsConfig, err := serverTLSConfig(cfg.Server)
	if err != nil {
		return nil, err
	}

	lis, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	return &GRPCServer{lis: lis, s: newServer(tlsConfig, svc, logger)}, nil
}

// Serve starts serving gRPC on the configured listener.
func (g *GRPCServer) Serve() error {
	return g.s.Serve(g.lis)
}

// Addr returns the network address the server is bound to.
func (g *GRPCServer) Addr() net.Addr { return g.lis.Addr() }

// Stop gracefully stops the gRPC server.
func (g *GRPCServer) Stop() { g.s.GracefulStop() }

package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

// clientTLSConfig presents the configured client certificate and trusts only
// the configured CA.
func clientTLSConfig(cfg config.ServerConfig) (*tls.Config, error) {
	if !cfg.HasTLS() {
		return nil, fmt.Errorf("missing TLS environment variables; require PRN_TLS_KEY, PRN_TLS_CERT, PRN_CA_TLS_CERT")
	}

	cert, err := tls.X509KeyPair([]byte(cfg.TLSCert), []byte(cfg.TLSKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse TLS cert/key from env: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(cfg.CACert)) {
		return nil, fmt.Errorf("failed to parse CA cert from env")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func dial(cfg config.ServerConfig, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	tlsConfig, err := clientTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig))}, opts...)
	return grpc.NewClient(cfg.Address, opts...)
}

func grpcCode(err error) codes.Code {
	st, ok := status.FromError(err)
	if !ok {
		return codes.Unknown
	}
	return st.Code()
}

package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"testing"

	apiv1 "github.com/SanjoDeundiak/process-watchdog/api/v1"
	"github.com/SanjoDeundiak/process-watchdog/internal/testpki"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/config"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/execlog"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/runner"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/test/bufconn"
)

// syncBuffer is an execution log sink readable while the server runs.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	t      *testing.T
	ca     *testpki.CA
	lis    *bufconn.Listener
	svc    *SupervisorService
	runner *runner.Runner
	log    *syncBuffer
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	serverCA *testpki.CA
	runner   []runner.Option
	cfg      *config.Config
}

// withServerCA signs the server certificate with a CA clients do not trust.
func withServerCA(ca *testpki.CA) harnessOption {
	return func(c *harnessConfig) { c.serverCA = ca }
}

func withConfig(fn func(*config.Config)) harnessOption {
	return func(c *harnessConfig) { fn(c.cfg) }
}

func withRunnerOptions(opts ...runner.Option) harnessOption {
	return func(c *harnessConfig) { c.runner = opts }
}

func startHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	ca := testpki.NewCA(t, "prn-test-ca")
	hc := harnessConfig{serverCA: ca, cfg: config.Default()}
	for _, opt := range opts {
		opt(&hc)
	}

	leaf := hc.serverCA.Issue(t, "", true)
	hc.cfg.Server.TLSCert = leaf.CertPEM
	hc.cfg.Server.TLSKey = leaf.KeyPEM
	hc.cfg.Server.CACert = ca.PEM

	tlsConfig, err := serverTLSConfig(hc.cfg.Server)
	if err != nil {
		t.Fatalf("serverTLSConfig failed: %v", err)
	}

	r, err := runner.NewRunner(hc.runner...)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	sink := &syncBuffer{}
	logger := slog.New(slog.DiscardHandler)
	svc := NewSupervisorService(r, execlog.New(sink), hc.cfg, logger)

	lis := bufconn.Listen(1 << 20)
	srv := newServer(tlsConfig, svc, logger)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		svc.Close()
		srv.Stop()
	})

	return &harness{t: t, ca: ca, lis: lis, svc: svc, runner: r, log: sink}
}

func (h *harness) dial(creds credentials.TransportCredentials) *grpc.ClientConn {
	h.t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return h.lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(creds),
	)
	if err != nil {
		h.t.Fatalf("NewClient failed: %v", err)
	}
	h.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// clientCreds presents a certificate from ca with the given SPIFFE ID.
func (h *harness) clientCreds(ca *testpki.CA, spiffeID string) credentials.TransportCredentials {
	h.t.Helper()
	return credentials.NewTLS(&tls.Config{
		RootCAs:      h.ca.Pool(h.t),
		Certificates: []tls.Certificate{ca.Issue(h.t, spiffeID, false).TLSCertificate(h.t)},
		ServerName:   "localhost",
		MinVersion:   tls.VersionTLS13,
	})
}

func (h *harness) client(spiffeID string) *apiv1.SupervisorClient {
	h.t.Helper()
	return apiv1.NewSupervisorClient(h.dial(h.clientCreds(h.ca, spiffeID)))
}

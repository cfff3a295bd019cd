package main

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	apiv1 "github.com/SanjoDeundiak/process-watchdog/api/v1"
	"github.com/SanjoDeundiak/process-watchdog/internal/testpki"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

func TestContext_HasSpiffeId(t *testing.T) {
	ctx := context.Background()

	expected := "TEST"
	newCtx := injectSpiffeId(ctx, expected)
	actual := extractSpiffeIdFromTls(newCtx)

	if actual == nil {
		t.Fatalf("expected %s, got nil", expected)
	}

	if expected != *actual {
		t.Fatalf("expected %s, got %s", expected, *actual)
	}
}

func TestContext_NoPeer(t *testing.T) {
	if id := extractSpiffeIdFromTls(context.Background()); id != nil {
		t.Fatalf("expected nil, got %s", *id)
	}
}

func statusRequest(t *testing.T, c *apiv1.SupervisorClient) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := c.WatchStatus(ctx, &apiv1.WatchRequest{WatchID: "missing"})
	return err
}

func TestServerApp_ServerExpectsTls(t *testing.T) {
	h := startHarness(t)

	err := statusRequest(t, apiv1.NewSupervisorClient(h.dial(insecure.NewCredentials())))
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected insecure call to fail with Unavailable, got %v", err)
	}
}

func TestServerApp_ServerExpectsClientCert(t *testing.T) {
	h := startHarness(t)

	creds := credentials.NewTLS(&tls.Config{
		RootCAs:    h.ca.Pool(t),
		ServerName: "localhost",
		MinVersion: tls.VersionTLS13,
	})
	if err := statusRequest(t, apiv1.NewSupervisorClient(h.dial(creds))); err == nil {
		t.Fatalf("expected TLS without client cert to fail, but it succeeded")
	}
}

func TestServerApp_ServerExpectCorrectClientCa(t *testing.T) {
	h := startHarness(t)

	fake := testpki.NewCA(t, "fake-ca")
	c := apiv1.NewSupervisorClient(h.dial(h.clientCreds(fake, "spiffe://client1")))
	if err := statusRequest(t, c); err == nil {
		t.Fatalf("expected TLS with client cert signed by unknown CA to fail, but it succeeded")
	}
}

func TestServerApp_ClientExpectsCorrectServerCa(t *testing.T) {
	h := startHarness(t, withServerCA(testpki.NewCA(t, "fake-server-ca")))

	if err := statusRequest(t, h.client("spiffe://client1")); err == nil {
		t.Fatalf("expected TLS with server cert signed by unknown CA to fail, but it succeeded")
	}
}

func TestServerApp_ClientWithoutSpiffeId(t *testing.T) {
	h := startHarness(t)

	err := statusRequest(t, h.client(""))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestServerApp_CorrectConfigSucceeds(t *testing.T) {
	h := startHarness(t)

	err := statusRequest(t, h.client("spiffe://client1"))
	// the call reached the handler
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound from server, got %v (err=%v)", status.Code(err), err)
	}
}

func TestServerTLSConfigRequiresMaterial(t *testing.T) {
	h := startHarness(t)
	cfg := h.svc.cfg.Server

	cfg.CACert = ""
	if _, err := serverTLSConfig(cfg); err == nil {
		t.Fatal("expected error without CA")
	}

	cfg = h.svc.cfg.Server
	cfg.CACert = "not a certificate"
	if _, err := serverTLSConfig(cfg); err == nil {
		t.Fatal("expected error for unparsable CA")
	}
}

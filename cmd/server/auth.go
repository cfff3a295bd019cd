package main

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type spiffeIdContextKey struct{}

func extractSpiffeIdFromContext(ctx context.Context) *string {
	if v := ctx.Value(spiffeIdContextKey{}); v != nil {
		if spiffeId, ok := v.(string); ok {
			return &spiffeId
		}
	}
	return nil
}

// extractSpiffeIdFromTls returns the trust domain of the first SPIFFE URI
// SAN of the peer's leaf certificate, e.g. spiffe://client1 -> "client1".
func extractSpiffeIdFromTls(ctx context.Context) *string {
	if v := extractSpiffeIdFromContext(ctx); v != nil {
		return v
	}

	p, ok := peer.FromContext(ctx)
	if !ok || p == nil {
		return nil
	}

	ti, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok {
		return nil
	}

	state := ti.State
	if len(state.PeerCertificates) == 0 || state.PeerCertificates[0] == nil {
		return nil
	}

	for _, uri := range state.PeerCertificates[0].URIs {
		if uri != nil && uri.Scheme == "spiffe" && uri.Host != "" {
			return &uri.Host
		}
	}
	return nil
}

func injectSpiffeId(ctx context.Context, spiffeId string) context.Context {
	return context.WithValue(ctx, spiffeIdContextKey{}, spiffeId)
}

// injectSpiffeIdUnary rejects callers without a SPIFFE identity.
func injectSpiffeIdUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	spiffeId := extractSpiffeIdFromTls(ctx)
	if spiffeId == nil {
		return nil, status.Error(codes.Unauthenticated, "client must have SPIFFE ID")
	}
	return handler(injectSpiffeId(ctx, *spiffeId), req)
}

// checkOwnership allows only the identity that started a watch to touch it.
func (s *SupervisorService) checkOwnership(ctx context.Context, watchID string) (*watchEntry, error) {
	spiffeId := extractSpiffeIdFromContext(ctx)
	if spiffeId == nil {
		return nil, status.Error(codes.Unauthenticated, "client must have SPIFFE ID")
	}

	s.mu.RLock()
	entry := s.watches[watchID]
	s.mu.RUnlock()

	if entry == nil {
		return nil, status.Errorf(codes.NotFound, "watch not found: %s", watchID)
	}
	if entry.owner != *spiffeId {
		return nil, status.Error(codes.PermissionDenied, "Only original owner can access the resource")
	}
	return entry, nil
}

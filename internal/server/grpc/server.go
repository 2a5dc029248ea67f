// Package grpc exposes the access-control engine over gRPC. Messages are
// google.protobuf.Struct values; the caller's identity comes from the
// access_token metadata entry.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/JustWint3r/SecureShare/internal/logging"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/services"
)

// AccessService is the engine surface served over gRPC.
type AccessService interface {
	EncryptAndStore(ctx context.Context, actorID, name, contentType string, plaintext []byte) (*models.Document, error)
	FetchAndDecrypt(ctx context.Context, actorID, documentID string) ([]byte, *models.Document, error)
	View(ctx context.Context, actorID, documentID string) (*models.Document, error)
	Rename(ctx context.Context, actorID, documentID, newName string) (*models.Document, error)
	Delete(ctx context.Context, actorID, documentID string) error
	Grant(ctx context.Context, actorID, documentID, granteeID string, level models.PermissionLevel) (*models.PermissionGrant, error)
	Revoke(ctx context.Context, actorID, documentID, granteeID string) error
	ListGrants(ctx context.Context, actorID, documentID string) ([]*models.PermissionGrant, error)
	IssueShareToken(ctx context.Context, actorID, documentID string, level models.ShareLevel, opts services.IssueOptions) (*services.IssuedToken, error)
	RedeemShareToken(ctx context.Context, actorID, token string) (*services.Redemption, error)
	Reshare(ctx context.Context, actorID, documentID string, level models.ShareLevel, opts services.IssueOptions) (*services.IssuedToken, error)
	DeactivateShareToken(ctx context.Context, actorID, tokenID string) error
	QueryAuditLog(ctx context.Context, actorID string, filter models.AuditFilter) ([]*models.AuditRecord, error)
}

type GRPCServer struct {
	address   string
	access    AccessService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, access AccessService, secretKey string) (*GRPCServer, error) {
	if l == nil {
		l = logging.Nop{}
	}
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		access:    access,
		jwtSecret: []byte(secretKey),
	}, nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(&ServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// Run serves until ctx is done, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	<-stopped
	return nil
}

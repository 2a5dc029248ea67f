package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/JustWint3r/SecureShare/internal/cryptox"
	"github.com/JustWint3r/SecureShare/internal/logging"
	"github.com/JustWint3r/SecureShare/internal/server/auth"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/objectstore/memstore"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/repomanager"
	"github.com/JustWint3r/SecureShare/internal/server/services"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type nopMirror struct{}

func (nopMirror) Enqueue(*models.AuditRecord) bool { return true }

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv, err := NewGRPCServer("127.0.0.1:0", nopLogger{}, &fakeAccess{}, "secret")
	if err != nil {
		t.Fatalf("NewGRPCServer error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv, err := NewGRPCServer("127.0.0.1:99999", nopLogger{}, &fakeAccess{}, "secret")
	if err != nil {
		t.Fatalf("NewGRPCServer error (constructor should not fail here): %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

// startEngine serves a memory-backed engine over an in-process listener.
func startEngine(t *testing.T, secret string) *grpc.ClientConn {
	t.Helper()

	m := repomanager.NewMemoryRepositoryManager()
	permissions := services.NewPermissionStore(m.Documents(), m.Grants())
	audit := services.NewAuditLedger(m.AuditRecords(), nopMirror{}, nil)
	tokens := services.NewShareTokenManager(m, permissions, audit, nil, services.ShareTokenConfig{}, nil)
	access := services.NewAccessControl(m, cryptox.NewKeyVault(nil), cryptox.NewCipherEngine(),
		memstore.New(), permissions, audit, tokens, nil)

	srv, err := NewGRPCServer("bufnet", nopLogger{}, access, secret)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		require.NoError(t, <-done)
	})
	return conn
}

func TestEndToEnd_ShareOverGRPC(t *testing.T) {
	const secret = "secret"
	conn := startEngine(t, secret)
	ctx := context.Background()

	tokenFor := func(user string) string {
		tok, err := auth.GenerateToken(user, []byte(secret), time.Minute)
		require.NoError(t, err)
		return tok
	}
	base := NewClient(conn)
	owner := base.WithAccessToken(tokenFor("owner"))
	guest := base.WithAccessToken(tokenFor("guest"))

	require.NoError(t, base.Ping(ctx))

	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.GetStatus())

	_, err = base.Call(ctx, MethodView, map[string]any{"document_id": "x"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	docID, err := owner.Upload(ctx, "notes.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)
	require.NotEmpty(t, docID)

	_, err = guest.Download(ctx, docID)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	issued, err := owner.Call(ctx, MethodIssueShareToken, map[string]any{
		"document_id": docID, "share_level": "view", "max_redemptions": 1.0,
	})
	require.NoError(t, err)
	raw := issued.GetFields()["token"].GetStringValue()
	require.NotEmpty(t, raw)

	red, err := guest.Call(ctx, MethodRedeemShareToken, map[string]any{"token": raw})
	require.NoError(t, err)
	assert.Equal(t, "read", red.GetFields()["level"].GetStringValue())

	content, err := guest.Download(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	_, err = base.WithAccessToken(tokenFor("late")).Call(ctx, MethodRedeemShareToken, map[string]any{"token": raw})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	log, err := owner.Call(ctx, MethodQueryAuditLog, map[string]any{"document_id": docID})
	require.NoError(t, err)
	var actions []string
	for _, v := range log.GetFields()["records"].GetListValue().GetValues() {
		actions = append(actions, v.GetStructValue().GetFields()["action"].GetStringValue())
	}
	assert.Equal(t, []string{"upload", "denied", "issue", "redeem", "download", "denied"}, actions)
}

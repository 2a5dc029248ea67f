package cli

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/JustWint3r/SecureShare/internal/client/config"
	"github.com/JustWint3r/SecureShare/internal/cryptox"
	"github.com/JustWint3r/SecureShare/internal/logging"
	"github.com/JustWint3r/SecureShare/internal/server/auth"
	gs "github.com/JustWint3r/SecureShare/internal/server/grpc"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/objectstore/memstore"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/repomanager"
	"github.com/JustWint3r/SecureShare/internal/server/services"
)

type nopMirror struct{}

func (nopMirror) Enqueue(*models.AuditRecord) bool { return true }

func testConfig(user string) *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.User = user
	return c
}

// connect serves a memory-backed engine over bufconn and returns a client
// connection to it.
func connect(t *testing.T, secret string) *grpc.ClientConn {
	t.Helper()

	m := repomanager.NewMemoryRepositoryManager()
	permissions := services.NewPermissionStore(m.Documents(), m.Grants())
	audit := services.NewAuditLedger(m.AuditRecords(), nopMirror{}, nil)
	tokens := services.NewShareTokenManager(m, permissions, audit, nil, services.ShareTokenConfig{}, nil)
	access := services.NewAccessControl(m, cryptox.NewKeyVault(nil), cryptox.NewCipherEngine(),
		memstore.New(), permissions, audit, tokens, nil)

	srv, err := gs.NewGRPCServer("bufnet", logging.Nop{}, access, secret)
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
		<-done
	})
	return conn
}

func TestRun_Usage(t *testing.T) {
	a := NewApp(testConfig("alice"), &bytes.Buffer{})

	assert.ErrorIs(t, a.Run(context.Background(), nil), ErrUsage)
	assert.ErrorIs(t, a.Run(context.Background(), []string{"frobnicate"}), ErrUsage)
}

func TestRun_Token(t *testing.T) {
	out := &bytes.Buffer{}
	a := NewApp(testConfig("alice"), out)

	require.NoError(t, a.Run(context.Background(), []string{"token"}))

	user, err := auth.GetUserIDFromToken(strings.TrimSpace(out.String()), []byte("secretKey"))
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
}

func TestRun_TokenNeedsUser(t *testing.T) {
	a := NewApp(testConfig(""), &bytes.Buffer{})
	assert.Error(t, a.Run(context.Background(), []string{"token"}))
}

func TestRun_UploadDownloadRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmp))
	t.Cleanup(func() { _ = os.Chdir(old) })

	src := filepath.Join(tmp, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))

	conn := connect(t, "secretKey")
	out := &bytes.Buffer{}
	a := NewApp(testConfig("alice"), out)
	a.conn = conn
	a.config.CallTimeout = 5 * time.Second

	require.NoError(t, a.Run(context.Background(), []string{"ping"}))
	assert.Equal(t, "OK\n", out.String())

	out.Reset()
	require.NoError(t, a.Run(context.Background(), []string{"upload", src}))
	docID := strings.TrimSpace(out.String())
	require.NotEmpty(t, docID)

	out.Reset()
	require.NoError(t, a.Run(context.Background(), []string{"download", docID}))
	path := strings.TrimSpace(out.String())
	assert.Equal(t, "notes.txt", filepath.Base(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	out.Reset()
	require.NoError(t, a.Run(context.Background(), []string{"call", gs.MethodListGrants, `{"document_id":"` + docID + `"}`}))
	assert.Contains(t, out.String(), `"grants"`)

	bob := NewApp(testConfig("bob"), &bytes.Buffer{})
	bob.conn = conn
	assert.Error(t, bob.Run(context.Background(), []string{"download", docID}))
}

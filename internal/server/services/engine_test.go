package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JustWint3r/SecureShare/internal/cryptox"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/objectstore/memstore"
	"github.com/JustWint3r/SecureShare/internal/server/ratelimit"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/repomanager"
)

// --- helpers ---

type recordingMirror struct {
	mu   sync.Mutex
	recs []*models.AuditRecord
}

func (m *recordingMirror) Enqueue(rec *models.AuditRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return true
}

func (m *recordingMirror) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r.ID)
	}
	return out
}

type engineOptions struct {
	admins   []string
	limiter  ratelimit.Limiter
	tokenCfg ShareTokenConfig
	mirror   Mirrorer
}

type engineOption func(*engineOptions)

func withAdmins(ids ...string) engineOption {
	return func(o *engineOptions) { o.admins = ids }
}

func withLimiter(l ratelimit.Limiter, cfg ShareTokenConfig) engineOption {
	return func(o *engineOptions) { o.limiter, o.tokenCfg = l, cfg }
}

func withMirror(m Mirrorer) engineOption {
	return func(o *engineOptions) { o.mirror = m }
}

type engine struct {
	manager     *repomanager.MemoryRepositoryManager
	blobs       *memstore.Store
	mirror      *recordingMirror
	permissions *PermissionStore
	audit       *AuditLedger
	tokens      *ShareTokenManager
	access      *AccessControl
}

func newEngine(t *testing.T, opts ...engineOption) *engine {
	t.Helper()
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	e := &engine{
		manager: repomanager.NewMemoryRepositoryManager(),
		blobs:   memstore.New(),
		mirror:  &recordingMirror{},
	}
	var mirror Mirrorer = e.mirror
	if o.mirror != nil {
		mirror = o.mirror
	}
	e.permissions = NewPermissionStore(e.manager.Documents(), e.manager.Grants())
	e.audit = NewAuditLedger(e.manager.AuditRecords(), mirror, o.admins)
	e.tokens = NewShareTokenManager(e.manager, e.permissions, e.audit, o.limiter, o.tokenCfg, nil)
	e.access = NewAccessControl(e.manager, cryptox.NewKeyVault(nil), cryptox.NewCipherEngine(),
		e.blobs, e.permissions, e.audit, e.tokens, nil)
	return e
}

func (e *engine) upload(t *testing.T, owner, content string) *models.Document {
	t.Helper()
	doc, err := e.access.EncryptAndStore(context.Background(), owner, "notes.txt", "text/plain", []byte(content))
	require.NoError(t, err)
	return doc
}

// allRecords returns the whole ledger, bypassing visibility.
func (e *engine) allRecords(t *testing.T) []*models.AuditRecord {
	t.Helper()
	recs, err := e.manager.AuditRecords().Query(context.Background(), models.AuditFilter{}, "")
	require.NoError(t, err)
	return recs
}

func (e *engine) lastRecord(t *testing.T) *models.AuditRecord {
	t.Helper()
	recs := e.allRecords(t)
	require.NotEmpty(t, recs)
	return recs[len(recs)-1]
}

func intPtr(n int) *int { return &n }

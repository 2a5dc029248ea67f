package ledger

import (
	"bytes"
	"testing"
	"time"

	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_VerifyRoundTrip(t *testing.T) {
	doc := "d-1"
	rec := &models.AuditRecord{
		ID: "r-1", Seq: 4, DocumentID: &doc, ActorID: "alice", Action: models.ActionGrant,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Context:   map[string]string{"grantee": "bob", "level": "read"},
	}

	p1, err := Payload(rec)
	require.NoError(t, err)
	p2, err := Payload(rec)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	e, err := Verify(p1)
	require.NoError(t, err)
	assert.Equal(t, "r-1", e.RecordID)
	assert.Equal(t, "d-1", e.DocumentID)
	assert.Equal(t, "grant", e.Action)
	assert.Equal(t, "bob", e.Context["grantee"])
}

func TestVerify_DetectsTampering(t *testing.T) {
	rec := &models.AuditRecord{ID: "r-1", ActorID: "alice", Action: models.ActionView, Timestamp: time.Now()}
	p, err := Payload(rec)
	require.NoError(t, err)

	tampered := bytes.Replace(p, []byte(`"alice"`), []byte(`"mallory"`), 1)
	require.NotEqual(t, p, tampered)
	_, err = Verify(tampered)
	assert.Error(t, err)
}

func TestPayload_MatchesRecordReloadedAtMicrosecondPrecision(t *testing.T) {
	stamped := time.Date(2025, 6, 1, 12, 0, 5, 123456789, time.UTC)
	rec := &models.AuditRecord{ID: "r-1", Seq: 9, ActorID: "alice", Action: models.ActionDownload, Timestamp: stamped}
	reloaded := *rec
	reloaded.Timestamp = stamped.Truncate(time.Microsecond).In(time.FixedZone("db", 7200))

	p1, err := Payload(rec)
	require.NoError(t, err)
	p2, err := Payload(&reloaded)
	require.NoError(t, err)
	assert.Equal(t, string(p1), string(p2))
}

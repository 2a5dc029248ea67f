// Package ledger defines the external tamper-evident ledger that audit
// records are mirrored to, and the payload written for each record.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JustWint3r/SecureShare/internal/server/models"
)

// ErrConflict means the ledger already holds a different payload under the
// record ID. Retrying cannot fix it.
var ErrConflict = errors.New("ledger: conflicting payload for record")

// Writer appends one payload per record ID and returns the ledger's
// reference for it. Writing the same payload twice returns the same
// reference.
type Writer interface {
	Write(ctx context.Context, recordID string, payload []byte) (string, error)
}

// Entry is the immutable part of an audit record as stored in the ledger.
type Entry struct {
	RecordID   string            `json:"record_id"`
	Seq        int64             `json:"seq"`
	DocumentID string            `json:"document_id,omitempty"`
	ActorID    string            `json:"actor_id"`
	Action     string            `json:"action"`
	Timestamp  time.Time         `json:"timestamp"`
	Context    map[string]string `json:"context,omitempty"`
}

type envelope struct {
	Entry  Entry  `json:"entry"`
	SHA256 string `json:"sha256"`
}

// Payload encodes rec with a SHA-256 digest of its canonical JSON form. The
// timestamp is cut to the microsecond precision of the primary store, so a
// record reloaded from it encodes to the same bytes.
func Payload(rec *models.AuditRecord) ([]byte, error) {
	e := Entry{
		RecordID:  rec.ID,
		Seq:       rec.Seq,
		ActorID:   rec.ActorID,
		Action:    string(rec.Action),
		Timestamp: rec.Timestamp.UTC().Truncate(time.Microsecond),
		Context:   rec.Context,
	}
	if rec.DocumentID != nil {
		e.DocumentID = *rec.DocumentID
	}

	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal ledger entry: %w", err)
	}
	sum := sha256.Sum256(body)

	return json.Marshal(envelope{Entry: e, SHA256: hex.EncodeToString(sum[:])})
}

// Verify decodes a payload and checks its digest.
func Verify(payload []byte) (Entry, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Entry{}, fmt.Errorf("unmarshal ledger payload: %w", err)
	}
	body, err := json.Marshal(env.Entry)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal ledger entry: %w", err)
	}
	sum := sha256.Sum256(body)
	if hex.EncodeToString(sum[:]) != env.SHA256 {
		return Entry{}, fmt.Errorf("ledger payload digest mismatch for %s", env.Entry.RecordID)
	}
	return env.Entry, nil
}

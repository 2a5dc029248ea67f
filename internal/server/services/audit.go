package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/auditrecords"
)

const (
	DefaultAuditQueryLimit = 100
	MaxAuditQueryLimit     = 1000
)

// Mirrorer hands a stored record to the external ledger mirror. Enqueue must
// not block; a record it rejects is picked up later by the mirror's sweep.
type Mirrorer interface {
	Enqueue(rec *models.AuditRecord) bool
}

// AuditLedger is the primary, append-only record of every access decision.
type AuditLedger struct {
	records auditrecords.Repository
	mirror  Mirrorer
	admins  map[string]struct{}
	now     func() time.Time

	// pending is set when the ledger is bound to a transaction. Records are
	// collected there and mirrored only after commit.
	pending *[]*models.AuditRecord
}

// NewAuditLedger constructs an AuditLedger. mirror may be nil, in which case
// records are only stored locally. administrators see every record.
func NewAuditLedger(records auditrecords.Repository, mirror Mirrorer, administrators []string) *AuditLedger {
	admins := make(map[string]struct{}, len(administrators))
	for _, id := range administrators {
		if id != "" {
			admins[id] = struct{}{}
		}
	}
	return &AuditLedger{records: records, mirror: mirror, admins: admins, now: time.Now}
}

func (a *AuditLedger) bind(records auditrecords.Repository, pending *[]*models.AuditRecord) *AuditLedger {
	c := *a
	c.records = records
	c.pending = pending
	return &c
}

// IsAdministrator reports whether userID is a configured administrator.
func (a *AuditLedger) IsAdministrator(userID string) bool {
	_, ok := a.admins[userID]
	return ok
}

// Record stores a new record synchronously. A failure here must fail the
// action being recorded.
func (a *AuditLedger) Record(ctx context.Context, entry models.AuditEntry) (*models.AuditRecord, error) {
	if !entry.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown audit action %q", common.ErrValidation, entry.Action)
	}
	if entry.ActorID == "" {
		return nil, fmt.Errorf("%w: audit actor is required", common.ErrValidation)
	}

	// Postgres keeps microseconds. The record handed to the mirror must match
	// the row the sweeper reloads.
	rec := &models.AuditRecord{
		ID:        uuid.NewString(),
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		Timestamp: a.now().UTC().Truncate(time.Microsecond),
		Context:   make(map[string]string, len(entry.Context)),
	}
	for k, v := range entry.Context {
		rec.Context[k] = v
	}
	if entry.DocumentID != "" {
		id := entry.DocumentID
		rec.DocumentID = &id
	}

	if err := a.records.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("error recording %s: %w", entry.Action, err)
	}

	if a.pending != nil {
		*a.pending = append(*a.pending, rec)
	} else {
		a.Mirror(rec)
	}
	return rec, nil
}

// Mirror queues rec for the external ledger. Mirroring failures never reach
// the caller.
func (a *AuditLedger) Mirror(rec *models.AuditRecord) {
	if a.mirror == nil || rec == nil {
		return
	}
	a.mirror.Enqueue(rec)
}

// Query returns the records viewerID may see, oldest first. Administrators see
// everything; other users see records they acted in and every record of the
// documents they own.
func (a *AuditLedger) Query(ctx context.Context, viewerID string, filter models.AuditFilter) ([]*models.AuditRecord, error) {
	if viewerID == "" {
		return nil, fmt.Errorf("%w: viewer is required", common.ErrValidation)
	}
	if filter.Action != "" && !filter.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown audit action %q", common.ErrValidation, filter.Action)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", common.ErrValidation)
	}
	switch {
	case filter.Limit == 0:
		filter.Limit = DefaultAuditQueryLimit
	case filter.Limit > MaxAuditQueryLimit:
		filter.Limit = MaxAuditQueryLimit
	}

	visibleTo := viewerID
	if a.IsAdministrator(viewerID) {
		visibleTo = ""
	}
	out, err := a.records.Query(ctx, filter, visibleTo)
	if err != nil {
		return nil, fmt.Errorf("error querying audit log: %w", err)
	}
	return out, nil
}

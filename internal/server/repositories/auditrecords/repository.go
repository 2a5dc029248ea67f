// Package auditrecords persists the append-only audit ledger. Records are
// never updated except for the one-time external ledger reference and the
// mirror bookkeeping columns.
package auditrecords

import (
	"context"
	"time"

	"github.com/JustWint3r/SecureShare/internal/server/models"
)

type Repository interface {
	// Insert stores rec and fills in its Seq.
	Insert(ctx context.Context, rec *models.AuditRecord) error
	Get(ctx context.Context, id string) (*models.AuditRecord, error)
	// Query returns matching records in insertion order. A non-empty
	// visibleTo restricts results to records acted by that user or
	// attached to documents they own.
	Query(ctx context.Context, filter models.AuditFilter, visibleTo string) ([]*models.AuditRecord, error)
	// SetExternalRef stores ref unless one is already present and reports
	// whether it was written.
	SetExternalRef(ctx context.Context, id, ref string) (bool, error)
	IncrementMirrorAttempts(ctx context.Context, id string) error
	MarkAbandoned(ctx context.Context, id string, at time.Time) error
	// ListUnmirrored returns records with no reference that were not
	// abandoned, oldest first.
	ListUnmirrored(ctx context.Context, limit int) ([]*models.AuditRecord, error)
	CountUnmirrored(ctx context.Context) (int64, error)
}

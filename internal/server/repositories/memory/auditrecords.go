package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/server/models"
)

type AuditRecordRepository struct {
	v view
}

func (r *AuditRecordRepository) Insert(_ context.Context, rec *models.AuditRecord) error {
	return r.v.write(func(s *state) error {
		if _, ok := s.auditByID[rec.ID]; ok {
			return fmt.Errorf("audit record %s already exists: %w", rec.ID, common.ErrStorage)
		}
		nr := *rec
		nr.Seq = int64(len(s.audit) + 1)
		nr.Context = make(map[string]string, len(rec.Context))
		for k, v := range rec.Context {
			nr.Context[k] = v
		}
		s.audit = append(s.audit, nr)
		s.auditByID[rec.ID] = len(s.audit) - 1
		rec.Seq = nr.Seq
		return nil
	})
}

func (r *AuditRecordRepository) Get(_ context.Context, id string) (*models.AuditRecord, error) {
	var out *models.AuditRecord
	err := r.v.read(func(s *state) error {
		i, ok := s.auditByID[id]
		if !ok {
			return fmt.Errorf("audit record %s: %w", id, common.ErrNotFound)
		}
		out = copyRecord(s.audit[i])
		return nil
	})
	return out, err
}

func (r *AuditRecordRepository) Query(_ context.Context, filter models.AuditFilter, visibleTo string) ([]*models.AuditRecord, error) {
	var out []*models.AuditRecord
	err := r.v.read(func(s *state) error {
		skipped := 0
		for _, rec := range s.audit {
			if !matches(s, rec, filter, visibleTo) {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			if filter.Limit > 0 && len(out) >= filter.Limit {
				break
			}
			out = append(out, copyRecord(rec))
		}
		return nil
	})
	return out, err
}

func matches(s *state, rec models.AuditRecord, filter models.AuditFilter, visibleTo string) bool {
	docID := ""
	if rec.DocumentID != nil {
		docID = *rec.DocumentID
	}
	if filter.DocumentID != "" && docID != filter.DocumentID {
		return false
	}
	if filter.ActorID != "" && rec.ActorID != filter.ActorID {
		return false
	}
	if filter.Action != "" && rec.Action != filter.Action {
		return false
	}
	if visibleTo == "" || rec.ActorID == visibleTo {
		return true
	}
	d, ok := s.documents[docID]
	return ok && d.OwnerID == visibleTo
}

func (r *AuditRecordRepository) SetExternalRef(_ context.Context, id, ref string) (bool, error) {
	var set bool
	err := r.v.write(func(s *state) error {
		i, ok := s.auditByID[id]
		if !ok || s.audit[i].ExternalLedgerRef != nil {
			return nil
		}
		s.audit[i].ExternalLedgerRef = &ref
		set = true
		return nil
	})
	return set, err
}

func (r *AuditRecordRepository) IncrementMirrorAttempts(_ context.Context, id string) error {
	return r.v.write(func(s *state) error {
		if i, ok := s.auditByID[id]; ok {
			s.audit[i].MirrorAttempts++
		}
		return nil
	})
}

func (r *AuditRecordRepository) MarkAbandoned(_ context.Context, id string, at time.Time) error {
	return r.v.write(func(s *state) error {
		i, ok := s.auditByID[id]
		if !ok || s.audit[i].ExternalLedgerRef != nil || s.audit[i].MirrorAbandonedAt != nil {
			return nil
		}
		s.audit[i].MirrorAbandonedAt = &at
		return nil
	})
}

func (r *AuditRecordRepository) ListUnmirrored(_ context.Context, limit int) ([]*models.AuditRecord, error) {
	var out []*models.AuditRecord
	err := r.v.read(func(s *state) error {
		for _, rec := range s.audit {
			if limit > 0 && len(out) >= limit {
				break
			}
			if rec.ExternalLedgerRef == nil && rec.MirrorAbandonedAt == nil {
				out = append(out, copyRecord(rec))
			}
		}
		return nil
	})
	return out, err
}

func (r *AuditRecordRepository) CountUnmirrored(_ context.Context) (int64, error) {
	var n int64
	err := r.v.read(func(s *state) error {
		for _, rec := range s.audit {
			if rec.ExternalLedgerRef == nil && rec.MirrorAbandonedAt == nil {
				n++
			}
		}
		return nil
	})
	return n, err
}

func copyRecord(rec models.AuditRecord) *models.AuditRecord {
	out := rec
	out.Context = make(map[string]string, len(rec.Context))
	for k, v := range rec.Context {
		out.Context[k] = v
	}
	return &out
}

package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/server/models"
)

type DocumentRepository struct {
	v view
}

func (r *DocumentRepository) Create(_ context.Context, doc *models.Document) error {
	return r.v.write(func(s *state) error {
		if _, ok := s.documents[doc.ID]; ok {
			return fmt.Errorf("document %s already exists: %w", doc.ID, common.ErrStorage)
		}
		d := *doc
		d.WrappedKey = append([]byte(nil), doc.WrappedKey...)
		s.documents[doc.ID] = d
		return nil
	})
}

func (r *DocumentRepository) Get(_ context.Context, id string) (*models.Document, error) {
	var out *models.Document
	err := r.v.read(func(s *state) error {
		d, ok := s.documents[id]
		if !ok {
			return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
		}
		out = &d
		return nil
	})
	return out, err
}

func (r *DocumentRepository) Rename(_ context.Context, id, name string, at time.Time) (*models.Document, error) {
	var out *models.Document
	err := r.v.write(func(s *state) error {
		d, ok := s.documents[id]
		if !ok || d.Deleted() {
			return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
		}
		d.Name = name
		d.UpdatedAt = at
		s.documents[id] = d
		out = &d
		return nil
	})
	return out, err
}

func (r *DocumentRepository) MarkDeleted(_ context.Context, id string, at time.Time) error {
	return r.v.write(func(s *state) error {
		d, ok := s.documents[id]
		if !ok || d.Deleted() {
			return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
		}
		d.DeletedAt = &at
		d.UpdatedAt = at
		s.documents[id] = d
		return nil
	})
}

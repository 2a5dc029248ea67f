// Package documents persists document metadata. Ciphertext lives in the
// object store; rows here carry the locator and the wrapped key.
package documents

import (
	"context"
	"time"

	"github.com/JustWint3r/SecureShare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, doc *models.Document) error
	// Get returns the document even when it is logically deleted.
	Get(ctx context.Context, id string) (*models.Document, error)
	Rename(ctx context.Context, id, name string, at time.Time) (*models.Document, error)
	MarkDeleted(ctx context.Context, id string, at time.Time) error
}

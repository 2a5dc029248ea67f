// Package objectstore defines where encrypted document payloads live. Stores
// hold opaque bytes; they never see plaintext or keys.
package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is a flat byte-blob store addressed by locator. Put returns the
// locator the blob can be fetched under. Get of an unknown locator fails
// with common.ErrNotFound; other backend failures match common.ErrStorage.
type Store interface {
	Put(ctx context.Context, locator string, data []byte) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}

// NewLocator returns a fresh, date-partitioned locator for a document.
func NewLocator(documentID string) string {
	d := time.Now().UTC()
	return fmt.Sprintf("documents/%d/%02d/%02d/%s-%s", d.Year(), d.Month(), d.Day(), documentID, uuid.NewString())
}

package models

import "time"

// Document is the metadata of one encrypted payload. The ciphertext lives in
// the object store under StorageLocator and is never rewritten in place.
type Document struct {
	ID            string
	OwnerID       string
	Name          string
	ContentType   string
	ContentLength int64
	// StorageLocator is opaque to the engine; only the object store reads it.
	StorageLocator string
	// WrappedKey is the packaged (and optionally envelope-encrypted) key and
	// nonce. It never leaves the server.
	WrappedKey []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// Deleted reports whether the document was logically deleted.
func (d *Document) Deleted() bool {
	return d.DeletedAt != nil
}

package models

import "time"

// PermissionGrant binds a user to a document. There is one row per
// (DocumentID, UserID); revocation and re-grant mutate it in place.
type PermissionGrant struct {
	DocumentID string
	UserID     string
	Level      PermissionLevel
	GrantedBy  string
	GrantedAt  time.Time
	RevokedAt  *time.Time
	IsActive   bool
}

package models

import "time"

// ShareToken is a capability to obtain a grant on a document. Only the hash of
// the secret is stored; the secret is handed out once at issuance.
type ShareToken struct {
	ID              string
	TokenHash       []byte
	DocumentID      string
	IssuedBy        string
	ShareLevel      ShareLevel
	PermissionLevel PermissionLevel
	Reshared        bool
	IsActive        bool
	ExpiresAt       *time.Time
	MaxRedemptions  *int
	RedemptionCount int
	CreatedAt       time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *ShareToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Exhausted reports whether the redemption cap has been reached.
func (t *ShareToken) Exhausted() bool {
	return t.MaxRedemptions != nil && t.RedemptionCount >= *t.MaxRedemptions
}

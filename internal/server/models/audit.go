package models

import "time"

// Action is the closed set of audited actions.
type Action string

const (
	ActionUpload     Action = "upload"
	ActionDownload   Action = "download"
	ActionView       Action = "view"
	ActionGrant      Action = "grant"
	ActionRevoke     Action = "revoke"
	ActionIssue      Action = "issue"
	ActionReshare    Action = "reshare"
	ActionRedeem     Action = "redeem"
	ActionDelete     Action = "delete"
	ActionRename     Action = "rename"
	ActionListGrants Action = "list_grants"
	ActionDenied     Action = "denied"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionUpload, ActionDownload, ActionView, ActionGrant, ActionRevoke,
		ActionIssue, ActionReshare, ActionRedeem, ActionDelete, ActionRename, ActionListGrants, ActionDenied:
		return true
	}
	return false
}

// AuditRecord is an immutable access record. Only ExternalLedgerRef (once)
// and the mirror bookkeeping fields are written after insertion.
type AuditRecord struct {
	ID         string
	Seq        int64
	DocumentID *string
	ActorID    string
	Action     Action
	Timestamp  time.Time
	Context    map[string]string

	ExternalLedgerRef *string
	MirrorAttempts    int
	MirrorAbandonedAt *time.Time
}

// AuditEntry carries the caller-supplied fields of a new record.
type AuditEntry struct {
	DocumentID string
	ActorID    string
	Action     Action
	Context    map[string]string
}

// AuditFilter selects records for a query. Empty fields do not filter.
type AuditFilter struct {
	DocumentID string
	ActorID    string
	Action     Action
	Limit      int
	Offset     int
}

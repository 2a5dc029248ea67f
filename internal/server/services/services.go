// Package services contains the access-control engine: the permission store,
// the share token manager, the audit ledger and the AccessControl facade that
// runs every document action through check, effect and audit.
package services

import (
	"context"
	"errors"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/logging"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/repomanager"
)

// denial aborts an action the actor is not allowed to perform. The runner
// records it as a Denied entry carrying reason.
type denial struct {
	err    error
	reason string
}

func (d *denial) Error() string { return d.err.Error() }
func (d *denial) Unwrap() error { return d.err }

func deny(err error, reason string) error {
	return &denial{err: err, reason: reason}
}

// unit is the set of components bound to one transaction.
type unit struct {
	repos       repomanager.Repositories
	permissions *PermissionStore
	audit       *AuditLedger
}

// resolve loads a live document and the actor's effective level on it.
// Unknown and deleted documents are denials.
func (u *unit) resolve(ctx context.Context, entry *models.AuditEntry, documentID, actorID string) (*models.Document, models.PermissionLevel, bool, error) {
	doc, err := u.repos.Documents().Get(ctx, documentID)
	if errors.Is(err, common.ErrNotFound) {
		detach(entry)
		return nil, models.LevelNone, false, deny(common.ErrAccessDenied, "document_not_found")
	}
	if err != nil {
		return nil, models.LevelNone, false, err
	}
	if doc.Deleted() {
		return nil, models.LevelNone, false, deny(common.ErrAccessDenied, "document_deleted")
	}
	level, isOwner, err := u.permissions.levelOn(ctx, doc, actorID)
	if err != nil {
		return nil, models.LevelNone, false, err
	}
	return doc, level, isOwner, nil
}

// runner executes audited actions. Every run stores exactly one audit record.
type runner struct {
	manager     repomanager.RepositoryManager
	permissions *PermissionStore
	audit       *AuditLedger
	log         logging.Logger
}

func newRunner(m repomanager.RepositoryManager, permissions *PermissionStore, audit *AuditLedger, log logging.Logger) *runner {
	if log == nil {
		log = logging.Nop{}
	}
	return &runner{manager: m, permissions: permissions, audit: audit, log: log}
}

// run executes fn in a transaction. On success entry is recorded in the same
// transaction and mirrored after commit. Otherwise the transaction rolls back
// and entry is recorded on its own: as Denied for a denial, with an error
// outcome for any other failure. fn may fill in entry while it runs.
func (r *runner) run(ctx context.Context, entry *models.AuditEntry, fn func(ctx context.Context, u *unit) error) error {
	if entry.Context == nil {
		entry.Context = map[string]string{}
	}

	var recorded []*models.AuditRecord
	err := r.manager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		recorded = recorded[:0]
		u := &unit{
			repos:       repos,
			permissions: r.permissions.bind(repos),
			audit:       r.audit.bind(repos.AuditRecords(), &recorded),
		}
		if err := fn(ctx, u); err != nil {
			return err
		}
		_, err := u.audit.Record(ctx, *entry)
		return err
	})
	if err == nil {
		for _, rec := range recorded {
			r.audit.Mirror(rec)
		}
		return nil
	}
	return r.recordFailure(context.WithoutCancel(ctx), *entry, err)
}

func (r *runner) recordFailure(ctx context.Context, entry models.AuditEntry, cause error) error {
	// A rolled back upload left no document row to point at.
	if entry.Action == models.ActionUpload {
		detach(&entry)
	}
	failed := make(map[string]string, len(entry.Context)+2)
	for k, v := range entry.Context {
		failed[k] = v
	}

	var d *denial
	if errors.As(cause, &d) {
		failed["attempted"] = string(entry.Action)
		failed["reason"] = d.reason
		entry.Action = models.ActionDenied
		cause = d.err
	} else {
		failed["outcome"] = "failure"
		failed["error"] = errorKind(cause)
	}
	entry.Context = failed

	if _, err := r.audit.Record(ctx, entry); err != nil {
		r.log.Error(ctx, "failed to record audit entry",
			"action", string(entry.Action), "actor_id", entry.ActorID, "cause", cause, "error", err)
	}
	if entry.Action == models.ActionDenied {
		r.log.Info(ctx, "access denied",
			"attempted", failed["attempted"], "actor_id", entry.ActorID, "reason", failed["reason"])
	}
	return cause
}

// detach moves the document reference of entry into its context, for
// documents that do not exist and cannot be referenced.
func detach(entry *models.AuditEntry) {
	if entry.DocumentID == "" {
		return
	}
	if entry.Context == nil {
		entry.Context = map[string]string{}
	}
	entry.Context["document_id"] = entry.DocumentID
	entry.DocumentID = ""
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, common.ErrAuthorization):
		return "authorization"
	case errors.Is(err, common.ErrToken):
		return "token"
	case errors.Is(err, common.ErrCrypto):
		return "crypto"
	case errors.Is(err, common.ErrValidation):
		return "validation"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrStorage):
		return "storage"
	}
	return "internal"
}

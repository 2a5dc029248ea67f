package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/cryptox"
	"github.com/JustWint3r/SecureShare/internal/logging"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/objectstore"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/repomanager"
)

// AccessControl is the single entry point for document actions. Each call
// resolves the level the action needs, checks it, performs the effect and
// records the outcome in the audit ledger.
type AccessControl struct {
	*runner
	vault  *cryptox.KeyVault
	cipher *cryptox.CipherEngine
	store  objectstore.Store
	tokens *ShareTokenManager
	now    func() time.Time
}

// NewAccessControl wires the facade. All collaborators are required.
func NewAccessControl(
	m repomanager.RepositoryManager,
	vault *cryptox.KeyVault,
	cipher *cryptox.CipherEngine,
	store objectstore.Store,
	permissions *PermissionStore,
	audit *AuditLedger,
	tokens *ShareTokenManager,
	log logging.Logger,
) *AccessControl {
	if log == nil {
		log = logging.Nop{}
	}
	return &AccessControl{
		runner: newRunner(m, permissions, audit, log.With("module", "access")),
		vault:  vault,
		cipher: cipher,
		store:  store,
		tokens: tokens,
		now:    time.Now,
	}
}

// EncryptAndStore encrypts plaintext under a fresh key, stores the ciphertext
// and creates the document owned by actorID.
func (s *AccessControl) EncryptAndStore(ctx context.Context, actorID, name, contentType string, plaintext []byte) (*models.Document, error) {
	entry := &models.AuditEntry{ActorID: actorID, Action: models.ActionUpload,
		Context: map[string]string{"name": name, "content_length": strconv.Itoa(len(plaintext))}}

	var (
		doc     *models.Document
		locator string
	)
	err := s.run(ctx, entry, func(ctx context.Context, u *unit) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: document name is required", common.ErrValidation)
		}

		key, err := s.vault.GenerateKey()
		if err != nil {
			return err
		}
		defer key.Wipe()

		ciphertext, nonce, err := s.cipher.Encrypt(plaintext, key)
		if err != nil {
			return err
		}
		key.Nonce = nonce
		wrapped, err := s.vault.Seal(ctx, key)
		if err != nil {
			return err
		}

		id := uuid.NewString()
		locator, err = s.store.Put(ctx, objectstore.NewLocator(id), ciphertext)
		if err != nil {
			return fmt.Errorf("error storing ciphertext: %w", err)
		}

		now := s.now().UTC()
		d := &models.Document{
			ID:             id,
			OwnerID:        actorID,
			Name:           name,
			ContentType:    contentType,
			ContentLength:  int64(len(plaintext)),
			StorageLocator: locator,
			WrappedKey:     wrapped,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := u.repos.Documents().Create(ctx, d); err != nil {
			return fmt.Errorf("error creating document: %w", err)
		}
		entry.DocumentID = id
		doc = d
		return nil
	})
	if err != nil {
		if locator != "" {
			if derr := s.store.Delete(context.WithoutCancel(ctx), locator); derr != nil {
				s.log.Warn(ctx, "failed to remove orphaned ciphertext", "locator", locator, "error", derr)
			}
		}
		return nil, err
	}
	return doc, nil
}

// FetchAndDecrypt returns the plaintext of a document the actor may read.
// It is recorded as Download.
func (s *AccessControl) FetchAndDecrypt(ctx context.Context, actorID, documentID string) ([]byte, *models.Document, error) {
	entry := &models.AuditEntry{DocumentID: documentID, ActorID: actorID, Action: models.ActionDownload}
	var (
		plaintext []byte
		doc       *models.Document
	)
	err := s.run(ctx, entry, func(ctx context.Context, u *unit) error {
		d, level, _, err := u.resolve(ctx, entry, documentID, actorID)
		if err != nil {
			return err
		}
		if !level.Satisfies(models.LevelRead) {
			return deny(common.ErrAccessDenied, "insufficient_level")
		}

		ciphertext, err := s.store.Get(ctx, d.StorageLocator)
		if err != nil {
			return fmt.Errorf("error loading ciphertext: %w", err)
		}
		key, err := s.vault.Open(ctx, d.WrappedKey)
		if err != nil {
			return err
		}
		defer key.Wipe()

		plaintext, err = s.cipher.Decrypt(ciphertext, key, key.Nonce)
		if err != nil {
			return err
		}
		entry.Context["content_length"] = strconv.Itoa(len(plaintext))
		doc = d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return plaintext, doc, nil
}

// View returns document metadata to a reader.
func (s *AccessControl) View(ctx context.Context, actorID, documentID string) (*models.Document, error) {
	entry := &models.AuditEntry{DocumentID: documentID, ActorID: actorID, Action: models.ActionView}
	var doc *models.Document
	err := s.run(ctx, entry, func(ctx context.Context, u *unit) error {
		d, level, _, err := u.resolve(ctx, entry, documentID, actorID)
		if err != nil {
			return err
		}
		if !level.Satisfies(models.LevelRead) {
			return deny(common.ErrAccessDenied, "insufficient_level")
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Rename changes the display name. Content and key are untouched.
func (s *AccessControl) Rename(ctx context.Context, actorID, documentID, newName string) (*models.Document, error) {
	entry := &models.AuditEntry{DocumentID: documentID, ActorID: actorID, Action: models.ActionRename,
		Context: map[string]string{"new_name": newName}}
	var doc *models.Document
	err := s.run(ctx, entry, func(ctx context.Context, u *unit) error {
		d, level, _, err := u.resolve(ctx, entry, documentID, actorID)
		if err != nil {
			return err
		}
		if !level.Satisfies(models.LevelWrite) {
			return deny(common.ErrAccessDenied, "insufficient_level")
		}
		if strings.TrimSpace(newName) == "" {
			return fmt.Errorf("%w: document name is required", common.ErrValidation)
		}
		entry.Context["old_name"] = d.Name
		doc, err = u.repos.Documents().Rename(ctx, documentID, newName, s.now().UTC())
		if err != nil {
			return fmt.Errorf("error renaming document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete logically deletes a document. Only the owner may delete; every grant
// and token on the document is deactivated with it. The ciphertext is kept.
func (s *AccessControl) Delete(ctx context.Context, actorID, documentID string) error {
	entry := &models.AuditEntry{DocumentID: documentID, ActorID: actorID, Action: models.ActionDelete}
	return s.run(ctx, entry, func(ctx context.Context, u *unit) error {
		_, _, isOwner, err := u.resolve(ctx, entry, documentID, actorID)
		if err != nil {
			return err
		}
		if !isOwner {
			return deny(common.ErrAccessDenied, "not_owner")
		}
		now := s.now().UTC()
		if err := u.repos.Documents().MarkDeleted(ctx, documentID, now); err != nil {
			return fmt.Errorf("error deleting document: %w", err)
		}
		if err := u.repos.Grants().DeactivateAll(ctx, documentID, now); err != nil {
			return fmt.Errorf("error deactivating grants: %w", err)
		}
		if err := u.repos.ShareTokens().DeactivateAll(ctx, documentID); err != nil {
			return fmt.Errorf("error deactivating share tokens: %w", err)
		}
		return nil
	})
}

// Grant gives granteeID level on the document. The owner and administrators
// may grant anything. Other holders of Write may grant up to their own level
// and may not overwrite a grant above it.
func (s *AccessControl) Grant(ctx context.Context, actorID, documentID, granteeID string, level models.PermissionLevel) (*models.PermissionGrant, error) {
	entry := &models.AuditEntry{DocumentID: documentID, ActorID: actorID, Action: models.ActionGrant,
		Context: map[string]string{"grantee_id": granteeID, "level": level.String()}}
	var grant *models.PermissionGrant
	err := s.run(ctx, entry, func(ctx context.Context, u *unit) error {
		if !level.Valid() || granteeID == "" {
			return fmt.Errorf("%w: grantee and a valid level are required", common.ErrValidation)
		}
		doc, held, privileged, err := s.authorizeManage(ctx, u, entry, documentID, actorID)
		if err != nil {
			return err
		}
		if granteeID == doc.OwnerID {
			return fmt.Errorf("%w: the owner already holds every level", common.ErrValidation)
		}
		if !privileged {
			if level > held {
				return deny(common.ErrInsufficientPermission, "exceeds_own_level")
			}
			if err := s.checkTarget(ctx, u, documentID, granteeID, held); err != nil {
				return err
			}
		}
		grant, err = u.permissions.Grant(ctx, documentID, granteeID, level, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// Revoke removes granteeID's grant. Non-privileged holders of Write may only
// revoke grants at or below their own level. Revoking an absent grant
// succeeds.
func (s *AccessControl) Revoke(ctx context.Context, actorID, documentID, granteeID string) error {
	entry := &models.AuditEntry{DocumentID: documentID, ActorID: actorID, Action: models.ActionRevoke,
		Context: map[string]string{"grantee_id": granteeID}}
	return s.run(ctx, entry, func(ctx context.Context, u *unit) error {
		if granteeID == "" {
			return fmt.Errorf("%w: grantee is required", common.ErrValidation)
		}
		doc, held, privileged, err := s.authorizeManage(ctx, u, entry, documentID, actorID)
		if err != nil {
			return err
		}
		if granteeID == doc.OwnerID {
			return deny(common.ErrInsufficientPermission, "target_is_owner")
		}
		if !privileged {
			if err := s.checkTarget(ctx, u, documentID, granteeID, held); err != nil {
				return err
			}
		}
		return u.permissions.Revoke(ctx, documentID, granteeID)
	})
}

// authorizeManage admits the owner, administrators and holders of Write to
// grant management. privileged is true for the first two, who are not capped.
func (s *AccessControl) authorizeManage(ctx context.Context, u *unit, entry *models.AuditEntry, documentID, actorID string) (*models.Document, models.PermissionLevel, bool, error) {
	doc, held, isOwner, err := u.resolve(ctx, entry, documentID, actorID)
	if err != nil {
		return nil, models.LevelNone, false, err
	}
	privileged := isOwner || u.audit.IsAdministrator(actorID)
	if !privileged && !held.Satisfies(models.LevelWrite) {
		return nil, models.LevelNone, false, deny(common.ErrAccessDenied, "insufficient_level")
	}
	return doc, held, privileged, nil
}

// checkTarget denies touching an active grant above the actor's level.
func (s *AccessControl) checkTarget(ctx context.Context, u *unit, documentID, granteeID string, held models.PermissionLevel) error {
	cur, err := u.repos.Grants().Get(ctx, documentID, granteeID)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error loading grant: %w", err)
	}
	if cur.IsActive && cur.Level > held {
		return deny(common.ErrInsufficientPermission, "target_above_own_level")
	}
	return nil
}

// ListGrants returns every grant on the document to those who may manage
// them.
func (s *AccessControl) ListGrants(ctx context.Context, actorID, documentID string) ([]*models.PermissionGrant, error) {
	entry := &models.AuditEntry{DocumentID: documentID, ActorID: actorID, Action: models.ActionListGrants}
	var grants []*models.PermissionGrant
	err := s.run(ctx, entry, func(ctx context.Context, u *unit) error {
		if _, _, _, err := s.authorizeManage(ctx, u, entry, documentID, actorID); err != nil {
			return err
		}
		var err error
		grants, err = u.permissions.ListGrants(ctx, documentID)
		if err != nil {
			return err
		}
		entry.Context["count"] = strconv.Itoa(len(grants))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// IssueShareToken creates a share token. Holders of Write may issue tokens
// conferring at most their own level; the owner may issue any.
func (s *AccessControl) IssueShareToken(ctx context.Context, actorID, documentID string, level models.ShareLevel, opts IssueOptions) (*IssuedToken, error) {
	entry := &models.AuditEntry{DocumentID: documentID, ActorID: actorID, Action: models.ActionIssue}
	var issued *IssuedToken
	err := s.run(ctx, entry, func(ctx context.Context, u *unit) error {
		mapped, err := models.MapShareLevel(level)
		if err != nil {
			return err
		}
		doc, held, isOwner, err := u.resolve(ctx, entry, documentID, actorID)
		if err != nil {
			return err
		}
		if !held.Satisfies(models.LevelWrite) {
			return deny(common.ErrAccessDenied, "insufficient_level")
		}
		if !isOwner && mapped.Level > held {
			return deny(common.ErrInsufficientPermission, "exceeds_own_level")
		}
		issued, err = s.tokens.issue(ctx, u, entry, doc, actorID, level, opts, !isOwner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// RedeemShareToken exchanges a share token for a grant.
func (s *AccessControl) RedeemShareToken(ctx context.Context, actorID, token string) (*Redemption, error) {
	return s.tokens.Redeem(ctx, token, actorID)
}

// Reshare issues a new token derived from the actor's own access.
func (s *AccessControl) Reshare(ctx context.Context, actorID, documentID string, level models.ShareLevel, opts IssueOptions) (*IssuedToken, error) {
	return s.tokens.Reshare(ctx, documentID, actorID, level, opts)
}

// DeactivateShareToken makes a token permanently inert.
func (s *AccessControl) DeactivateShareToken(ctx context.Context, actorID, tokenID string) error {
	return s.tokens.Deactivate(ctx, tokenID, actorID)
}

// QueryAuditLog returns the audit records visible to actorID. It is not
// audited.
func (s *AccessControl) QueryAuditLog(ctx context.Context, actorID string, filter models.AuditFilter) ([]*models.AuditRecord, error) {
	return s.audit.Query(ctx, actorID, filter)
}

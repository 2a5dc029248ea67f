package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/documents"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/grants"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/repomanager"
)

// PermissionStore answers and mutates who holds which level on a document.
// It contains no authorization logic of its own; the facade decides who may
// call Grant and Revoke.
type PermissionStore struct {
	documents documents.Repository
	grants    grants.Repository
	now       func() time.Time
}

// NewPermissionStore constructs a PermissionStore over the given repositories.
func NewPermissionStore(documents documents.Repository, grants grants.Repository) *PermissionStore {
	return &PermissionStore{documents: documents, grants: grants, now: time.Now}
}

func (p *PermissionStore) bind(repos repomanager.Repositories) *PermissionStore {
	c := *p
	c.documents = repos.Documents()
	c.grants = repos.Grants()
	return &c
}

// Grant creates the grant or overwrites its level, reactivating a revoked one.
func (p *PermissionStore) Grant(ctx context.Context, documentID, granteeID string, level models.PermissionLevel, grantedBy string) (*models.PermissionGrant, error) {
	g, err := p.newGrant(documentID, granteeID, level, grantedBy)
	if err != nil {
		return nil, err
	}
	out, err := p.grants.Upsert(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("error granting %s on %s: %w", level, documentID, err)
	}
	return out, nil
}

// raise is Grant that never lowers an active grant. Share token redemption
// goes through it.
func (p *PermissionStore) raise(ctx context.Context, documentID, granteeID string, level models.PermissionLevel, grantedBy string) (*models.PermissionGrant, error) {
	g, err := p.newGrant(documentID, granteeID, level, grantedBy)
	if err != nil {
		return nil, err
	}
	out, err := p.grants.Raise(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("error raising grant on %s: %w", documentID, err)
	}
	return out, nil
}

func (p *PermissionStore) newGrant(documentID, granteeID string, level models.PermissionLevel, grantedBy string) (*models.PermissionGrant, error) {
	if documentID == "" || granteeID == "" {
		return nil, fmt.Errorf("%w: document and grantee are required", common.ErrValidation)
	}
	if !level.Valid() {
		return nil, fmt.Errorf("%w: invalid permission level %d", common.ErrValidation, int(level))
	}
	return &models.PermissionGrant{
		DocumentID: documentID,
		UserID:     granteeID,
		Level:      level,
		GrantedBy:  grantedBy,
		GrantedAt:  p.now().UTC(),
		IsActive:   true,
	}, nil
}

// Revoke deactivates the grant. Revoking a missing or inactive grant is not an
// error.
func (p *PermissionStore) Revoke(ctx context.Context, documentID, granteeID string) error {
	if _, err := p.grants.Revoke(ctx, documentID, granteeID, p.now().UTC()); err != nil {
		return fmt.Errorf("error revoking grant on %s: %w", documentID, err)
	}
	return nil
}

// Check reports whether userID holds at least required on the document.
// Unknown and deleted documents grant nothing.
func (p *PermissionStore) Check(ctx context.Context, documentID, userID string, required models.PermissionLevel) (bool, error) {
	level, _, err := p.EffectiveLevel(ctx, documentID, userID)
	if err != nil {
		return false, err
	}
	return level.Satisfies(required), nil
}

// EffectiveLevel returns the level userID holds on the document. The owner
// holds every level.
func (p *PermissionStore) EffectiveLevel(ctx context.Context, documentID, userID string) (models.PermissionLevel, bool, error) {
	doc, err := p.documents.Get(ctx, documentID)
	if errors.Is(err, common.ErrNotFound) {
		return models.LevelNone, false, nil
	}
	if err != nil {
		return models.LevelNone, false, fmt.Errorf("error loading document %s: %w", documentID, err)
	}
	if doc.Deleted() {
		return models.LevelNone, false, nil
	}
	return p.levelOn(ctx, doc, userID)
}

func (p *PermissionStore) levelOn(ctx context.Context, doc *models.Document, userID string) (models.PermissionLevel, bool, error) {
	if userID != "" && doc.OwnerID == userID {
		return models.LevelShare, true, nil
	}
	g, err := p.grants.Get(ctx, doc.ID, userID)
	if errors.Is(err, common.ErrNotFound) {
		return models.LevelNone, false, nil
	}
	if err != nil {
		return models.LevelNone, false, fmt.Errorf("error loading grant: %w", err)
	}
	if !g.IsActive {
		return models.LevelNone, false, nil
	}
	return g.Level, false, nil
}

// ListGrants returns active and revoked grants, most recently granted first.
func (p *PermissionStore) ListGrants(ctx context.Context, documentID string) ([]*models.PermissionGrant, error) {
	out, err := p.grants.List(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("error listing grants on %s: %w", documentID, err)
	}
	return out, nil
}

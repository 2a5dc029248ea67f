// Package grants persists permission grants, one evolving row per
// (document, user) pair.
package grants

import (
	"context"
	"time"

	"github.com/JustWint3r/SecureShare/internal/server/models"
)

type Repository interface {
	// Upsert sets the level and reactivates the grant, overwriting any
	// previous level.
	Upsert(ctx context.Context, g *models.PermissionGrant) (*models.PermissionGrant, error)
	// Raise is Upsert that never lowers an active grant's level.
	Raise(ctx context.Context, g *models.PermissionGrant) (*models.PermissionGrant, error)
	// Revoke deactivates the grant and reports whether an active one existed.
	Revoke(ctx context.Context, documentID, userID string, at time.Time) (bool, error)
	Get(ctx context.Context, documentID, userID string) (*models.PermissionGrant, error)
	// List returns active and inactive grants, newest first.
	List(ctx context.Context, documentID string) ([]*models.PermissionGrant, error)
	DeactivateAll(ctx context.Context, documentID string, at time.Time) error
}

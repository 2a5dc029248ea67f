// Package sharetokens persists share tokens. Only the SHA-256 hash of the
// secret is stored.
package sharetokens

import (
	"context"

	"github.com/JustWint3r/SecureShare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.ShareToken) error
	Get(ctx context.Context, id string) (*models.ShareToken, error)
	// GetByHashForUpdate loads the token and locks its row until the
	// surrounding transaction ends.
	GetByHashForUpdate(ctx context.Context, hash []byte) (*models.ShareToken, error)
	// IncrementRedemptions bumps the counter of an active token below its
	// cap and returns the new count. It fails with common.ErrRedemptionLimit
	// when the cap is already reached.
	IncrementRedemptions(ctx context.Context, id string) (int, error)
	Deactivate(ctx context.Context, id string) error
	DeactivateAll(ctx context.Context, documentID string) error
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/server/models"
)

type GrantRepository struct {
	v view
}

func (r *GrantRepository) Upsert(_ context.Context, g *models.PermissionGrant) (*models.PermissionGrant, error) {
	var out *models.PermissionGrant
	err := r.v.write(func(s *state) error {
		ng := models.PermissionGrant{
			DocumentID: g.DocumentID,
			UserID:     g.UserID,
			Level:      g.Level,
			GrantedBy:  g.GrantedBy,
			GrantedAt:  g.GrantedAt,
			IsActive:   true,
		}
		s.grants[grantKey{g.DocumentID, g.UserID}] = ng
		out = &ng
		return nil
	})
	return out, err
}

func (r *GrantRepository) Raise(_ context.Context, g *models.PermissionGrant) (*models.PermissionGrant, error) {
	var out *models.PermissionGrant
	err := r.v.write(func(s *state) error {
		key := grantKey{g.DocumentID, g.UserID}
		if cur, ok := s.grants[key]; ok && cur.IsActive && cur.Level >= g.Level {
			out = &cur
			return nil
		}
		ng := models.PermissionGrant{
			DocumentID: g.DocumentID,
			UserID:     g.UserID,
			Level:      g.Level,
			GrantedBy:  g.GrantedBy,
			GrantedAt:  g.GrantedAt,
			IsActive:   true,
		}
		s.grants[key] = ng
		out = &ng
		return nil
	})
	return out, err
}

func (r *GrantRepository) Revoke(_ context.Context, documentID, userID string, at time.Time) (bool, error) {
	var revoked bool
	err := r.v.write(func(s *state) error {
		key := grantKey{documentID, userID}
		g, ok := s.grants[key]
		if !ok || !g.IsActive {
			return nil
		}
		g.IsActive = false
		g.RevokedAt = &at
		s.grants[key] = g
		revoked = true
		return nil
	})
	return revoked, err
}

func (r *GrantRepository) Get(_ context.Context, documentID, userID string) (*models.PermissionGrant, error) {
	var out *models.PermissionGrant
	err := r.v.read(func(s *state) error {
		g, ok := s.grants[grantKey{documentID, userID}]
		if !ok {
			return fmt.Errorf("grant %s/%s: %w", documentID, userID, common.ErrNotFound)
		}
		out = &g
		return nil
	})
	return out, err
}

func (r *GrantRepository) List(_ context.Context, documentID string) ([]*models.PermissionGrant, error) {
	var out []*models.PermissionGrant
	err := r.v.read(func(s *state) error {
		for k, g := range s.grants {
			if k.documentID == documentID {
				g := g
				out = append(out, &g)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GrantedAt.Equal(out[j].GrantedAt) {
			return out[i].GrantedAt.After(out[j].GrantedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, err
}

func (r *GrantRepository) DeactivateAll(_ context.Context, documentID string, at time.Time) error {
	return r.v.write(func(s *state) error {
		for k, g := range s.grants {
			if k.documentID == documentID && g.IsActive {
				g.IsActive = false
				g.RevokedAt = &at
				s.grants[k] = g
			}
		}
		return nil
	})
}

package memory

import (
	"context"
	"fmt"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/server/models"
)

type ShareTokenRepository struct {
	v view
}

func (r *ShareTokenRepository) Create(_ context.Context, t *models.ShareToken) error {
	return r.v.write(func(s *state) error {
		hash := string(t.TokenHash)
		if _, ok := s.tokens[t.ID]; ok {
			return fmt.Errorf("share token %s already exists: %w", t.ID, common.ErrStorage)
		}
		if _, ok := s.tokenByHash[hash]; ok {
			return fmt.Errorf("share token hash collision: %w", common.ErrStorage)
		}
		nt := *t
		nt.TokenHash = append([]byte(nil), t.TokenHash...)
		s.tokens[t.ID] = nt
		s.tokenByHash[hash] = t.ID
		return nil
	})
}

func (r *ShareTokenRepository) Get(_ context.Context, id string) (*models.ShareToken, error) {
	var out *models.ShareToken
	err := r.v.read(func(s *state) error {
		t, ok := s.tokens[id]
		if !ok {
			return fmt.Errorf("share token: %w", common.ErrNotFound)
		}
		out = &t
		return nil
	})
	return out, err
}

// GetByHashForUpdate needs no row lock here: callers inside a transaction
// already hold the store's write lock.
func (r *ShareTokenRepository) GetByHashForUpdate(_ context.Context, hash []byte) (*models.ShareToken, error) {
	var out *models.ShareToken
	err := r.v.read(func(s *state) error {
		id, ok := s.tokenByHash[string(hash)]
		if !ok {
			return fmt.Errorf("share token: %w", common.ErrNotFound)
		}
		t := s.tokens[id]
		out = &t
		return nil
	})
	return out, err
}

func (r *ShareTokenRepository) IncrementRedemptions(_ context.Context, id string) (int, error) {
	var count int
	err := r.v.write(func(s *state) error {
		t, ok := s.tokens[id]
		if !ok || !t.IsActive || t.Exhausted() {
			return common.ErrRedemptionLimit
		}
		t.RedemptionCount++
		s.tokens[id] = t
		count = t.RedemptionCount
		return nil
	})
	return count, err
}

func (r *ShareTokenRepository) Deactivate(_ context.Context, id string) error {
	return r.v.write(func(s *state) error {
		t, ok := s.tokens[id]
		if !ok {
			return fmt.Errorf("share token %s: %w", id, common.ErrNotFound)
		}
		t.IsActive = false
		s.tokens[id] = t
		return nil
	})
}

func (r *ShareTokenRepository) DeactivateAll(_ context.Context, documentID string) error {
	return r.v.write(func(s *state) error {
		for id, t := range s.tokens {
			if t.DocumentID == documentID && t.IsActive {
				t.IsActive = false
				s.tokens[id] = t
			}
		}
		return nil
	})
}

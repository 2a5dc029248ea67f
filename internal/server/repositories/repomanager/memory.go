package repomanager

import (
	"context"

	"github.com/JustWint3r/SecureShare/internal/server/repositories/memory"
)

// MemoryRepositoryManager serves repositories from a memory.Store. Data does
// not survive a restart.
type MemoryRepositoryManager struct {
	*memory.Store
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{Store: memory.NewStore()}
}

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return m.Store.WithTx(ctx, func(ctx context.Context, tx *memory.Tx) error {
		return fn(ctx, tx)
	})
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close() error { return nil }

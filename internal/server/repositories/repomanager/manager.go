package repomanager

import (
	"context"

	"github.com/JustWint3r/SecureShare/internal/server/repositories/auditrecords"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/documents"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/grants"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/sharetokens"
)

// Repositories groups the repositories bound to one connection or one
// transaction.
type Repositories interface {
	Documents() documents.Repository
	Grants() grants.Repository
	ShareTokens() sharetokens.Repository
	AuditRecords() auditrecords.Repository
}

// RepositoryManager vends non-transactional repositories and runs
// transactions. Inside WithTx only the repos passed to fn may be used.
type RepositoryManager interface {
	Repositories
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	RunMigrations(ctx context.Context) error
	Close() error
}

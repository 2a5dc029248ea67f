// Package repomanager provides RepositoryManager implementations for
// PostgreSQL (with goose migrations) and for the in-memory store.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JustWint3r/SecureShare/internal/dbx"
	"github.com/JustWint3r/SecureShare/internal/server/migrations"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/auditrecords"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/documents"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/grants"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/sharetokens"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// postgresRepos binds every repository to one DBTX.
type postgresRepos struct {
	db dbx.DBTX
}

func (r postgresRepos) Documents() documents.Repository {
	return documents.NewPostgresRepository(r.db)
}

func (r postgresRepos) Grants() grants.Repository {
	return grants.NewPostgresRepository(r.db)
}

func (r postgresRepos) ShareTokens() sharetokens.Repository {
	return sharetokens.NewPostgresRepository(r.db)
}

func (r postgresRepos) AuditRecords() auditrecords.Repository {
	return auditrecords.NewPostgresRepository(r.db)
}

// PostgresRepositoryManager vends PostgreSQL-backed repositories and exposes
// a schema migration hook.
type PostgresRepositoryManager struct {
	postgresRepos
	db *sql.DB
}

// NewPostgresRepositoryManager wraps an open database handle. It does not
// ping or migrate.
func NewPostgresRepositoryManager(db *sql.DB) (*PostgresRepositoryManager, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database handle")
	}
	return &PostgresRepositoryManager{postgresRepos: postgresRepos{db: db}, db: db}, nil
}

// OpenPostgres opens a pgx-backed pool for dsn and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewPostgresRepositoryManager(db)
}

// WithTx runs fn in a read-committed transaction; rows locked with
// SELECT ... FOR UPDATE stay locked until it ends.
func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, postgresRepos{db: tx})
	})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the manager's database.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

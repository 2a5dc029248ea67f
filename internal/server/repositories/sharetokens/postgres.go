package sharetokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/dbx"
	"github.com/JustWint3r/SecureShare/internal/server/models"
)

const tokenColumns = `id, token_hash, document_id, issued_by, share_level, permission_level, reshared, is_active, expires_at, max_redemptions, redemption_count, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.ShareToken) error {
	query :=
		`INSERT INTO share_tokens (id, token_hash, document_id, issued_by, share_level, permission_level, reshared, is_active, expires_at, max_redemptions, redemption_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 `

	var maxRedemptions sql.NullInt64
	if t.MaxRedemptions != nil {
		maxRedemptions = sql.NullInt64{Int64: int64(*t.MaxRedemptions), Valid: true}
	}
	var expiresAt sql.NullTime
	if t.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *t.ExpiresAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.TokenHash, t.DocumentID, t.IssuedBy, string(t.ShareLevel), int(t.PermissionLevel),
		t.Reshared, t.IsActive, expiresAt, maxRedemptions, t.RedemptionCount, t.CreatedAt)
	if err != nil {
		return dbx.Wrap(err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.ShareToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM share_tokens WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByHashForUpdate(ctx context.Context, hash []byte) (*models.ShareToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM share_tokens WHERE token_hash = $1 FOR UPDATE`
	return r.getOne(ctx, query, hash)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.ShareToken, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("share token: %w", common.ErrNotFound)
		}
		return nil, dbx.Wrap(err)
	}
	return t, nil
}

func (r *PostgresRepository) IncrementRedemptions(ctx context.Context, id string) (int, error) {
	query :=
		`UPDATE share_tokens SET redemption_count = redemption_count + 1
		 WHERE id = $1 AND is_active
		   AND (max_redemptions IS NULL OR redemption_count < max_redemptions)
		 RETURNING redemption_count
		 `

	var count int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrRedemptionLimit
		}
		return 0, dbx.Wrap(err)
	}
	return count, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE share_tokens SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return dbx.Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbx.Wrap(err)
	}
	if n == 0 {
		return fmt.Errorf("share token %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) DeactivateAll(ctx context.Context, documentID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE share_tokens SET is_active = FALSE WHERE document_id = $1 AND is_active`, documentID)
	if err != nil {
		return dbx.Wrap(err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(row scanner) (*models.ShareToken, error) {
	var (
		t              models.ShareToken
		shareLevel     string
		level          int
		expiresAt      sql.NullTime
		maxRedemptions sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.TokenHash, &t.DocumentID, &t.IssuedBy, &shareLevel, &level,
		&t.Reshared, &t.IsActive, &expiresAt, &maxRedemptions, &t.RedemptionCount, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.ShareLevel = models.ShareLevel(shareLevel)
	t.PermissionLevel = models.PermissionLevel(level)
	if expiresAt.Valid {
		e := expiresAt.Time
		t.ExpiresAt = &e
	}
	if maxRedemptions.Valid {
		m := int(maxRedemptions.Int64)
		t.MaxRedemptions = &m
	}
	return &t, nil
}

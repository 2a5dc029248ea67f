package grants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/dbx"
	"github.com/JustWint3r/SecureShare/internal/server/models"
)

const grantColumns = `document_id, user_id, level, granted_by, granted_at, revoked_at, is_active`

// PostgresRepository implements Repository over a dbx.DBTX. Writes are single
// statements so concurrent grants on one pair serialize on the row.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, g *models.PermissionGrant) (*models.PermissionGrant, error) {
	query :=
		`INSERT INTO permission_grants (document_id, user_id, level, granted_by, granted_at, revoked_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, NULL, TRUE)
		 ON CONFLICT (document_id, user_id) DO UPDATE SET
			level = EXCLUDED.level,
			granted_by = EXCLUDED.granted_by,
			granted_at = EXCLUDED.granted_at,
			revoked_at = NULL,
			is_active = TRUE
		 RETURNING ` + grantColumns

	return r.write(ctx, query, g)
}

func (r *PostgresRepository) Raise(ctx context.Context, g *models.PermissionGrant) (*models.PermissionGrant, error) {
	query :=
		`INSERT INTO permission_grants (document_id, user_id, level, granted_by, granted_at, revoked_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, NULL, TRUE)
		 ON CONFLICT (document_id, user_id) DO UPDATE SET
			level = CASE WHEN permission_grants.is_active AND permission_grants.level >= EXCLUDED.level
				THEN permission_grants.level ELSE EXCLUDED.level END,
			granted_by = CASE WHEN permission_grants.is_active AND permission_grants.level >= EXCLUDED.level
				THEN permission_grants.granted_by ELSE EXCLUDED.granted_by END,
			granted_at = CASE WHEN permission_grants.is_active AND permission_grants.level >= EXCLUDED.level
				THEN permission_grants.granted_at ELSE EXCLUDED.granted_at END,
			revoked_at = NULL,
			is_active = TRUE
		 RETURNING ` + grantColumns

	return r.write(ctx, query, g)
}

func (r *PostgresRepository) write(ctx context.Context, query string, g *models.PermissionGrant) (*models.PermissionGrant, error) {
	got, err := scanGrant(r.db.QueryRowContext(ctx, query,
		g.DocumentID, g.UserID, int(g.Level), g.GrantedBy, g.GrantedAt))
	if err != nil {
		return nil, dbx.Wrap(err)
	}
	return got, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, documentID, userID string, at time.Time) (bool, error) {
	query :=
		`UPDATE permission_grants SET is_active = FALSE, revoked_at = $3
		 WHERE document_id = $1 AND user_id = $2 AND is_active
		 `

	res, err := r.db.ExecContext(ctx, query, documentID, userID, at)
	if err != nil {
		return false, dbx.Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbx.Wrap(err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Get(ctx context.Context, documentID, userID string) (*models.PermissionGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM permission_grants WHERE document_id = $1 AND user_id = $2`

	g, err := scanGrant(r.db.QueryRowContext(ctx, query, documentID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("grant %s/%s: %w", documentID, userID, common.ErrNotFound)
		}
		return nil, dbx.Wrap(err)
	}
	return g, nil
}

func (r *PostgresRepository) List(ctx context.Context, documentID string) ([]*models.PermissionGrant, error) {
	query :=
		`SELECT ` + grantColumns + ` FROM permission_grants
		 WHERE document_id = $1
		 ORDER BY granted_at DESC, user_id
		 `

	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, dbx.Wrap(err)
	}
	defer rows.Close()

	var result []*models.PermissionGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, dbx.Wrap(err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Wrap(err)
	}
	return result, nil
}

func (r *PostgresRepository) DeactivateAll(ctx context.Context, documentID string, at time.Time) error {
	query :=
		`UPDATE permission_grants SET is_active = FALSE, revoked_at = $2
		 WHERE document_id = $1 AND is_active
		 `

	if _, err := r.db.ExecContext(ctx, query, documentID, at); err != nil {
		return dbx.Wrap(err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGrant(row scanner) (*models.PermissionGrant, error) {
	var (
		g         models.PermissionGrant
		level     int
		revokedAt sql.NullTime
	)
	if err := row.Scan(&g.DocumentID, &g.UserID, &level, &g.GrantedBy, &g.GrantedAt, &revokedAt, &g.IsActive); err != nil {
		return nil, err
	}
	g.Level = models.PermissionLevel(level)
	if revokedAt.Valid {
		t := revokedAt.Time
		g.RevokedAt = &t
	}
	return &g, nil
}

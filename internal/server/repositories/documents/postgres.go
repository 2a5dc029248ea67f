package documents

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

const documentColumns = `id, owner_id, name, content_type, content_length, storage_locator, wrapped_key, created_at, updated_at, deleted_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) error {
	query :=
		`INSERT INTO documents (id, owner_id, name, content_type, content_length, storage_locator, wrapped_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 `

	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.OwnerID, doc.Name, doc.ContentType, doc.ContentLength,
		doc.StorageLocator, doc.WrappedKey, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return dbx.Wrap(err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
		}
		return nil, dbx.Wrap(err)
	}
	return doc, nil
}

// Rename changes the name of a live document; deleted documents are not found.
func (r *PostgresRepository) Rename(ctx context.Context, id, name string, at time.Time) (*models.Document, error) {
	query :=
		`UPDATE documents SET name = $2, updated_at = $3
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING ` + documentColumns

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id, name, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
		}
		return nil, dbx.Wrap(err)
	}
	return doc, nil
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE documents SET deleted_at = $2, updated_at = $2
		 WHERE id = $1 AND deleted_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return dbx.Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbx.Wrap(err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		doc       models.Document
		deletedAt sql.NullTime
	)
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.ContentType, &doc.ContentLength,
		&doc.StorageLocator, &doc.WrappedKey, &doc.CreatedAt, &doc.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		doc.DeletedAt = &t
	}
	return &doc, nil
}

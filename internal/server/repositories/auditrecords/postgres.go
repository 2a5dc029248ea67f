package auditrecords

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/dbx"
	"github.com/JustWint3r/SecureShare/internal/server/models"
)

const recordColumns = `seq, id, document_id, actor_id, action, recorded_at, context, external_ledger_ref, mirror_attempts, mirror_abandoned_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *models.AuditRecord) error {
	query :=
		`INSERT INTO audit_records (id, document_id, actor_id, action, recorded_at, context)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING seq
		 `

	ctxJSON, err := json.Marshal(nonNilContext(rec.Context))
	if err != nil {
		return fmt.Errorf("marshal audit context: %w", err)
	}

	var documentID sql.NullString
	if rec.DocumentID != nil {
		documentID = sql.NullString{String: *rec.DocumentID, Valid: true}
	}

	err = r.db.QueryRowContext(ctx, query,
		rec.ID, documentID, rec.ActorID, string(rec.Action), rec.Timestamp, ctxJSON).Scan(&rec.Seq)
	if err != nil {
		return dbx.Wrap(err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.AuditRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM audit_records WHERE id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit record %s: %w", id, common.ErrNotFound)
		}
		return nil, dbx.Wrap(err)
	}
	return rec, nil
}

func (r *PostgresRepository) Query(ctx context.Context, filter models.AuditFilter, visibleTo string) ([]*models.AuditRecord, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.DocumentID != "" {
		conds = append(conds, "document_id = "+arg(filter.DocumentID))
	}
	if filter.ActorID != "" {
		conds = append(conds, "actor_id = "+arg(filter.ActorID))
	}
	if filter.Action != "" {
		conds = append(conds, "action = "+arg(string(filter.Action)))
	}
	if visibleTo != "" {
		p := arg(visibleTo)
		conds = append(conds, "(actor_id = "+p+" OR document_id IN (SELECT id FROM documents WHERE owner_id = "+p+"))")
	}

	query := `SELECT ` + recordColumns + ` FROM audit_records`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY seq LIMIT ` + arg(filter.Limit) + ` OFFSET ` + arg(filter.Offset)

	return r.list(ctx, query, args...)
}

func (r *PostgresRepository) SetExternalRef(ctx context.Context, id, ref string) (bool, error) {
	query :=
		`UPDATE audit_records SET external_ledger_ref = $2
		 WHERE id = $1 AND external_ledger_ref IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id, ref)
	if err != nil {
		return false, dbx.Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbx.Wrap(err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) IncrementMirrorAttempts(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE audit_records SET mirror_attempts = mirror_attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return dbx.Wrap(err)
	}
	return nil
}

func (r *PostgresRepository) MarkAbandoned(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE audit_records SET mirror_abandoned_at = $2
		 WHERE id = $1 AND external_ledger_ref IS NULL AND mirror_abandoned_at IS NULL
		 `

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return dbx.Wrap(err)
	}
	return nil
}

func (r *PostgresRepository) ListUnmirrored(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	query :=
		`SELECT ` + recordColumns + ` FROM audit_records
		 WHERE external_ledger_ref IS NULL AND mirror_abandoned_at IS NULL
		 ORDER BY seq
		 LIMIT $1
		 `
	return r.list(ctx, query, limit)
}

func (r *PostgresRepository) CountUnmirrored(ctx context.Context) (int64, error) {
	query :=
		`SELECT count(*) FROM audit_records
		 WHERE external_ledger_ref IS NULL AND mirror_abandoned_at IS NULL
		 `

	var n int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, dbx.Wrap(err)
	}
	return n, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.Wrap(err)
	}
	defer rows.Close()

	var result []*models.AuditRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, dbx.Wrap(err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Wrap(err)
	}
	return result, nil
}

func nonNilContext(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.AuditRecord, error) {
	var (
		rec         models.AuditRecord
		documentID  sql.NullString
		action      string
		ctxJSON     []byte
		ledgerRef   sql.NullString
		abandonedAt sql.NullTime
	)
	err := row.Scan(&rec.Seq, &rec.ID, &documentID, &rec.ActorID, &action, &rec.Timestamp,
		&ctxJSON, &ledgerRef, &rec.MirrorAttempts, &abandonedAt)
	if err != nil {
		return nil, err
	}
	rec.Action = models.Action(action)
	rec.Timestamp = rec.Timestamp.UTC()
	if documentID.Valid {
		s := documentID.String
		rec.DocumentID = &s
	}
	if ledgerRef.Valid {
		s := ledgerRef.String
		rec.ExternalLedgerRef = &s
	}
	if abandonedAt.Valid {
		t := abandonedAt.Time
		rec.MirrorAbandonedAt = &t
	}
	rec.Context = map[string]string{}
	if len(ctxJSON) > 0 {
		if err := json.Unmarshal(ctxJSON, &rec.Context); err != nil {
			return nil, fmt.Errorf("unmarshal audit context: %w", err)
		}
	}
	return &rec, nil
}

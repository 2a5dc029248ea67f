package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

var columns = []string{"id", "owner_id", "name", "content_type", "content_length", "storage_locator", "wrapped_key", "created_at", "updated_at", "deleted_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	doc := &models.Document{
		ID: "d-1", OwnerID: "owner", Name: "report.pdf", ContentType: "application/pdf",
		ContentLength: 42, StorageLocator: "documents/d-1", WrappedKey: []byte("key"),
		CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+documents\s*\(id,\s*owner_id,.*\)\s*VALUES\s*\(\$1,.*\$9\)\s*$`).
		WithArgs("d-1", "owner", "report.pdf", "application/pdf", int64(42), "documents/d-1", []byte("key"), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), doc))
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT\s+INTO\s+documents`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Document{ID: "d-1"})
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Contains(t, err.Error(), "db down")
}

func TestGet_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	deleted := now.Add(time.Hour)

	rows := sqlmock.NewRows(columns).
		AddRow("d-1", "owner", "a.txt", "text/plain", int64(3), "documents/d-1", []byte("k"), now, now, deleted)
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*owner_id,.*deleted_at\s+FROM\s+documents\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("d-1").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "d-1")
	require.NoError(t, err)

	want := &models.Document{
		ID: "d-1", OwnerID: "owner", Name: "a.txt", ContentType: "text/plain", ContentLength: 3,
		StorageLocator: "documents/d-1", WrappedKey: []byte("k"), CreatedAt: now, UpdatedAt: now, DeletedAt: &deleted,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got.Deleted())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+documents`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRename_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows(columns).
		AddRow("d-1", "owner", "b.txt", "text/plain", int64(3), "documents/d-1", []byte("k"), now, now, nil)
	mock.ExpectQuery(`(?s)^UPDATE\s+documents\s+SET\s+name\s*=\s*\$2,\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s+AND\s+deleted_at\s+IS\s+NULL\s+RETURNING`).
		WithArgs("d-1", "b.txt", now).
		WillReturnRows(rows)

	got, err := repo.Rename(context.Background(), "d-1", "b.txt", now)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", got.Name)
	assert.Nil(t, got.DeletedAt)
}

func TestRename_DeletedIsNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE\s+documents\s+SET\s+name`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Rename(context.Background(), "d-1", "b.txt", time.Now())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMarkDeleted(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	q := `(?s)^UPDATE\s+documents\s+SET\s+deleted_at\s*=\s*\$2,\s*updated_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+deleted_at\s+IS\s+NULL\s*$`
	mock.ExpectExec(q).WithArgs("d-1", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("d-1", now).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkDeleted(context.Background(), "d-1", now))
	assert.ErrorIs(t, repo.MarkDeleted(context.Background(), "d-1", now), common.ErrNotFound)
}

package grpc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/services"
)

// ---- fakes ----

type fakeAccess struct {
	err error

	gotActor   string
	gotDoc     string
	gotContent []byte
	gotLevel   models.PermissionLevel
	gotShare   models.ShareLevel
	gotOpts    services.IssueOptions
	gotFilter  models.AuditFilter

	doc     *models.Document
	content []byte
	grants  []*models.PermissionGrant
	issued  *services.IssuedToken
	red     *services.Redemption
	records []*models.AuditRecord
}

func (f *fakeAccess) EncryptAndStore(ctx context.Context, actorID, name, contentType string, plaintext []byte) (*models.Document, error) {
	f.gotActor, f.gotContent = actorID, plaintext
	return f.doc, f.err
}
func (f *fakeAccess) FetchAndDecrypt(ctx context.Context, actorID, documentID string) ([]byte, *models.Document, error) {
	f.gotActor, f.gotDoc = actorID, documentID
	return f.content, f.doc, f.err
}
func (f *fakeAccess) View(ctx context.Context, actorID, documentID string) (*models.Document, error) {
	f.gotActor, f.gotDoc = actorID, documentID
	return f.doc, f.err
}
func (f *fakeAccess) Rename(ctx context.Context, actorID, documentID, newName string) (*models.Document, error) {
	f.gotActor, f.gotDoc = actorID, documentID
	return f.doc, f.err
}
func (f *fakeAccess) Delete(ctx context.Context, actorID, documentID string) error {
	f.gotActor, f.gotDoc = actorID, documentID
	return f.err
}
func (f *fakeAccess) Grant(ctx context.Context, actorID, documentID, granteeID string, level models.PermissionLevel) (*models.PermissionGrant, error) {
	f.gotActor, f.gotDoc, f.gotLevel = actorID, documentID, level
	if f.err != nil {
		return nil, f.err
	}
	return &models.PermissionGrant{DocumentID: documentID, UserID: granteeID, Level: level, GrantedBy: actorID, IsActive: true}, nil
}
func (f *fakeAccess) Revoke(ctx context.Context, actorID, documentID, granteeID string) error {
	f.gotActor, f.gotDoc = actorID, documentID
	return f.err
}
func (f *fakeAccess) ListGrants(ctx context.Context, actorID, documentID string) ([]*models.PermissionGrant, error) {
	f.gotActor, f.gotDoc = actorID, documentID
	return f.grants, f.err
}
func (f *fakeAccess) IssueShareToken(ctx context.Context, actorID, documentID string, level models.ShareLevel, opts services.IssueOptions) (*services.IssuedToken, error) {
	f.gotActor, f.gotDoc, f.gotShare, f.gotOpts = actorID, documentID, level, opts
	return f.issued, f.err
}
func (f *fakeAccess) RedeemShareToken(ctx context.Context, actorID, token string) (*services.Redemption, error) {
	f.gotActor = actorID
	return f.red, f.err
}
func (f *fakeAccess) Reshare(ctx context.Context, actorID, documentID string, level models.ShareLevel, opts services.IssueOptions) (*services.IssuedToken, error) {
	f.gotActor, f.gotDoc, f.gotShare, f.gotOpts = actorID, documentID, level, opts
	return f.issued, f.err
}
func (f *fakeAccess) DeactivateShareToken(ctx context.Context, actorID, tokenID string) error {
	f.gotActor = actorID
	return f.err
}
func (f *fakeAccess) QueryAuditLog(ctx context.Context, actorID string, filter models.AuditFilter) ([]*models.AuditRecord, error) {
	f.gotActor, f.gotFilter = actorID, filter
	return f.records, f.err
}

func asActor(id string) context.Context {
	return context.WithValue(context.Background(), UserIDKey, id)
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func sampleDoc() *models.Document {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &models.Document{
		ID: "doc-1", OwnerID: "alice", Name: "notes.txt", ContentType: "text/plain",
		ContentLength: 5, StorageLocator: "documents/doc-1", WrappedKey: []byte("secret-key"),
		CreatedAt: ts, UpdatedAt: ts,
	}
}

// ---- tests ----

func TestPing(t *testing.T) {
	s := newTestServer("secret", &fakeAccess{})
	out, err := s.Ping(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	assert.Equal(t, "OK", out.GetFields()["status"].GetStringValue())
}

func TestHandlers_RequireActor(t *testing.T) {
	s := newTestServer("secret", &fakeAccess{})
	_, err := s.View(context.Background(), mustStruct(t, map[string]any{"document_id": "doc-1"}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUpload_DecodesContentAndHidesKey(t *testing.T) {
	fa := &fakeAccess{doc: sampleDoc()}
	s := newTestServer("secret", fa)

	out, err := s.Upload(asActor("alice"), mustStruct(t, map[string]any{
		"name":         "notes.txt",
		"content_type": "text/plain",
		"content":      base64.StdEncoding.EncodeToString([]byte("hello")),
	}))
	require.NoError(t, err)
	assert.Equal(t, "alice", fa.gotActor)
	assert.Equal(t, []byte("hello"), fa.gotContent)

	doc := out.GetFields()["document"].GetStructValue().GetFields()
	assert.Equal(t, "doc-1", doc["id"].GetStringValue())
	assert.Equal(t, float64(5), doc["content_length"].GetNumberValue())
	assert.NotContains(t, doc, "wrapped_key")
	assert.NotContains(t, doc, "storage_locator")
}

func TestUpload_BadInput(t *testing.T) {
	s := newTestServer("secret", &fakeAccess{doc: sampleDoc()})

	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"missing name", map[string]any{"content": ""}},
		{"name not a string", map[string]any{"name": 1.0, "content": ""}},
		{"content not base64", map[string]any{"name": "a", "content": "%%%"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Upload(asActor("alice"), mustStruct(t, tt.fields))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestDownload_EncodesContent(t *testing.T) {
	fa := &fakeAccess{doc: sampleDoc(), content: []byte("hello")}
	s := newTestServer("secret", fa)

	out, err := s.Download(asActor("bob"), mustStruct(t, map[string]any{"document_id": "doc-1"}))
	require.NoError(t, err)
	assert.Equal(t, "doc-1", fa.gotDoc)

	raw, err := base64.StdEncoding.DecodeString(out.GetFields()["content"].GetStringValue())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(raw))
}

func TestGrant_ParsesLevel(t *testing.T) {
	fa := &fakeAccess{}
	s := newTestServer("secret", fa)

	out, err := s.Grant(asActor("alice"), mustStruct(t, map[string]any{
		"document_id": "doc-1", "grantee_id": "bob", "level": "write",
	}))
	require.NoError(t, err)
	assert.Equal(t, models.LevelWrite, fa.gotLevel)
	assert.Equal(t, "write", out.GetFields()["grant"].GetStructValue().GetFields()["level"].GetStringValue())

	_, err = s.Grant(asActor("alice"), mustStruct(t, map[string]any{
		"document_id": "doc-1", "grantee_id": "bob", "level": "owner",
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestIssueShareToken_Options(t *testing.T) {
	fa := &fakeAccess{issued: &services.IssuedToken{
		Token: "raw",
		ShareToken: &models.ShareToken{
			ID: "tok-1", DocumentID: "doc-1", ShareLevel: models.ShareComment,
			PermissionLevel: models.LevelRead, IsActive: true,
		},
	}}
	s := newTestServer("secret", fa)

	out, err := s.IssueShareToken(asActor("alice"), mustStruct(t, map[string]any{
		"document_id":     "doc-1",
		"share_level":     "comment",
		"expires_at":      "2030-01-01T00:00:00Z",
		"max_redemptions": 3.0,
	}))
	require.NoError(t, err)
	assert.Equal(t, models.ShareComment, fa.gotShare)
	require.NotNil(t, fa.gotOpts.ExpiresAt)
	assert.True(t, fa.gotOpts.ExpiresAt.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, fa.gotOpts.MaxRedemptions)
	assert.Equal(t, 3, *fa.gotOpts.MaxRedemptions)

	f := out.GetFields()
	assert.Equal(t, "raw", f["token"].GetStringValue())
	assert.Equal(t, "tok-1", f["token_id"].GetStringValue())
	assert.Equal(t, "read", f["permission_level"].GetStringValue())

	for _, bad := range []map[string]any{
		{"document_id": "doc-1", "share_level": "edit"},
		{"document_id": "doc-1", "share_level": "view", "max_redemptions": 1.5},
		{"document_id": "doc-1", "share_level": "view", "expires_at": "tomorrow"},
	} {
		_, err := s.IssueShareToken(asActor("alice"), mustStruct(t, bad))
		assert.Equal(t, codes.InvalidArgument, status.Code(err), "%v", bad)
	}
}

func TestQueryAuditLog_Filter(t *testing.T) {
	docID := "doc-1"
	fa := &fakeAccess{records: []*models.AuditRecord{{
		ID: "rec-1", Seq: 1, ActorID: "alice", Action: models.ActionUpload, DocumentID: &docID,
		Timestamp: time.Now(), Context: map[string]string{"name": "notes.txt"},
	}}}
	s := newTestServer("secret", fa)

	out, err := s.QueryAuditLog(asActor("alice"), mustStruct(t, map[string]any{
		"document_id": "doc-1", "action": "upload", "limit": 10.0, "offset": 5.0,
	}))
	require.NoError(t, err)
	assert.Equal(t, models.AuditFilter{DocumentID: "doc-1", Action: models.ActionUpload, Limit: 10, Offset: 5}, fa.gotFilter)

	recs := out.GetFields()["records"].GetListValue().GetValues()
	require.Len(t, recs, 1)
	rec := recs[0].GetStructValue().GetFields()
	assert.Equal(t, "rec-1", rec["id"].GetStringValue())
	assert.Equal(t, "doc-1", rec["document_id"].GetStringValue())
	assert.Equal(t, "notes.txt", rec["context"].GetStructValue().GetFields()["name"].GetStringValue())
}

func TestHandlers_MapServiceErrors(t *testing.T) {
	fa := &fakeAccess{err: common.ErrAccessDenied}
	s := newTestServer("secret", fa)

	_, err := s.Delete(asActor("bob"), mustStruct(t, map[string]any{"document_id": "doc-1"}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
		msg  string
	}{
		{"denied", common.ErrAccessDenied, codes.PermissionDenied, common.ErrAccessDenied.Error()},
		{"insufficient", common.ErrInsufficientPermission, codes.PermissionDenied, common.ErrInsufficientPermission.Error()},
		{"expired", common.ErrTokenExpired, codes.FailedPrecondition, common.ErrTokenExpired.Error()},
		{"limit", common.ErrRedemptionLimit, codes.FailedPrecondition, common.ErrRedemptionLimit.Error()},
		{"crypto", fmt.Errorf("unwrap key: %w", common.ErrDecryption), codes.Internal, common.ErrCrypto.Error()},
		{"validation", fmt.Errorf("%w: name is required", common.ErrValidation), codes.InvalidArgument, "validation error: name is required"},
		{"not found", common.ErrNotFound, codes.NotFound, "not found"},
		{"storage", fmt.Errorf("%w: connection reset", common.ErrStorage), codes.Unavailable, "storage unavailable, retry later"},
		{"canceled", context.Canceled, codes.Canceled, context.Canceled.Error()},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded, context.DeadlineExceeded.Error()},
		{"other", errors.New("boom"), codes.Internal, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := status.Convert(toStatus(tt.err))
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.msg, st.Message())
		})
	}
}

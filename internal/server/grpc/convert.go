package grpc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/services"
)

// request reads typed fields from a Struct message. The first failure sticks
// and is reported by err.
type request struct {
	fields map[string]*structpb.Value
	fail   error
}

func newRequest(in *structpb.Struct) *request {
	return &request{fields: in.GetFields()}
}

func (r *request) setErr(format string, args ...any) {
	if r.fail == nil {
		r.fail = fmt.Errorf("%w: "+format, append([]any{common.ErrValidation}, args...)...)
	}
}

func (r *request) err() error { return r.fail }

func (r *request) optString(key string) string {
	v, ok := r.fields[key]
	if !ok {
		return ""
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		r.setErr("%s must be a string", key)
		return ""
	}
	return s.StringValue
}

func (r *request) str(key string) string {
	s := r.optString(key)
	if s == "" {
		r.setErr("%s is required", key)
	}
	return s
}

func (r *request) bytes(key string) []byte {
	s := r.optString(key)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		r.setErr("%s must be base64", key)
		return nil
	}
	return b
}

func (r *request) optInt(key string) (int, bool) {
	v, ok := r.fields[key]
	if !ok {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		r.setErr("%s must be an integer", key)
		return 0, false
	}
	return int(n.NumberValue), true
}

func (r *request) optTime(key string) *time.Time {
	s := r.optString(key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		r.setErr("%s must be an RFC 3339 timestamp", key)
		return nil
	}
	return &t
}

func (r *request) permissionLevel(key string) models.PermissionLevel {
	s := r.str(key)
	if s == "" {
		return models.LevelNone
	}
	l, err := models.ParsePermissionLevel(s)
	if err != nil {
		r.setErr("%s: unknown permission level %q", key, s)
	}
	return l
}

func (r *request) shareLevel(key string) models.ShareLevel {
	s := r.str(key)
	if s == "" {
		return ""
	}
	l, err := models.ParseShareLevel(s)
	if err != nil {
		r.setErr("%s: unknown share level %q", key, s)
	}
	return l
}

func (r *request) issueOptions() services.IssueOptions {
	opts := services.IssueOptions{ExpiresAt: r.optTime("expires_at")}
	if n, ok := r.optInt("max_redemptions"); ok {
		opts.MaxRedemptions = &n
	}
	return opts
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func documentFields(d *models.Document) map[string]any {
	out := map[string]any{
		"id":             d.ID,
		"owner_id":       d.OwnerID,
		"name":           d.Name,
		"content_type":   d.ContentType,
		"content_length": d.ContentLength,
		"created_at":     timestamp(d.CreatedAt),
		"updated_at":     timestamp(d.UpdatedAt),
	}
	if d.DeletedAt != nil {
		out["deleted_at"] = timestamp(*d.DeletedAt)
	}
	return out
}

func grantFields(g *models.PermissionGrant) map[string]any {
	out := map[string]any{
		"document_id": g.DocumentID,
		"user_id":     g.UserID,
		"level":       g.Level.String(),
		"granted_by":  g.GrantedBy,
		"granted_at":  timestamp(g.GrantedAt),
		"is_active":   g.IsActive,
	}
	if g.RevokedAt != nil {
		out["revoked_at"] = timestamp(*g.RevokedAt)
	}
	return out
}

func issuedFields(t *services.IssuedToken) map[string]any {
	tok := t.ShareToken
	out := map[string]any{
		"token":            t.Token,
		"token_id":         tok.ID,
		"document_id":      tok.DocumentID,
		"share_level":      string(tok.ShareLevel),
		"permission_level": tok.PermissionLevel.String(),
		"reshared":         tok.Reshared,
	}
	if tok.ExpiresAt != nil {
		out["expires_at"] = timestamp(*tok.ExpiresAt)
	}
	if tok.MaxRedemptions != nil {
		out["max_redemptions"] = *tok.MaxRedemptions
	}
	return out
}

func recordFields(rec *models.AuditRecord) map[string]any {
	ctx := make(map[string]any, len(rec.Context))
	for k, v := range rec.Context {
		ctx[k] = v
	}
	out := map[string]any{
		"id":        rec.ID,
		"seq":       rec.Seq,
		"actor_id":  rec.ActorID,
		"action":    string(rec.Action),
		"timestamp": timestamp(rec.Timestamp),
		"context":   ctx,
	}
	if rec.DocumentID != nil {
		out["document_id"] = *rec.DocumentID
	}
	if rec.ExternalLedgerRef != nil {
		out["external_ledger_ref"] = *rec.ExternalLedgerRef
	}
	return out
}

func response(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "error encoding response")
	}
	return out, nil
}

// toStatus maps engine errors onto gRPC codes. Unclassified errors are not
// echoed to the caller.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, common.ErrAuthorization):
		code = codes.PermissionDenied
	case errors.Is(err, common.ErrToken):
		code = codes.FailedPrecondition
	case errors.Is(err, common.ErrCrypto):
		return status.Error(codes.Internal, common.ErrCrypto.Error())
	case errors.Is(err, common.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, common.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, common.ErrStorage):
		return status.Error(codes.Unavailable, "storage unavailable, retry later")
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

package grpc

import (
	"context"
	"encoding/base64"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JustWint3r/SecureShare/internal/server/models"
)

func actor(ctx context.Context) (string, error) {
	id, ok := ActorFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing actor")
	}
	return id, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return response(map[string]any{"status": "OK"})
}

func (s *GRPCServer) Upload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	name := r.str("name")
	contentType := r.optString("content_type")
	content := r.bytes("content")
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	doc, err := s.access.EncryptAndStore(ctx, actorID, name, contentType, content)
	if err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{"document": documentFields(doc)})
}

func (s *GRPCServer) Download(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	documentID := r.str("document_id")
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	plaintext, doc, err := s.access.FetchAndDecrypt(ctx, actorID, documentID)
	if err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{
		"document": documentFields(doc),
		"content":  base64.StdEncoding.EncodeToString(plaintext),
	})
}

func (s *GRPCServer) View(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	documentID := r.str("document_id")
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	doc, err := s.access.View(ctx, actorID, documentID)
	if err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{"document": documentFields(doc)})
}

func (s *GRPCServer) Rename(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	documentID := r.str("document_id")
	name := r.str("name")
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	doc, err := s.access.Rename(ctx, actorID, documentID, name)
	if err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{"document": documentFields(doc)})
}

func (s *GRPCServer) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	documentID := r.str("document_id")
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	if err := s.access.Delete(ctx, actorID, documentID); err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{"deleted": true})
}

func (s *GRPCServer) Grant(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	documentID := r.str("document_id")
	granteeID := r.str("grantee_id")
	level := r.permissionLevel("level")
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	g, err := s.access.Grant(ctx, actorID, documentID, granteeID, level)
	if err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{"grant": grantFields(g)})
}

func (s *GRPCServer) Revoke(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	documentID := r.str("document_id")
	granteeID := r.str("grantee_id")
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	if err := s.access.Revoke(ctx, actorID, documentID, granteeID); err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{"revoked": true})
}

func (s *GRPCServer) ListGrants(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	documentID := r.str("document_id")
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	grants, err := s.access.ListGrants(ctx, actorID, documentID)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]any, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantFields(g))
	}
	return response(map[string]any{"grants": out})
}

func (s *GRPCServer) IssueShareToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	documentID := r.str("document_id")
	level := r.shareLevel("share_level")
	opts := r.issueOptions()
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	issued, err := s.access.IssueShareToken(ctx, actorID, documentID, level, opts)
	if err != nil {
		return nil, toStatus(err)
	}
	return response(issuedFields(issued))
}

func (s *GRPCServer) RedeemShareToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	token := r.str("token")
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	red, err := s.access.RedeemShareToken(ctx, actorID, token)
	if err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{
		"document_id": red.DocumentID,
		"level":       red.Level.String(),
	})
}

func (s *GRPCServer) Reshare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	documentID := r.str("document_id")
	level := r.shareLevel("share_level")
	opts := r.issueOptions()
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	issued, err := s.access.Reshare(ctx, actorID, documentID, level, opts)
	if err != nil {
		return nil, toStatus(err)
	}
	return response(issuedFields(issued))
}

func (s *GRPCServer) DeactivateShareToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	tokenID := r.str("token_id")
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	if err := s.access.DeactivateShareToken(ctx, actorID, tokenID); err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{"deactivated": true})
}

func (s *GRPCServer) QueryAuditLog(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(in)
	filter := models.AuditFilter{
		DocumentID: r.optString("document_id"),
		ActorID:    r.optString("actor_id"),
		Action:     models.Action(r.optString("action")),
	}
	filter.Limit, _ = r.optInt("limit")
	filter.Offset, _ = r.optInt("offset")
	if err := r.err(); err != nil {
		return nil, toStatus(err)
	}

	recs, err := s.access.QueryAuditLog(ctx, actorID, filter)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordFields(rec))
	}
	return response(map[string]any{"records": out})
}

package grpc

import (
	"context"
	"encoding/base64"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JustWint3r/SecureShare/internal/common"
)

// Client calls the service over an existing connection. Every call carries
// the access token set with WithAccessToken.
type Client struct {
	conn        grpc.ClientConnInterface
	accessToken string
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// WithAccessToken returns a copy of c that authenticates as the token's subject.
func (c *Client) WithAccessToken(token string) *Client {
	return &Client{conn: c.conn, accessToken: token}
}

// Call invokes method with fields as the request body.
func (c *Client) Call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	if c.accessToken != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, c.accessToken)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, MethodPing, nil)
	return err
}

// Upload stores content and returns the new document ID.
func (c *Client) Upload(ctx context.Context, name, contentType string, content []byte) (string, error) {
	out, err := c.Call(ctx, MethodUpload, map[string]any{
		"name":         name,
		"content_type": contentType,
		"content":      base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return "", err
	}
	return out.GetFields()["document"].GetStructValue().GetFields()["id"].GetStringValue(), nil
}

// Download returns the decrypted content of a document.
func (c *Client) Download(ctx context.Context, documentID string) ([]byte, error) {
	out, err := c.Call(ctx, MethodDownload, map[string]any{"document_id": documentID})
	if err != nil {
		return nil, err
	}
	return DecodeContent(out)
}

// DecodeContent extracts the payload of a Download response.
func DecodeContent(resp *structpb.Struct) ([]byte, error) {
	return base64.StdEncoding.DecodeString(resp.GetFields()["content"].GetStringValue())
}

// Package cli is a one-shot command line client for the SecureShare server.
// It mints an access token for the configured user from the shared secret
// and issues a single call.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/JustWint3r/SecureShare/internal/client/config"
	"github.com/JustWint3r/SecureShare/internal/filex"
	"github.com/JustWint3r/SecureShare/internal/server/auth"
	gs "github.com/JustWint3r/SecureShare/internal/server/grpc"
)

const usage = `usage: cli [flags] <command> [args]

commands:
  token                         print an access token for -u
  ping                          check the server
  upload <path> [content-type]  encrypt and store a file
  download <document-id>        fetch a document into ./downloads
  call <Method> [json]          invoke any method with a JSON body`

var ErrUsage = errors.New(usage)

type App struct {
	config *config.Config
	out    io.Writer
	conn   grpc.ClientConnInterface
}

func NewApp(cfg *config.Config, out io.Writer) *App {
	return &App{config: cfg, out: out}
}

// Dial connects to the configured server. The returned func closes it.
func (a *App) Dial() (func() error, error) {
	conn, err := grpc.NewClient(a.config.ServerEndpointAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", a.config.ServerEndpointAddr, err)
	}
	a.conn = conn
	return conn.Close, nil
}

func (a *App) accessToken() (string, error) {
	if a.config.User == "" {
		return "", errors.New("no user configured, pass -u")
	}
	return auth.GenerateToken(a.config.User, []byte(a.config.SecretKey), a.config.TokenValidity)
}

func (a *App) client() (*gs.Client, error) {
	if a.conn == nil {
		return nil, errors.New("not connected")
	}
	token, err := a.accessToken()
	if err != nil {
		return nil, err
	}
	return gs.NewClient(a.conn).WithAccessToken(token), nil
}

// Run executes one command given as positional args.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	if a.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.CallTimeout)
		defer cancel()
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "token":
		token, err := a.accessToken()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, token)
		return err
	case "ping":
		if a.conn == nil {
			return errors.New("not connected")
		}
		if err := gs.NewClient(a.conn).Ping(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(a.out, "OK")
		return err
	case "upload":
		return a.upload(ctx, args)
	case "download":
		return a.download(ctx, args)
	case "call":
		return a.call(ctx, args)
	}
	return ErrUsage
}

func (a *App) upload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	contentType := mime.TypeByExtension(filepath.Ext(args[0]))
	if len(args) > 1 {
		contentType = args[1]
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	id, err := c.Upload(ctx, filepath.Base(args[0]), contentType, data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, id)
	return err
}

func (a *App) download(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	resp, err := c.Call(ctx, gs.MethodDownload, map[string]any{"document_id": args[0]})
	if err != nil {
		return err
	}
	content, err := gs.DecodeContent(resp)
	if err != nil {
		return err
	}
	name := resp.GetFields()["document"].GetStructValue().GetFields()["name"].GetStringValue()

	dir, err := filex.EnsureSubDir("downloads")
	if err != nil {
		return err
	}
	path, err := filex.WriteUnder(dir, name, content)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, path)
	return err
}

func (a *App) call(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	fields := map[string]any{}
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &fields); err != nil {
			return fmt.Errorf("request body: %w", err)
		}
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	resp, err := c.Call(ctx, args[0], fields)
	if err != nil {
		return err
	}
	b, err := protojson.MarshalOptions{Multiline: true}.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

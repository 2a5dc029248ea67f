package cryptox

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"golang.org/x/crypto/hkdf"

	"github.com/JustWint3r/SecureShare/internal/common"
)

const wrapInfo = "secureshare document key wrapping v1"

// LocalWrapper envelope-encrypts packaged keys with AES-256-GCM under a key
// derived from a configured master secret.
type LocalWrapper struct {
	kek    EncryptionKey
	engine *CipherEngine
}

// NewLocalWrapper derives the key-encryption key from secret with HKDF-SHA256.
func NewLocalWrapper(secret []byte) (*LocalWrapper, error) {
	if len(secret) < 16 {
		return nil, errors.New("master key secret must be at least 16 bytes")
	}
	kek := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(wrapInfo)), kek); err != nil {
		return nil, fmt.Errorf("derive key-encryption key: %w", err)
	}
	return &LocalWrapper{kek: EncryptionKey{Material: kek}, engine: NewCipherEngine()}, nil
}

// Wrap returns nonce || ciphertext.
func (w *LocalWrapper) Wrap(_ context.Context, packaged []byte) ([]byte, error) {
	ct, nonce, err := w.engine.Encrypt(packaged, w.kek)
	if err != nil {
		return nil, err
	}
	return append(nonce, ct...), nil
}

// Unwrap reverses Wrap.
func (w *LocalWrapper) Unwrap(_ context.Context, wrapped []byte) ([]byte, error) {
	if len(wrapped) < NonceSize+Overhead {
		return nil, fmt.Errorf("%w: wrapped key too short: %d bytes", common.ErrDecryption, len(wrapped))
	}
	return w.engine.Decrypt(wrapped[NonceSize:], w.kek, wrapped[:NonceSize])
}

// KMSClient is the subset of *kms.Client used by KMSWrapper.
type KMSClient interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSWrapper envelope-encrypts packaged keys with an AWS KMS key.
// keyID can be a key ID, key ARN, or alias name (e.g., "alias/secureshare-dek").
type KMSWrapper struct {
	client KMSClient
	keyID  string
}

// NewKMSWrapper creates a KMSWrapper.
func NewKMSWrapper(client KMSClient, keyID string) *KMSWrapper {
	return &KMSWrapper{client: client, keyID: keyID}
}

func (w *KMSWrapper) Wrap(ctx context.Context, packaged []byte) ([]byte, error) {
	out, err := w.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(w.keyID),
		Plaintext: packaged,
	})
	if err != nil {
		return nil, kmsError("encrypt", common.ErrEncryption, err)
	}
	return out.CiphertextBlob, nil
}

func (w *KMSWrapper) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	out, err := w.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: wrapped,
		KeyId:          aws.String(w.keyID),
	})
	if err != nil {
		return nil, kmsError("decrypt", common.ErrDecryption, err)
	}
	return out.Plaintext, nil
}

// kmsError classifies a KMS failure. Rejections of the ciphertext or the key
// are terminal crypto errors; anything else (network, throttling, KMS
// internal errors) leaves the key unreachable for now and is a storage error.
func kmsError(op string, terminal, err error) error {
	var (
		badCiphertext *types.InvalidCiphertextException
		wrongKey      *types.IncorrectKeyException
		disabled      *types.DisabledException
		missing       *types.NotFoundException
		usage         *types.InvalidKeyUsageException
	)
	switch {
	case errors.As(err, &badCiphertext), errors.As(err, &wrongKey),
		errors.As(err, &disabled), errors.As(err, &missing), errors.As(err, &usage):
		return fmt.Errorf("%w: kms %s: %w", terminal, op, err)
	}
	return fmt.Errorf("%w: kms %s: %w", common.ErrStorage, op, err)
}

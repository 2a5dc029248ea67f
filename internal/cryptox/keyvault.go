package cryptox

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustWint3r/SecureShare/internal/common"
)

// packageVersion prefixes every packaged key so the format can evolve.
const packageVersion byte = 1

// packagedSize is version(1) | key(32) | nonce(12).
const packagedSize = 1 + KeySize + NonceSize

// EncryptionKey is the key material of one document version and the nonce
// its content was sealed with. Nonce is empty until the first Encrypt.
type EncryptionKey struct {
	Material []byte
	Nonce    []byte
}

// Wipe zeroes the key material.
func (k *EncryptionKey) Wipe() {
	common.WipeByteArray(k.Material)
}

// KeyWrapper envelope-encrypts packaged keys before they are persisted.
type KeyWrapper interface {
	Wrap(ctx context.Context, packaged []byte) ([]byte, error)
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)
}

// KeyVault generates per-document keys and converts them to and from the form
// stored next to document metadata. Keys never reach logs or audit records.
type KeyVault struct {
	wrapper KeyWrapper
}

// NewKeyVault creates a KeyVault. A nil wrapper stores packaged keys as is.
func NewKeyVault(wrapper KeyWrapper) *KeyVault {
	return &KeyVault{wrapper: wrapper}
}

// GenerateKey draws a fresh 256-bit key. The only failure is an exhausted
// entropy source, which is fatal and must not be retried.
func (v *KeyVault) GenerateKey() (EncryptionKey, error) {
	material, err := common.GenerateRandByteArray(KeySize)
	if err != nil {
		return EncryptionKey{}, err
	}
	return EncryptionKey{Material: material}, nil
}

// PackageKey serializes key and nonce. It performs no encryption.
func (v *KeyVault) PackageKey(key EncryptionKey) ([]byte, error) {
	if len(key.Material) != KeySize || len(key.Nonce) != NonceSize {
		return nil, fmt.Errorf("%w: key %d bytes, nonce %d bytes", common.ErrMalformedKey, len(key.Material), len(key.Nonce))
	}
	out := make([]byte, 0, packagedSize)
	out = append(out, packageVersion)
	out = append(out, key.Material...)
	out = append(out, key.Nonce...)
	return out, nil
}

// UnpackageKey is the inverse of PackageKey. Truncated input, trailing bytes or
// an unknown version fail with ErrMalformedKey.
func (v *KeyVault) UnpackageKey(b []byte) (EncryptionKey, error) {
	if len(b) != packagedSize {
		return EncryptionKey{}, fmt.Errorf("%w: want %d bytes, got %d", common.ErrMalformedKey, packagedSize, len(b))
	}
	if b[0] != packageVersion {
		return EncryptionKey{}, fmt.Errorf("%w: unknown version %d", common.ErrMalformedKey, b[0])
	}
	material := make([]byte, KeySize)
	copy(material, b[1:1+KeySize])
	nonce := make([]byte, NonceSize)
	copy(nonce, b[1+KeySize:])
	return EncryptionKey{Material: material, Nonce: nonce}, nil
}

// Seal packages key and, when a wrapper is configured, envelope-encrypts it.
func (v *KeyVault) Seal(ctx context.Context, key EncryptionKey) ([]byte, error) {
	packaged, err := v.PackageKey(key)
	if err != nil {
		return nil, err
	}
	if v.wrapper == nil {
		return packaged, nil
	}
	defer common.WipeByteArray(packaged)

	wrapped, err := v.wrapper.Wrap(ctx, packaged)
	if err != nil {
		return nil, wrapperError("wrap key", common.ErrEncryption, err)
	}
	return wrapped, nil
}

// Open reverses Seal.
func (v *KeyVault) Open(ctx context.Context, stored []byte) (EncryptionKey, error) {
	if v.wrapper == nil {
		return v.UnpackageKey(stored)
	}
	packaged, err := v.wrapper.Unwrap(ctx, stored)
	if err != nil {
		return EncryptionKey{}, wrapperError("unwrap key", common.ErrDecryption, err)
	}
	defer common.WipeByteArray(packaged)
	return v.UnpackageKey(packaged)
}

// wrapperError keeps the category a wrapper already chose and falls back to
// fallback for uncategorized failures.
func wrapperError(op string, fallback, err error) error {
	if errors.Is(err, common.ErrCrypto) || errors.Is(err, common.ErrStorage) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", fallback, op, err)
}

// Package cryptox holds the per-document symmetric crypto: key generation and
// packaging (KeyVault) and authenticated encryption (CipherEngine).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/JustWint3r/SecureShare/internal/common"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the AES-GCM standard nonce length in bytes.
	NonceSize = 12
	// Overhead is the GCM authentication tag appended to every ciphertext.
	Overhead = 16
)

// CipherEngine encrypts and decrypts document payloads with AES-256-GCM.
//
// Encrypt always draws a fresh random nonce, so a caller can never reuse one
// with the same key. The zero value is ready to use.
type CipherEngine struct {
	// randBytes is a seam for tests; nil means crypto/rand.
	randBytes func(n int) ([]byte, error)
}

// NewCipherEngine returns a CipherEngine backed by crypto/rand.
func NewCipherEngine() *CipherEngine {
	return &CipherEngine{}
}

// Encrypt seals plaintext under key and returns the ciphertext together with
// the nonce it generated. len(ciphertext) == len(plaintext) + Overhead, so an
// empty plaintext yields a bare 16-byte tag.
//
// Fails with ErrEncryption only when the key has the wrong length, and with
// ErrEntropy when no nonce can be drawn.
func (e *CipherEngine) Encrypt(plaintext []byte, key EncryptionKey) (ciphertext, nonce []byte, err error) {
	aead, err := newGCM(key.Material, common.ErrEncryption)
	if err != nil {
		return nil, nil, err
	}

	nonce, err = e.rand(aead.NonceSize())
	if err != nil {
		return nil, nil, err
	}

	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens ciphertext produced by Encrypt. A wrong key, a wrong nonce or
// any tampering fails with ErrDecryption and no plaintext is returned.
func (e *CipherEngine) Decrypt(ciphertext []byte, key EncryptionKey, nonce []byte) ([]byte, error) {
	aead, err := newGCM(key.Material, common.ErrDecryption)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", common.ErrDecryption, aead.NonceSize(), len(nonce))
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return plaintext, nil
}

func (e *CipherEngine) rand(n int) ([]byte, error) {
	if e != nil && e.randBytes != nil {
		return e.randBytes(n)
	}
	return common.GenerateRandByteArray(n)
}

func newGCM(key []byte, kind error) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", kind, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kind, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kind, err)
	}
	return aead, nil
}

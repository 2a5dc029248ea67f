// Package common defines shared constants, helpers and sentinel errors used
// across SecureShare components. Callers should use errors.Is to match these
// values: every specific error also matches its category.
package common

import "errors"

// Error categories.
var (
	// ErrAuthorization is returned when the caller lacks the required level.
	ErrAuthorization = errors.New("authorization error")
	// ErrToken covers invalid, expired, exhausted or throttled share tokens.
	ErrToken = errors.New("token error")
	// ErrCrypto is terminal; retrying with the same inputs cannot succeed.
	ErrCrypto = errors.New("crypto error")
	// ErrStorage means the object store or primary ledger is unavailable.
	// It is retryable by the caller.
	ErrStorage = errors.New("storage error")

	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
)

// kindError is a specific error that also matches its category.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Authorization errors.
var (
	ErrAccessDenied           = newKindError(ErrAuthorization, "access denied")
	ErrInsufficientPermission = newKindError(ErrAuthorization, "insufficient permission")
)

// Share token errors.
var (
	ErrInvalidToken    = newKindError(ErrToken, "invalid token")
	ErrTokenExpired    = newKindError(ErrToken, "token expired")
	ErrRedemptionLimit = newKindError(ErrToken, "redemption limit reached")
	ErrRateLimited     = newKindError(ErrToken, "too many redemption attempts")
)

// Crypto errors.
var (
	ErrMalformedKey = newKindError(ErrCrypto, "malformed key")
	ErrEncryption   = newKindError(ErrCrypto, "encryption failed")
	ErrDecryption   = newKindError(ErrCrypto, "decryption failed")
	ErrEntropy      = newKindError(ErrCrypto, "entropy source failure")
)

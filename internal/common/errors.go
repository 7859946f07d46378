// Package common defines shared constants and sentinel errors used across
// the transport, service and repository layers of authkeeper. Callers should
// use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Input errors, normally caught by the transport before the core.
	ErrValidation = errors.New("validation error")

	// Authentication outcomes surfaced to the caller as rejections.
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrInvalidTwoFactorCode   = errors.New("invalid two-factor code")
	ErrAccountLocked          = errors.New("account is locked")
	ErrAccountInactive        = errors.New("account is inactive")
	ErrSessionRevoked         = errors.New("session revoked or expired")

	// Token lifecycle errors.
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenInvalid      = errors.New("invalid token")
	ErrTokenTypeMismatch = errors.New("token type mismatch")

	// Crypto errors. Fatal for the operation that hit them.
	ErrDecryption = errors.New("decryption failed")
	ErrEncryption = errors.New("encryption failed")

	// Registration only.
	ErrEmailTaken = errors.New("email already registered")

	// Two-factor enrollment state errors.
	ErrTwoFactorNotPending     = errors.New("two-factor setup not initiated")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
)

package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Coarse category every ID token verification failure wraps.
	// Handlers match on it, logs keep the specific kind.
	ErrIDTokenInvalid = errors.New("id token verification failed")

	ErrIDTokenMalformed        = errors.New("id token is malformed")
	ErrIDTokenAlgUnsupported   = errors.New("id token signing algorithm is not supported")
	ErrIDTokenKeyIDMissing     = errors.New("id token header has no key id")
	ErrIDTokenSignatureInvalid = errors.New("id token signature is invalid")
	ErrIDTokenIssuerMismatch   = errors.New("id token issuer mismatch")
	ErrIDTokenAudienceMismatch = errors.New("id token audience mismatch")
	ErrIDTokenExpired          = errors.New("id token is expired")
	ErrIDTokenNotYetValid      = errors.New("id token is not valid yet")

	ErrSigningKeyNotFound   = errors.New("no signing key matches key id")
	ErrKeySourceUnavailable = errors.New("signing key set is unavailable")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	// Session level failure. Never tells whether a session exists at all
	ErrUnauthorized = errors.New("unauthorized")
)

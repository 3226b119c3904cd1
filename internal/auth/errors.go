package auth

import "errors"

var (
	// ErrInvalidToken is returned for malformed or badly signed session tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a session or one-time token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMismatch is returned when a one-time token does not match the stored one.
	ErrTokenMismatch = errors.New("token mismatch")
)

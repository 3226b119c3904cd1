package services

import (
	"errors"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("current password does not match")
	ErrAlreadyVerified    = errors.New("user already verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrForbidden          = errors.New("forbidden")
	ErrSelfDelete         = errors.New("cannot delete own account")
	ErrNoAttachment       = errors.New("task has no attachment")
	ErrStorageDisabled    = errors.New("attachment storage is not configured")
)

// ValidationError reports a rejected input. Message is safe to show to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

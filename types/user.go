package types

import "time"

// User represents an account in the system.
// It contains identity, role, verification state and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"_id" db:"id" bson:"_id"`

	// Email is the user's unique, lower-cased email address.
	Email string `json:"email" db:"email" bson:"email"`

	// Name is the user's display name.
	Name string `json:"name" db:"name" bson:"name"`

	// Role indicates the user's authorization level within the system.
	Role Role `json:"role" db:"role" bson:"role"`

	// Photo is an optional avatar URL.
	Photo string `json:"photo" db:"photo" bson:"photo"`

	// Bio is an optional free-form profile text.
	Bio string `json:"bio" db:"bio" bson:"bio"`

	// IsVerified reports whether the email address has been confirmed.
	IsVerified bool `json:"isVerified" db:"is_verified" bson:"isVerified"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash" bson:"passwordHash"`

	// VerificationToken is the pending email verification token, if any.
	VerificationToken *OneTimeToken `json:"-" db:"-" bson:"verificationToken,omitempty"`

	// ResetToken is the pending password reset token, if any.
	ResetToken *OneTimeToken `json:"-" db:"-" bson:"resetToken,omitempty"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updatedAt"`
}

// Profile holds the user-editable fields of an account.
type Profile struct {
	Name  string
	Bio   string
	Photo string
}

// TokenKind names the purpose of a one-time token stored on a user.
type TokenKind string

const (
	TokenVerification TokenKind = "verification"
	TokenReset        TokenKind = "reset"
)

// OneTimeToken is the persisted form of a single-use token. Only the SHA-256
// digest of the raw token is stored.
type OneTimeToken struct {
	Hash      string    `json:"-" bson:"hash"`
	ExpiresAt time.Time `json:"-" bson:"expiresAt"`
}

// Expired reports whether the token is no longer usable at now.
func (t OneTimeToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenConsumption describes the change applied when a one-time token is
// consumed.
type TokenConsumption struct {
	MarkVerified bool
	PasswordHash string
}

// Token returns the pending token of the given kind.
func (u User) Token(kind TokenKind) *OneTimeToken {
	switch kind {
	case TokenVerification:
		return u.VerificationToken
	case TokenReset:
		return u.ResetToken
	default:
		return nil
	}
}

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/kraman82351/Task-management/types"
)

const oneTimeTokenBytes = 32

// NewOneTimeToken returns a random raw token for the client and the hashed
// form to persist.
func NewOneTimeToken(ttl time.Duration, now time.Time) (string, types.OneTimeToken, error) {
	buf := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", types.OneTimeToken{}, err
	}
	raw := hex.EncodeToString(buf)
	return raw, types.OneTimeToken{
		Hash:      HashToken(raw),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// HashToken returns the hex SHA-256 digest of raw.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CheckOneTimeToken validates raw against the stored token at now.
func CheckOneTimeToken(stored *types.OneTimeToken, raw string, now time.Time) error {
	if stored == nil || stored.Hash == "" || raw == "" {
		return ErrTokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(stored.Hash), []byte(HashToken(raw))) != 1 {
		return ErrTokenMismatch
	}
	if stored.Expired(now) {
		return ErrTokenExpired
	}
	return nil
}

package store

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraman82351/Task-management/types"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	other := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pq.Error{Code: pqUniqueViolation}, ErrConflict},
		{"bad uuid", &pq.Error{Code: pqInvalidTextEncoding}, ErrNotFound},
		{"missing owner", &pq.Error{Code: pqForeignKeyViolation}, ErrNotFound},
		{"other pq error", &pq.Error{Code: "42P01"}, nil},
		{"plain error", other, other},
	}
	for _, tt := range tests {
		got := mapError(tt.err)
		if tt.want == nil {
			assert.Equal(t, tt.err, got, tt.name)
			continue
		}
		assert.ErrorIs(t, got, tt.want, tt.name)
	}
}

func TestTokenColumns(t *testing.T) {
	t.Parallel()

	hash, exp, err := tokenColumns(types.TokenVerification)
	require.NoError(t, err)
	assert.Equal(t, "verification_token_hash", hash)
	assert.Equal(t, "verification_token_expires_at", exp)

	hash, exp, err = tokenColumns(types.TokenReset)
	require.NoError(t, err)
	assert.Equal(t, "reset_token_hash", hash)
	assert.Equal(t, "reset_token_expires_at", exp)

	_, _, err = tokenColumns("magic")
	require.Error(t, err)
}

type fakeResult int64

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestExpectAffected(t *testing.T) {
	t.Parallel()

	require.NoError(t, expectAffected(fakeResult(1)))
	require.ErrorIs(t, expectAffected(fakeResult(0)), ErrNotFound)
}

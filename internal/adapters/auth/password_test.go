package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bawabamail/internal/domain"
)

func TestBcryptHasher_GenerateSalt(t *testing.T) {
	h := NewBcryptHasher(4)
	hexRe := regexp.MustCompile(`^[0-9a-f]{64}$`)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		salt, err := h.GenerateSalt()
		require.NoError(t, err)
		assert.Regexp(t, hexRe, salt, "salt should be 64 hex characters")
		assert.False(t, seen[salt])
		seen[salt] = true
	}
}

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	h := NewBcryptHasher(4)
	salt1, err := h.GenerateSalt()
	require.NoError(t, err)
	salt2, err := h.GenerateSalt()
	require.NoError(t, err)

	hash, err := h.Hash(salt1, "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	tests := []struct {
		name     string
		salt     string
		password string
		wantErr  error
	}{
		{name: "match", salt: salt1, password: "correct-horse"},
		{name: "wrong password", salt: salt1, password: "wrong", wantErr: domain.ErrInvalidCredentials},
		{name: "wrong salt", salt: salt2, password: "correct-horse", wantErr: domain.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Compare(hash, tt.salt, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBcryptHasher_LongPassword(t *testing.T) {
	h := NewBcryptHasher(4)
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	hash, err := h.Hash("salt", string(long))
	require.NoError(t, err)
	require.NoError(t, h.Compare(hash, "salt", string(long)))
	require.Error(t, h.Compare(hash, "salt", string(long[:199])))
}

func TestNewBcryptHasher_InvalidCostFallsBack(t *testing.T) {
	h, ok := NewBcryptHasher(99).(*bcryptHasher)
	require.True(t, ok)
	assert.Equal(t, DefaultBcryptCost, h.cost)
}

// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordAcceptsLongInput(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "ascii 100 chars", password: strings.Repeat("a", 100)},
		{name: "128 chars", password: strings.Repeat("x", 128)},
		{name: "multibyte 30 chars", password: strings.Repeat("密", 30)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := hashPasswordWithCost(tc.password, bcrypt.MinCost)
			require.NoError(t, err)

			ok, err := VerifyPassword(tc.password, hash)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = VerifyPassword("short-wrong", hash)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestVerifyPasswordMatchesTruncatingHashers(t *testing.T) {
	long := strings.Repeat("b", 72) + "tail-that-bcrypt-never-sees"

	// A hash produced from the first 72 bytes, as bcryptjs stores it.
	hash, err := bcrypt.GenerateFromPassword([]byte(long[:72]), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := VerifyPassword(long, string(hash))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPasswordTimingSafe(t *testing.T) {
	ok, err := VerifyPasswordTimingSafe("anything", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	hash, err := hashPasswordWithCost("correct-horse", bcrypt.MinCost)
	require.NoError(t, err)

	ok, err = VerifyPasswordTimingSafe("correct-horse", &hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNeedsRehash(t *testing.T) {
	cheap, err := hashPasswordWithCost("pw-pw-pw-pw", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, NeedsRehash(cheap))
	assert.True(t, NeedsRehash("not-a-hash"))
}

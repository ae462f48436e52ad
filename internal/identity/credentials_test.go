package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordArgon2_RoundTrip(t *testing.T) {
	hash, salt, err := hashPasswordArgon2("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.Len(t, salt, defaultArgon2Params.saltLen)

	assert.True(t, verifyPasswordArgon2("correct horse battery staple", hash, salt))
	assert.False(t, verifyPasswordArgon2("wrong password", hash, salt))
}

func TestHashPasswordArgon2_DistinctSaltsPerCall(t *testing.T) {
	_, saltA, err := hashPasswordArgon2("same-password")
	require.NoError(t, err)
	_, saltB, err := hashPasswordArgon2("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, saltA, saltB)
}

func TestVerifyPasswordBcrypt_LegacyAccounts(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("legacy-password"), bcrypt.DefaultCost)
	require.NoError(t, err)

	assert.True(t, verifyPasswordBcrypt("legacy-password", string(hash)))
	assert.False(t, verifyPasswordBcrypt("wrong", string(hash)))
}

func TestHashToken_Deterministic(t *testing.T) {
	a := hashToken("pepper", "token-value")
	b := hashToken("pepper", "token-value")
	c := hashToken("other-pepper", "token-value")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.NotEqual(t, "hunter22", hash)

	require.True(t, VerifyPassword(hash, "hunter22"))
	require.False(t, VerifyPassword(hash, "hunter23"))
	require.False(t, VerifyPassword("", "hunter22"))
}

func TestGenerateTokenIsRandom(t *testing.T) {
	first, err := GenerateToken(32)
	require.NoError(t, err)
	second, err := GenerateToken(32)
	require.NoError(t, err)

	require.NotEmpty(t, first)
	require.NotEqual(t, first, second)
}

func TestHashTokenIsDeterministic(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)

	require.Equal(t, HashToken(token), HashToken(token))
	require.NotEqual(t, HashToken(token), HashToken(token+"x"))
	require.NotEqual(t, token, HashToken(token))
}

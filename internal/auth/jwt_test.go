package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabboard/collabboard/internal/auth"
)

func TestJWT_IssueAndValidateRoundTrip(t *testing.T) {
	t.Parallel()

	secret := "test-secret-key-very-long-and-secure"
	userID := uuid.New()

	t.Run("access token round-trip", func(t *testing.T) {
		t.Parallel()

		token, err := auth.IssueAccessToken(secret, userID, "Alice", "alice@example.com", 5*time.Minute)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := auth.ValidateToken(secret, token)
		require.NoError(t, err)
		require.NotNil(t, claims)

		assert.Equal(t, userID.String(), claims.UserID)
		assert.Equal(t, "Alice", claims.UserName)
		assert.Equal(t, "alice@example.com", claims.Email)
		assert.Equal(t, "access", claims.TokenType)
		assert.Equal(t, "collabboard", claims.Issuer)
	})

	t.Run("refresh token round-trip", func(t *testing.T) {
		t.Parallel()

		token, err := auth.IssueRefreshToken(secret, userID, "Alice", "alice@example.com", 24*time.Hour)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := auth.ValidateToken(secret, token)
		require.NoError(t, err)
		require.NotNil(t, claims)

		assert.Equal(t, userID.String(), claims.UserID)
		assert.Equal(t, "refresh", claims.TokenType)
	})
}

func TestJWT_ExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	secret := "test-secret-key"

	// Issue a token that has already expired (negative TTL).
	token, err := auth.IssueAccessToken(secret, uuid.New(), "Bob", "bob@example.com", -1*time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := auth.ValidateToken(secret, token)
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWT_InvalidSecretRejected(t *testing.T) {
	t.Parallel()

	token, err := auth.IssueAccessToken("secret-one", uuid.New(), "Bob", "bob@example.com", 5*time.Minute)
	require.NoError(t, err)

	claims, err := auth.ValidateToken("secret-two", token)
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWT_GarbageTokenRejected(t *testing.T) {
	t.Parallel()

	claims, err := auth.ValidateToken("secret", "not.a.jwt")
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

package tokenmanager

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneybookapp/moneybook/internal/apperrors"
)

func Test_TokenManager(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	newManager := func(t *testing.T, accessTTL time.Duration, refreshTTL time.Duration) *TokenManager {
		t.Helper()
		m, err := New(Config{
			SecretKey:  "test-secret-key",
			AccessTTL:  accessTTL,
			RefreshTTL: refreshTTL,
		})
		require.NoError(t, err, "token manager should be created without errors")
		return m
	}

	t.Run("new defaults", func(t *testing.T) {
		m, err := New(Config{SecretKey: "secret"})
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, "secret", m.key, "secret key should be set")
		require.Equal(t, defaultAccessTokenTTL, m.accessTTL, "default access token TTL should be set")
		require.Equal(t, defaultRefreshTokenTTL, m.refreshTTL, "default refresh token TTL")
		require.Equal(t, defaultSigningMethod, m.alg.Alg(), "default signing method should be set")
	})

	t.Run("new requires secret", func(t *testing.T) {
		_, err := New(Config{})
		require.Error(t, err, "empty secret key should be rejected")
	})

	t.Run("GeneratePair", func(t *testing.T) {
		t.Run("return token pair", func(t *testing.T) {
			m := newManager(t, 15*time.Minute, 24*time.Hour)

			pair, err := m.GeneratePair(userID)

			require.NoError(t, err)
			assert.NotEmpty(t, pair.Access.Value, "access token should not be empty")
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), pair.Access.ExpiresAt, time.Second)
			assert.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
			assert.WithinDuration(t, time.Now().Add(24*time.Hour), pair.Refresh.ExpiresAt, time.Second)
		})

		t.Run("access claims", func(t *testing.T) {
			m := newManager(t, 15*time.Minute, 24*time.Hour)

			pair, err := m.GeneratePair(userID)
			require.NoError(t, err)

			token, err := jwt.ParseWithClaims(pair.Access.Value, &Claims{}, func(token *jwt.Token) (any, error) {
				return []byte("test-secret-key"), nil
			})
			require.NoError(t, err)
			require.True(t, token.Valid, "access token should be valid")

			claims, ok := token.Claims.(*Claims)
			require.True(t, ok, "claims should be of type Claims")
			assert.Equal(t, userID, claims.UserID, "user ID in token should match")
			assert.Equal(t, typeAccess, claims.TokenType)
			assert.NotEmpty(t, claims.ID, "token has to has jti")
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second, "issued at should be close to now")
			assert.WithinDuration(t, pair.Access.ExpiresAt, claims.ExpiresAt.Time, 0, "access expires at should match token pair")
		})

		t.Run("generate different tokens", func(t *testing.T) {
			m := newManager(t, 15*time.Minute, 24*time.Hour)

			pair1, err := m.GeneratePair(userID)
			require.NoError(t, err)

			pair2, err := m.GeneratePair(userID)
			require.NoError(t, err)

			assert.NotEqual(t, pair1.Refresh.Value, pair2.Refresh.Value, "refresh tokens should be different")
			assert.NotEqual(t, pair1.Access.Value, pair2.Access.Value, "access tokens should be different")
		})
	})

	t.Run("ParseAccess", func(t *testing.T) {
		t.Run("round trip", func(t *testing.T) {
			m := newManager(t, 15*time.Minute, 24*time.Hour)
			pair, err := m.GeneratePair(userID)
			require.NoError(t, err)

			got, err := m.ParseAccess(pair.Access.Value)

			require.NoError(t, err)
			require.Equal(t, userID, got)
		})

		t.Run("refresh token is not an access token", func(t *testing.T) {
			m := newManager(t, 15*time.Minute, 24*time.Hour)
			pair, err := m.GeneratePair(userID)
			require.NoError(t, err)

			_, err = m.ParseAccess(pair.Refresh.Value)

			require.Error(t, err, "token type must match")
		})

		t.Run("expired access rejected", func(t *testing.T) {
			m := newManager(t, -time.Minute, 24*time.Hour)
			pair, err := m.GeneratePair(userID)
			require.NoError(t, err)

			_, err = m.ParseAccess(pair.Access.Value)

			require.Error(t, err)
		})

		t.Run("foreign secret rejected", func(t *testing.T) {
			m := newManager(t, 15*time.Minute, 24*time.Hour)
			other, err := New(Config{SecretKey: "other-secret"})
			require.NoError(t, err)

			pair, err := other.GeneratePair(userID)
			require.NoError(t, err)

			_, err = m.ParseAccess(pair.Access.Value)

			require.Error(t, err)
		})
	})

	t.Run("ParseRefresh", func(t *testing.T) {
		t.Run("round trip", func(t *testing.T) {
			m := newManager(t, 15*time.Minute, 24*time.Hour)
			pair, err := m.GeneratePair(userID)
			require.NoError(t, err)

			got, err := m.ParseRefresh(pair.Refresh.Value)

			require.NoError(t, err)
			require.Equal(t, userID, got)
		})

		t.Run("access token is not a refresh token", func(t *testing.T) {
			m := newManager(t, 15*time.Minute, 24*time.Hour)
			pair, err := m.GeneratePair(userID)
			require.NoError(t, err)

			_, err = m.ParseRefresh(pair.Access.Value)

			require.Error(t, err, "token type must match")
		})

		t.Run("expired refresh rejected", func(t *testing.T) {
			m := newManager(t, 15*time.Minute, -time.Minute)
			pair, err := m.GeneratePair(userID)
			require.NoError(t, err)

			_, err = m.ParseRefresh(pair.Refresh.Value)

			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenExpired)
		})
	})
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskflow-api/internal/config"
)

const testJWTSecret = "test-secret-key-thats-at-least-32-characters-long"

func newTestJWTService(t *testing.T, lifetimeMinutes int) *hmacJWTService {
	t.Helper()
	svc, err := NewJWTService(config.AuthConfig{
		JWTSecret:            testJWTSecret,
		TokenLifetimeMinutes: lifetimeMinutes,
	})
	require.NoError(t, err)
	return svc.(*hmacJWTService)
}

func TestNewJWTService(t *testing.T) {
	t.Run("rejects_short_secret", func(t *testing.T) {
		_, err := NewJWTService(config.AuthConfig{
			JWTSecret:            "too-short",
			TokenLifetimeMinutes: 60,
		})
		assert.Error(t, err)
	})

	t.Run("accepts_valid_secret", func(t *testing.T) {
		_, err := NewJWTService(config.AuthConfig{
			JWTSecret:            testJWTSecret,
			TokenLifetimeMinutes: 60,
		})
		assert.NoError(t, err)
	})
}

func TestTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestJWTService(t, 60)
	userID := uuid.New()

	token, err := svc.GenerateToken(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
}

func TestValidateToken(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("expired_token", func(t *testing.T) {
		svc := newTestJWTService(t, 60)

		issued := time.Now().UTC()
		svc.timeFunc = func() time.Time { return issued }
		token, err := svc.GenerateToken(ctx, userID)
		require.NoError(t, err)

		// Advance past lifetime plus clock skew.
		svc.timeFunc = func() time.Time { return issued.Add(63 * time.Minute) }
		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("within_clock_skew", func(t *testing.T) {
		svc := newTestJWTService(t, 60)

		issued := time.Now().UTC()
		svc.timeFunc = func() time.Time { return issued }
		token, err := svc.GenerateToken(ctx, userID)
		require.NoError(t, err)

		svc.timeFunc = func() time.Time { return issued.Add(61 * time.Minute) }
		_, err = svc.ValidateToken(ctx, token)
		assert.NoError(t, err)
	})

	t.Run("wrong_signing_key", func(t *testing.T) {
		svc := newTestJWTService(t, 60)
		token, err := svc.GenerateToken(ctx, userID)
		require.NoError(t, err)

		other, err := NewJWTService(config.AuthConfig{
			JWTSecret:            "a-completely-different-32-char-secret!!",
			TokenLifetimeMinutes: 60,
		})
		require.NoError(t, err)

		_, err = other.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage_token", func(t *testing.T) {
		svc := newTestJWTService(t, 60)
		_, err := svc.ValidateToken(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty_token", func(t *testing.T) {
		svc := newTestJWTService(t, 60)
		_, err := svc.ValidateToken(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

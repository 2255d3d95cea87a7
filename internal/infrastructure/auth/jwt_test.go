package auth

import (
	"testing"
	"time"

	"github.com/fulfillment/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                 "tracking-access-secret-at-least-32ch",
		RefreshSecret:          "tracking-refresh-secret-at-least-32c",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "fulfillment-backend",
		MaxRefreshCount:        10,
	})
}

func operatorInput() GenerateTokenInput {
	return GenerateTokenInput{
		TenantID:    uuid.New(),
		UserID:      uuid.New(),
		Username:    "station-operator",
		RoleIDs:     []uuid.UUID{uuid.New(), uuid.New()},
		Permissions: []string{"tracking:submit", "piece:read", "flag:read"},
	}
}

func TestNewJWTService_RefreshSecretFallsBackToAccessSecret(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{
		Secret:                 "only-one-secret-configured-32-chars!",
		AccessTokenExpiration:  time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "fulfillment-backend",
	})

	assert.Equal(t, svc.accessSecret, svc.refreshSecret)
}

func TestGenerateTokenPair(t *testing.T) {
	svc := newTokenService()
	pair, err := svc.GenerateTokenPair(operatorInput())
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.True(t, pair.RefreshTokenExpiresAt.After(pair.AccessTokenExpiresAt))
}

func TestValidateAccessToken(t *testing.T) {
	svc := newTokenService()
	input := operatorInput()
	pair, err := svc.GenerateTokenPair(input)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)

	assert.Equal(t, input.TenantID.String(), claims.TenantID)
	assert.Equal(t, input.UserID.String(), claims.UserID)
	assert.Equal(t, "station-operator", claims.Username)
	assert.Len(t, claims.RoleIDs, 2)
	assert.Equal(t, input.Permissions, claims.Permissions)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.ID, "access token must carry a JTI for revocation")
	assert.Equal(t, "fulfillment-backend", claims.Issuer)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{
		Secret:                 "tracking-access-secret-at-least-32ch",
		AccessTokenExpiration:  -time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "fulfillment-backend",
	})
	pair, err := svc.GenerateTokenPair(operatorInput())
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	svc := newTokenService()
	_, err := svc.ValidateAccessToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_RejectsRefreshToken(t *testing.T) {
	svc := newTokenService()
	pair, err := svc.GenerateTokenPair(operatorInput())
	require.NoError(t, err)

	// A refresh token must never authorize an API call, even though it is
	// signed by the same service.
	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.Error(t, err)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	pair, err := newTokenService().GenerateTokenPair(operatorInput())
	require.NoError(t, err)

	other := NewJWTService(config.JWTConfig{
		Secret:                 "a-completely-different-secret-32char",
		AccessTokenExpiration:  time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "fulfillment-backend",
	})
	_, err = other.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRefreshToken(t *testing.T) {
	svc := newTokenService()
	input := operatorInput()
	pair, err := svc.GenerateTokenPair(input)
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)

	assert.Equal(t, TokenTypeRefresh, claims.TokenType)
	assert.Equal(t, input.TenantID.String(), claims.TenantID)
	assert.Equal(t, input.UserID.String(), claims.UserID)
	// The refresh token stays lean: no grant lists.
	assert.Empty(t, claims.RoleIDs)
	assert.Empty(t, claims.Permissions)
}

func TestValidateRefreshToken_RejectsAccessToken(t *testing.T) {
	svc := newTokenService()
	pair, err := svc.GenerateTokenPair(operatorInput())
	require.NoError(t, err)

	_, err = svc.ValidateRefreshToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestRefreshTokenPair(t *testing.T) {
	svc := newTokenService()
	input := operatorInput()
	pair, err := svc.GenerateTokenPair(input)
	require.NoError(t, err)

	refreshed, err := svc.RefreshTokenPair(pair.RefreshToken, []string{"tracking:submit"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, input.TenantID.String(), claims.TenantID)
	assert.Equal(t, input.UserID.String(), claims.UserID)
	// Permissions come from the caller, picking up grant changes since issue.
	assert.Equal(t, []string{"tracking:submit"}, claims.Permissions)
}

func TestRefreshTokenPair_IncrementsRefreshCount(t *testing.T) {
	svc := newTokenService()
	pair, err := svc.GenerateTokenPair(operatorInput())
	require.NoError(t, err)

	first, err := svc.RefreshTokenPair(pair.RefreshToken, nil)
	require.NoError(t, err)
	second, err := svc.RefreshTokenPair(first.RefreshToken, nil)
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(second.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, 2, claims.RefreshCount)
}

func TestRefreshTokenPair_ChainEndsAtMax(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{
		Secret:                 "tracking-access-secret-at-least-32ch",
		AccessTokenExpiration:  time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "fulfillment-backend",
		MaxRefreshCount:        2,
	})
	pair, err := svc.GenerateTokenPair(operatorInput())
	require.NoError(t, err)

	first, err := svc.RefreshTokenPair(pair.RefreshToken, nil)
	require.NoError(t, err)
	second, err := svc.RefreshTokenPair(first.RefreshToken, nil)
	require.NoError(t, err)

	_, err = svc.RefreshTokenPair(second.RefreshToken, nil)
	assert.ErrorIs(t, err, ErrMaxRefreshExceeded)
}

func TestRefreshTokenPair_RejectsAccessToken(t *testing.T) {
	svc := newTokenService()
	pair, err := svc.GenerateTokenPair(operatorInput())
	require.NoError(t, err)

	_, err = svc.RefreshTokenPair(pair.AccessToken, nil)
	assert.Error(t, err)
}

func TestRefreshTokenPair_InvalidToken(t *testing.T) {
	svc := newTokenService()
	_, err := svc.RefreshTokenPair("garbage", nil)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaims_GetIssuedAtTime(t *testing.T) {
	svc := newTokenService()
	pair, err := svc.GenerateTokenPair(operatorInput())
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)

	issued := claims.GetIssuedAtTime()
	assert.False(t, issued.IsZero())
	assert.WithinDuration(t, time.Now(), issued, time.Minute)

	var empty Claims
	assert.True(t, empty.GetIssuedAtTime().IsZero())
}

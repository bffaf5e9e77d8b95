package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "test-access-secret-key-for-testing-purposes"
	testRefreshSecret = "test-refresh-secret-key-for-testing-purposes"
)

func newTestService() *Service {
	return NewService(testAccessSecret, testRefreshSecret, time.Hour, 24*time.Hour)
}

func TestGenerateAccessToken(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	token, err := service.GenerateAccessToken(userID, "+919876543210", []string{RoleCustomer})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "+919876543210", claims.Contact)
	assert.Equal(t, []string{RoleCustomer}, claims.Roles)
	assert.Equal(t, AccessToken, claims.TokenType)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestGenerateRefreshToken(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	token, err := service.GenerateRefreshToken(userID)
	require.NoError(t, err)

	claims, err := service.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, RefreshToken, claims.TokenType)
}

func TestValidateAccessToken(t *testing.T) {
	service := newTestService()
	token, err := service.GenerateAccessToken(uuid.New(), "", []string{RoleCustomer})
	require.NoError(t, err)

	t.Run("Malformed", func(t *testing.T) {
		_, err := service.ValidateAccessToken("invalid.token.here")
		assert.Error(t, err)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		wrong := NewService("wrong-secret", testRefreshSecret, time.Hour, 24*time.Hour)
		_, err := wrong.ValidateAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("Refresh token used as access token", func(t *testing.T) {
		shared := NewService(testAccessSecret, testAccessSecret, time.Hour, 24*time.Hour)
		refresh, err := shared.GenerateRefreshToken(uuid.New())
		require.NoError(t, err)

		_, err = shared.ValidateAccessToken(refresh)
		assert.ErrorContains(t, err, "invalid token type")
	})

	t.Run("Expired", func(t *testing.T) {
		short := NewService(testAccessSecret, testRefreshSecret, -time.Minute, time.Hour)
		expired, err := short.GenerateAccessToken(uuid.New(), "", nil)
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(expired)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("Foreign issuer", func(t *testing.T) {
		claims := Claims{
			UserID:    uuid.New(),
			TokenType: AccessToken,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(foreign)
		assert.Error(t, err)
	})

	t.Run("Unsigned token", func(t *testing.T) {
		claims := Claims{
			UserID:    uuid.New(),
			TokenType: AccessToken,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    Issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(unsigned)
		assert.Error(t, err)
	})
}

func TestClaims_HasRole(t *testing.T) {
	claims := &Claims{Roles: []string{RoleCustomer, RoleVendor}}

	assert.True(t, claims.HasRole(RoleVendor))
	assert.True(t, claims.HasRole(RoleAdmin, RoleCustomer))
	assert.False(t, claims.HasRole(RoleAdmin))
	assert.False(t, (&Claims{}).HasRole(RoleCustomer))
}

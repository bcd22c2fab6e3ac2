package jwt

import (
	"testing"
	"time"

	"clinic-appointment-system/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(expiry time.Duration) *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:       "unit-test-secret",
		AccessExpiry: expiry,
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(time.Hour)
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, "dr@example.com", 2)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "dr@example.com", claims.Email)
	assert.Equal(t, 2, claims.RoleID)
	assert.Equal(t, AccessToken, claims.TokenType)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := newTestService(time.Hour).GenerateAccessToken(uuid.New(), "a@b.com", 3)
	require.NoError(t, err)

	other := NewJWTService(config.JWTConfig{Secret: "different-secret", AccessExpiry: time.Hour})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := newTestService(-time.Minute)
	token, err := svc.GenerateAccessToken(uuid.New(), "a@b.com", 3)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := newTestService(time.Hour).ValidateToken("not.a.jwt")
	assert.Error(t, err)
}

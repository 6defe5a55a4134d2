package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewTokenService("s3cret", time.Hour)

	token, expiresAt, err := svc.GenerateOperatorToken("op-1", "asha")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID)
	assert.Equal(t, "asha", claims.Username)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestValidateRejects(t *testing.T) {
	svc := NewTokenService("s3cret", time.Hour)
	other := NewTokenService("different", time.Hour)

	foreign, _, err := other.GenerateOperatorToken("op-1", "asha")
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err, "token signed with another secret")

	expired := NewTokenService("s3cret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.GenerateOperatorToken("op-1", "asha")
	require.NoError(t, err)
	_, err = svc.ValidateToken(old)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired), "got %v", err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestValidateRejectsForeignRole(t *testing.T) {
	svc := NewTokenService("s3cret", time.Hour)
	claims := &JWTClaims{
		OperatorID: "v-1",
		Role:       "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)
}

func TestDisabledService(t *testing.T) {
	svc := NewTokenService("", 0)
	assert.False(t, svc.Enabled())
	assert.Equal(t, 12*time.Hour, svc.TTL())

	_, _, err := svc.GenerateOperatorToken("op-1", "asha")
	assert.ErrorIs(t, err, ErrMissingSecret)
	_, err = svc.ValidateToken("x")
	assert.ErrorIs(t, err, ErrMissingSecret)

	var nilSvc *TokenService
	assert.False(t, nilSvc.Enabled())
}

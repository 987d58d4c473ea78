package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123"

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService(DefaultJWTConfig(testSecret))
	require.NoError(t, err)

	token, exp, err := svc.GenerateAccessToken("op-7", "M. Durand", []string{"pharmacist"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(12*time.Hour), exp, time.Minute)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-7", user.UserID)
	assert.Equal(t, "M. Durand", user.DisplayName())
	assert.Equal(t, []string{"pharmacist"}, user.Roles)
}

func TestJWTService_Rejects(t *testing.T) {
	svc, err := NewJWTService(DefaultJWTConfig(testSecret))
	require.NoError(t, err)

	other, err := NewJWTService(DefaultJWTConfig("another-secret-of-length"))
	require.NoError(t, err)
	foreign, _, err := other.GenerateAccessToken("op-7", "", nil)
	require.NoError(t, err)

	expiredCfg := DefaultJWTConfig(testSecret)
	expiredCfg.AccessTokenTTL = -time.Minute
	expiredSvc, err := NewJWTService(expiredCfg)
	require.NoError(t, err)
	expired, _, err := expiredSvc.GenerateAccessToken("op-7", "", nil)
	require.NoError(t, err)

	wrongIssuerCfg := DefaultJWTConfig(testSecret)
	wrongIssuerCfg.Issuer = "elsewhere"
	wrongIssuer, err := NewJWTService(wrongIssuerCfg)
	require.NoError(t, err)
	misissued, _, err := wrongIssuer.GenerateAccessToken("op-7", "", nil)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"foreign secret": foreign,
		"expired":        expired,
		"wrong issuer":   misissued,
		"alg none":       none,
		"garbage":        "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService(DefaultJWTConfig("short"))
	assert.Error(t, err)
}

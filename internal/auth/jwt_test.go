package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kioskhub/kiosk-hub-go/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:                "test-secret-test-secret-test-secret!",
		JWTAccessTokenExpirySec:  3600,
		JWTRefreshTokenExpirySec: 86400,
		DeviceTokenExpirySec:     3600,
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	cfg := testConfig()

	pair, err := GenerateAdminTokenPair(cfg, "admin")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	payload, err := VerifyToken(cfg, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "admin", payload.Sub)
	require.Equal(t, RoleAdmin, payload.Role)
	require.Equal(t, TokenTypeAccess, payload.Type)
}

func TestDeviceTokenCarriesIdentity(t *testing.T) {
	cfg := testConfig()

	pair, err := GenerateDeviceTokenPair(cfg, 42, "lobby-01")
	require.NoError(t, err)

	payload, err := VerifyToken(cfg, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, RoleDevice, payload.Role)
	require.Equal(t, int64(42), payload.DeviceID)
	require.Equal(t, "lobby-01", payload.DeviceKey)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	cfg := testConfig()
	pair, err := GenerateAdminTokenPair(cfg, "admin")
	require.NoError(t, err)

	other := cfg
	other.JWTSecret = "another-secret-another-secret-12345"
	_, err = VerifyToken(other, pair.AccessToken)
	require.Error(t, err)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	_, err := VerifyToken(testConfig(), "not-a-token")
	require.Error(t, err)
}

func TestVerifyTokenForRoleEnforcesRole(t *testing.T) {
	cfg := testConfig()

	adminPair, err := GenerateAdminTokenPair(cfg, "admin")
	require.NoError(t, err)
	devicePair, err := GenerateDeviceTokenPair(cfg, 7, "kiosk-07")
	require.NoError(t, err)

	_, err = VerifyTokenForRole(cfg, adminPair.AccessToken, RoleAdmin)
	require.NoError(t, err)
	_, err = VerifyTokenForRole(cfg, devicePair.AccessToken, RoleDevice)
	require.NoError(t, err)

	// A device token must not open an admin session, and vice versa.
	_, err = VerifyTokenForRole(cfg, devicePair.AccessToken, RoleAdmin)
	require.Error(t, err)
	_, err = VerifyTokenForRole(cfg, adminPair.AccessToken, RoleDevice)
	require.Error(t, err)
}

func TestRefreshAccessToken(t *testing.T) {
	cfg := testConfig()
	pair, err := GenerateAdminTokenPair(cfg, "admin")
	require.NoError(t, err)

	refreshed, expiresIn, err := RefreshAccessToken(cfg, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, cfg.JWTAccessTokenExpirySec, expiresIn)

	payload, err := VerifyToken(cfg, refreshed)
	require.NoError(t, err)
	require.Equal(t, TokenTypeAccess, payload.Type)
	require.Equal(t, RoleAdmin, payload.Role)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	cfg := testConfig()
	pair, err := GenerateAdminTokenPair(cfg, "admin")
	require.NoError(t, err)

	_, _, err = RefreshAccessToken(cfg, pair.AccessToken)
	require.Error(t, err)
}

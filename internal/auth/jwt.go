package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kioskhub/kiosk-hub-go/internal/config"
)

// TokenType describes access vs refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Role describes what kind of principal a token identifies.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDevice Role = "device"
)

// TokenPayload represents the validated payload data.
type TokenPayload struct {
	Sub  string
	Role Role
	Type TokenType
	// DeviceID and DeviceKey are set only on device tokens. DeviceKey is the
	// stable human-chosen identifier; DeviceID the numeric surrogate. Session
	// attribution always comes from these claims, never from a client payload.
	DeviceID  int64
	DeviceKey string
}

// TokenPair is returned for login, device-mint and refresh flows.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresInSec int
}

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenType    = errors.New("token has invalid type")
	ErrRoleMismatch = errors.New("token role mismatch")
)

type tokenClaims struct {
	Role      Role      `json:"role"`
	Type      TokenType `json:"type"`
	DeviceID  int64     `json:"deviceId,omitempty"`
	DeviceKey string    `json:"deviceKey,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAdminTokenPair creates an access and refresh token for an admin user.
func GenerateAdminTokenPair(cfg config.Config, userID string) (TokenPair, error) {
	payload := TokenPayload{Sub: userID, Role: RoleAdmin}
	return generatePair(cfg, payload, cfg.JWTAccessTokenExpirySec)
}

// GenerateDeviceTokenPair creates an access and refresh token for a device.
// Device tokens embed both the surrogate id and the stable device key.
func GenerateDeviceTokenPair(cfg config.Config, deviceID int64, deviceKey string) (TokenPair, error) {
	payload := TokenPayload{
		Sub:       deviceKey,
		Role:      RoleDevice,
		DeviceID:  deviceID,
		DeviceKey: deviceKey,
	}
	return generatePair(cfg, payload, cfg.DeviceTokenExpirySec)
}

func generatePair(cfg config.Config, payload TokenPayload, accessExpirySec int) (TokenPair, error) {
	accessToken, err := generateToken(cfg, payload, TokenTypeAccess, accessExpirySec)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := generateToken(cfg, payload, TokenTypeRefresh, cfg.JWTRefreshTokenExpirySec)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresInSec: accessExpirySec,
	}, nil
}

// RefreshAccessToken validates a refresh token and returns a new access token.
func RefreshAccessToken(cfg config.Config, refreshToken string) (string, int, error) {
	payload, err := VerifyToken(cfg, refreshToken)
	if err != nil {
		return "", 0, err
	}
	if payload.Type != TokenTypeRefresh {
		return "", 0, ErrTokenType
	}
	expirySec := cfg.JWTAccessTokenExpirySec
	if payload.Role == RoleDevice {
		expirySec = cfg.DeviceTokenExpirySec
	}
	accessToken, err := generateToken(cfg, payload, TokenTypeAccess, expirySec)
	if err != nil {
		return "", 0, err
	}
	return accessToken, expirySec, nil
}

// VerifyToken parses and validates the JWT.
func VerifyToken(cfg config.Config, token string) (TokenPayload, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithAudience("kiosk-hub-client"),
		jwt.WithIssuer("kiosk-hub"),
	)

	claims := &tokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenPayload{}, ErrTokenExpired
		}
		return TokenPayload{}, ErrTokenInvalid
	}
	if parsed == nil || !parsed.Valid {
		return TokenPayload{}, ErrTokenInvalid
	}

	payload := TokenPayload{
		Sub:       claims.Subject,
		Role:      claims.Role,
		Type:      claims.Type,
		DeviceID:  claims.DeviceID,
		DeviceKey: claims.DeviceKey,
	}
	if payload.Sub == "" {
		return TokenPayload{}, ErrTokenInvalid
	}
	if payload.Type != TokenTypeAccess && payload.Type != TokenTypeRefresh {
		return TokenPayload{}, ErrTokenInvalid
	}
	switch payload.Role {
	case RoleAdmin:
	case RoleDevice:
		if payload.DeviceKey == "" {
			return TokenPayload{}, ErrTokenInvalid
		}
	default:
		// No other role is honored.
		return TokenPayload{}, ErrTokenInvalid
	}

	return payload, nil
}

// VerifyTokenForRole validates the token and checks it carries the declared
// role, used at websocket session start.
func VerifyTokenForRole(cfg config.Config, token string, role Role) (TokenPayload, error) {
	payload, err := VerifyToken(cfg, token)
	if err != nil {
		return TokenPayload{}, err
	}
	if payload.Type != TokenTypeAccess {
		return TokenPayload{}, ErrTokenType
	}
	if payload.Role != role {
		return TokenPayload{}, ErrRoleMismatch
	}
	return payload, nil
}

func generateToken(cfg config.Config, payload TokenPayload, tokenType TokenType, expirySec int) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Role:      payload.Role,
		Type:      tokenType,
		DeviceID:  payload.DeviceID,
		DeviceKey: payload.DeviceKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Sub,
			Issuer:    "kiosk-hub",
			Audience:  []string{"kiosk-hub-client"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expirySec) * time.Second)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

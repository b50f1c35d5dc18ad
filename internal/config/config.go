package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the base hub configuration.
type Config struct {
	Host         string
	Port         string
	SQLiteDBPath string
	Env          string

	JWTSecret                string
	JWTAccessTokenExpirySec  int
	JWTRefreshTokenExpirySec int
	// DeviceTokenExpirySec is the lifetime of minted device access tokens.
	// Kiosks are unattended, so these run much longer than admin tokens.
	DeviceTokenExpirySec int

	AdminUsername string
	AdminPassword string

	// Realtime gateway tuning.
	HeartbeatIntervalSec int
	OutboundQueueSize    int

	// Screenshot retention.
	ScreenshotKeepPerDevice int
	ScreenshotMaxAgeDays    int

	AuditRetentionDays int

	// Agent-side settings (ignored by the hub binary).
	HubURL            string
	DeviceToken       string
	ContentCacheDir   string
	DefaultRotationMs int
}

// Load reads configuration from environment variables with defaults.
func Load() (Config, error) {
	cfg := Config{
		Host:                     envString("HOST", "0.0.0.0"),
		Port:                     envString("PORT", "9000"),
		SQLiteDBPath:             envString("SQLITE_DB_PATH", "./data/kiosk-hub.db"),
		Env:                      envString("KIOSK_ENV", "development"),
		JWTSecret:                envString("JWT_SECRET", ""),
		JWTAccessTokenExpirySec:  envInt("JWT_ACCESS_TOKEN_EXPIRY", 3600),
		JWTRefreshTokenExpirySec: envInt("JWT_REFRESH_TOKEN_EXPIRY", 2592000),
		DeviceTokenExpirySec:     envInt("DEVICE_TOKEN_EXPIRY", 31536000),
		AdminUsername:            envString("ADMIN_USERNAME", "admin"),
		AdminPassword:            envString("ADMIN_PASSWORD", ""),
		HeartbeatIntervalSec:     envInt("WS_HEARTBEAT_INTERVAL_SEC", 30),
		OutboundQueueSize:        envInt("WS_OUTBOUND_QUEUE_SIZE", 256),
		ScreenshotKeepPerDevice:  envInt("SCREENSHOT_KEEP_PER_DEVICE", 20),
		ScreenshotMaxAgeDays:     envInt("SCREENSHOT_MAX_AGE_DAYS", 14),
		AuditRetentionDays:       envInt("AUDIT_RETENTION_DAYS", 90),
		HubURL:                   envString("HUB_URL", "http://localhost:9000"),
		DeviceToken:              envString("DEVICE_TOKEN", ""),
		ContentCacheDir:          envString("CONTENT_CACHE_DIR", "./data/cache"),
		DefaultRotationMs:        envInt("DEFAULT_ROTATION_MS", 15000),
	}

	if len(strings.TrimSpace(cfg.JWTSecret)) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	return cfg, nil
}

// LoadAgent reads the agent-side configuration. The agent never sees the JWT
// secret; it authenticates with a device token minted by the hub.
func LoadAgent() (Config, error) {
	cfg := Config{
		HubURL:            envString("HUB_URL", "http://localhost:9000"),
		DeviceToken:       envString("DEVICE_TOKEN", ""),
		ContentCacheDir:   envString("CONTENT_CACHE_DIR", "./data/cache"),
		DefaultRotationMs: envInt("DEFAULT_ROTATION_MS", 15000),
	}
	if strings.TrimSpace(cfg.DeviceToken) == "" {
		return Config{}, fmt.Errorf("DEVICE_TOKEN is required")
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

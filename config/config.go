// Package config loads licensekit settings from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the embedding application needs to wire up the
// session, cache and refresher.
type Config struct {
	// Identity endpoint
	IdentityBaseURL string

	// Entitlement verification: a pinned PEM file or a JWKS URL.
	EntitlementPublicKeyPath string
	EntitlementJWKSURL       string

	// Storage
	StorageDir      string
	KeychainService string
	RedisAddr       string
	RedisPass       string

	// Refresh coordination
	RefreshSchedule       string
	DailyInterval         time.Duration
	RefreshCooldown       time.Duration
	NearExpiryRefreshDays int
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		IdentityBaseURL: getEnv("LICENSEKIT_IDENTITY_URL", "https://api.example.com/auth"),

		EntitlementPublicKeyPath: getEnv("LICENSEKIT_ENTITLEMENT_PUBKEY_PATH", ""),
		EntitlementJWKSURL:       getEnv("LICENSEKIT_ENTITLEMENT_JWKS_URL", ""),

		StorageDir:      getEnv("LICENSEKIT_STORAGE_DIR", defaultStorageDir()),
		KeychainService: getEnv("LICENSEKIT_KEYCHAIN_SERVICE", "licensekit"),
		RedisAddr:       getEnv("LICENSEKIT_REDIS_ADDR", ""),
		RedisPass:       getEnv("LICENSEKIT_REDIS_PASS", ""),

		RefreshSchedule:       getEnv("LICENSEKIT_REFRESH_SCHEDULE", "@every 6h"),
		DailyInterval:         getEnvDuration("LICENSEKIT_DAILY_INTERVAL", 24*time.Hour),
		RefreshCooldown:       getEnvDuration("LICENSEKIT_REFRESH_COOLDOWN", 5*time.Minute),
		NearExpiryRefreshDays: getEnvInt("LICENSEKIT_NEAR_EXPIRY_DAYS", 2),
	}
}

func defaultStorageDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "licensekit")
	}
	return ".licensekit"
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

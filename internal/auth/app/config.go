package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Issuer   string // Issuer claim for access tokens, also keys opaque tokens
	Audience string // Audience claim for access tokens (default: issuer)

	SigningKey          string        // Required: shared HS256 secret
	AccessTokenValidity time.Duration // Access token lifetime (default: 10m)
	RefreshTokenTTL     time.Duration // Refresh token lifetime (default: 30 days)
	MFATokenTTL         time.Duration // Pending mfa token lifetime (default: 5m)

	AllowedRoles []string // Optional: restrict login to these roles (semicolon separated)
	ExtraClaims  []string // Optional: static "type=value" claims attached to every login (semicolon separated)

	SMSProvider      string // SMS channel (log, twilio) (default: log)
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	// Optional seed account created at startup if it does not exist yet.
	SeedEmail    string
	SeedPassword string
	SeedPhone    string
	SeedRoles    []string

	DatabaseFile         string        // Path to SQLite database file (default: ./gatehouse.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:   getEnvOrDefault("GATEHOUSE_ISSUER", "gatehouse"),
		Audience: os.Getenv("GATEHOUSE_AUDIENCE"),

		SigningKey:          os.Getenv("GATEHOUSE_SIGNING_KEY"),
		AccessTokenValidity: getEnvDurationOrDefault("GATEHOUSE_ACCESS_TOKEN_VALIDITY", 10*time.Minute),
		RefreshTokenTTL:     getEnvDurationOrDefault("GATEHOUSE_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		MFATokenTTL:         getEnvDurationOrDefault("GATEHOUSE_MFA_TOKEN_TTL", 5*time.Minute),

		AllowedRoles: splitList(os.Getenv("GATEHOUSE_ALLOWED_ROLES")),
		ExtraClaims:  splitList(os.Getenv("GATEHOUSE_EXTRA_CLAIMS")),

		SMSProvider:      getEnvOrDefault("GATEHOUSE_SMS_PROVIDER", "log"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM"),

		SeedEmail:    os.Getenv("GATEHOUSE_SEED_EMAIL"),
		SeedPassword: os.Getenv("GATEHOUSE_SEED_PASSWORD"),
		SeedPhone:    os.Getenv("GATEHOUSE_SEED_PHONE"),
		SeedRoles:    splitList(os.Getenv("GATEHOUSE_SEED_ROLES")),

		DatabaseFile:         getEnvOrDefault("GATEHOUSE_DATABASE_FILE", "gatehouse.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if cfg.Audience == "" {
		cfg.Audience = cfg.Issuer
	}

	return cfg
}

// splitList parses a semicolon-separated list, dropping empty entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

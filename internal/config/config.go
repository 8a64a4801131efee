package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/reserve"
)

const (
	defaultAppName          = "TimeLock"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultSignatureSkew    = 30 * time.Second
	defaultLockTTL          = 10 * time.Second
	defaultProgramID        = "HyhjkEEXwfRrjupW2Bq4ALpGPe2fEDTDuPKK2HVFFn6m"
	defaultWatchSchedule    = "@every 1m"
	defaultFaucetMaxAmount  = 10_000_000_000
	defaultFaucetRatePerMin = 5
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	RedisURL       string
	AutoMigrate    bool
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// Namespace scopes wallet address derivation to this deployment.
	Namespace identity.Namespace
	Rent      reserve.RentSchedule

	SignatureMaxSkew time.Duration
	LockTTL          time.Duration

	FaucetEnabled       bool
	FaucetMaxAmount     uint64
	FaucetRatePerMinute int

	ReleaseWatchSchedule string
}

// Load reads an optional .env file, then configuration values from the
// environment, and populates a Config instance.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:              getEnv("APP_NAME", defaultAppName),
		AppEnv:               getEnv("APP_ENV", defaultAppEnv),
		Port:                 getEnv("PORT", defaultPort),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:            strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		ReleaseWatchSchedule: getEnv("RELEASE_WATCH_SCHEDULE", defaultWatchSchedule),
		Rent:                 reserve.DefaultSchedule(),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.SignatureMaxSkew, err = durationEnv("", "SIGNATURE_MAX_SKEW", defaultSignatureSkew); err != nil {
		return Config{}, err
	}
	if cfg.LockTTL, err = durationEnv("", "LOCK_TTL", defaultLockTTL); err != nil {
		return Config{}, err
	}

	if cfg.Namespace, err = identity.ParseNamespace(getEnv("PROGRAM_ID", defaultProgramID)); err != nil {
		return Config{}, fmt.Errorf("invalid PROGRAM_ID: %w", err)
	}

	if v := os.Getenv("RENT_LAMPORTS_PER_BYTE_YEAR"); v != "" {
		rate, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RENT_LAMPORTS_PER_BYTE_YEAR: %w", err)
		}
		cfg.Rent.LamportsPerByteYear = rate
	}
	if v := os.Getenv("RENT_EXEMPTION_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil || threshold < 0 {
			return Config{}, fmt.Errorf("invalid RENT_EXEMPTION_THRESHOLD %q", v)
		}
		cfg.Rent.ExemptionThreshold = threshold
	}

	if cfg.AutoMigrate, err = boolEnv("AUTO_MIGRATE", true); err != nil {
		return Config{}, err
	}
	if cfg.FaucetEnabled, err = boolEnv("FAUCET_ENABLED", isDev(cfg.AppEnv)); err != nil {
		return Config{}, err
	}
	cfg.FaucetMaxAmount = defaultFaucetMaxAmount
	if v := os.Getenv("FAUCET_MAX_AMOUNT"); v != "" {
		if cfg.FaucetMaxAmount, err = strconv.ParseUint(v, 10, 64); err != nil {
			return Config{}, fmt.Errorf("invalid FAUCET_MAX_AMOUNT: %w", err)
		}
	}
	cfg.FaucetRatePerMinute = defaultFaucetRatePerMin
	if v := os.Getenv("FAUCET_RATE_PER_MINUTE"); v != "" {
		if cfg.FaucetRatePerMinute, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("invalid FAUCET_RATE_PER_MINUTE: %w", err)
		}
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	return isDev(c.AppEnv)
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads whole seconds from secondsKey, falling back to a Go
// duration string in durationKey.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

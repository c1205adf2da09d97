// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/edwds/mimy/internal/match"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis cache. Optional: an empty URL disables caching entirely.
	RedisURL        string `koanf:"redis_url"`
	CacheTTLSeconds int    `koanf:"cache_ttl_seconds"`

	// JWT Authentication
	JWTSecret string `koanf:"jwt_secret"`

	// CORS. Empty list disables CORS handling entirely.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// Match score tunables. These flow into a match.Params value at
	// wiring time; the estimator itself never reads the environment.
	MatchPower            float64 `koanf:"match_power"`
	MatchAlpha            float64 `koanf:"match_alpha"`
	MatchMinReviewers     int     `koanf:"match_min_reviewers"`
	MatchEligibilityFloor int     `koanf:"match_eligibility_floor"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL      = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret        = errors.New("JWT_SECRET is required")
	ErrInvalidPort             = errors.New("PORT must be a valid integer")
	ErrInvalidMatchPower       = errors.New("MATCH_POWER must be positive")
	ErrInvalidMatchAlpha       = errors.New("MATCH_ALPHA must be non-negative")
	ErrInvalidMinReviewers     = errors.New("MATCH_MIN_REVIEWERS must be at least 1")
	ErrInvalidEligibilityFloor = errors.New("MATCH_ELIGIBILITY_FLOOR must be at least 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultCacheTTLSeconds = 300
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Parse port from env, collecting error if invalid
	// Try MIMY_PORT first, then PORT for backward compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"MIMY_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	cacheTTL, ttlErr := getEnvIntOrDefault("CACHE_TTL_SECONDS", k.Int("cache_ttl_seconds"), DefaultCacheTTLSeconds)
	if ttlErr != nil {
		loadErrs = append(loadErrs, ttlErr)
	}

	power, powerErr := getEnvFloatOrDefault("MATCH_POWER", k.Float64("match_power"), match.DefaultPower)
	if powerErr != nil {
		loadErrs = append(loadErrs, powerErr)
	}

	alpha, alphaErr := getEnvFloatOrDefault("MATCH_ALPHA", k.Float64("match_alpha"), match.DefaultAlpha)
	if alphaErr != nil {
		loadErrs = append(loadErrs, alphaErr)
	}

	minReviewers, minErr := getEnvIntOrDefault("MATCH_MIN_REVIEWERS", k.Int("match_min_reviewers"), match.DefaultMinReviewers)
	if minErr != nil {
		loadErrs = append(loadErrs, minErr)
	}

	floor, floorErr := getEnvIntOrDefault("MATCH_ELIGIBILITY_FLOOR", k.Int("match_eligibility_floor"), match.DefaultEligibilityFloor)
	if floorErr != nil {
		loadErrs = append(loadErrs, floorErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                  port,
		Env:                   getEnvOrDefaultMulti([]string{"MIMY_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:           getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:              getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		CacheTTLSeconds:       cacheTTL,
		JWTSecret:             getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		AllowedOrigins:        getEnvListOrKoanf("ALLOWED_ORIGINS", k, "allowed_origins"),
		MatchPower:            power,
		MatchAlpha:            alpha,
		MatchMinReviewers:     minReviewers,
		MatchEligibilityFloor: floor,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// MatchParams builds the estimator parameter set from the configured tunables.
func (c *Config) MatchParams() match.Params {
	return match.Params{
		Power:            c.MatchPower,
		Alpha:            c.MatchAlpha,
		MinReviewers:     c.MatchMinReviewers,
		EligibilityFloor: c.MatchEligibilityFloor,
	}
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvListOrKoanf returns the environment variable split on commas if set,
// otherwise the koanf string slice.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer", envKey)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present
// and the match tunables are sane.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.MatchPower <= 0 {
		errs = append(errs, ErrInvalidMatchPower)
	}
	if c.MatchAlpha < 0 {
		errs = append(errs, ErrInvalidMatchAlpha)
	}
	if c.MatchMinReviewers < 1 {
		errs = append(errs, ErrInvalidMinReviewers)
	}
	if c.MatchEligibilityFloor < 1 {
		errs = append(errs, ErrInvalidEligibilityFloor)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                    fmt.Sprintf("%d", c.Port),
		"env":                     c.Env,
		"database_url":            maskDatabaseURL(c.DatabaseURL),
		"redis_url":               maskDatabaseURL(c.RedisURL),
		"cache_ttl_seconds":       fmt.Sprintf("%d", c.CacheTTLSeconds),
		"jwt_secret":              maskSecret(c.JWTSecret),
		"allowed_origins":         strings.Join(c.AllowedOrigins, ","),
		"match_power":             fmt.Sprintf("%g", c.MatchPower),
		"match_alpha":             fmt.Sprintf("%g", c.MatchAlpha),
		"match_min_reviewers":     fmt.Sprintf("%d", c.MatchMinReviewers),
		"match_eligibility_floor": fmt.Sprintf("%d", c.MatchEligibilityFloor),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Supports postgres://, postgresql:// and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}

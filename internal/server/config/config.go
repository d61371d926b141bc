// Package config handles configuration for the server component: defaults,
// an optional .env file, environment variables, a JSON overlay and
// command-line flags, applied in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// MinSecretLength is the shortest accepted signing or encryption secret.
const MinSecretLength = 32

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds runtime settings for the notekeeper server.
//
// The three secrets have no defaults: the process refuses to start until
// they are provided.
type Config struct {
	Environment string
	LogLevel    string

	EndpointAddrHTTP string
	EndpointAddrGRPC string

	DatabaseDSN    string
	DBMaxConns     int32
	DBPingTimeout  time.Duration
	MigrateOnStart bool

	AccessTokenSecret            string
	RefreshTokenSecret           string
	SessionSecret                string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	PasswordHashCost             int
	SessionCookieName            string

	RedisAddr       string
	RateLimit       int
	RateLimitWindow time.Duration

	ShutdownTimeout time.Duration
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Environment = EnvDevelopment
	c.LogLevel = "info"
	c.EndpointAddrHTTP = ":8080"
	c.EndpointAddrGRPC = ":50051"
	c.DBMaxConns = 10
	c.DBPingTimeout = 5 * time.Second
	c.MigrateOnStart = true
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	c.PasswordHashCost = 12
	c.SessionCookieName = common.SessionCookieName
	c.RateLimit = 20
	c.RateLimitWindow = time.Minute
	c.ShutdownTimeout = 10 * time.Second
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate reports every missing or malformed required setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	for _, s := range []struct {
		name  string
		value string
	}{
		{"access token secret", c.AccessTokenSecret},
		{"refresh token secret", c.RefreshTokenSecret},
		{"session secret", c.SessionSecret},
	} {
		if len(s.value) < MinSecretLength {
			errs = append(errs, fmt.Errorf("%s must be at least %d characters", s.name, MinSecretLength))
		}
	}
	if c.AccessTokenValidityDuration <= 0 || c.RefreshTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("token validity durations must be positive"))
	}
	if c.PasswordHashCost < bcrypt.MinCost || c.PasswordHashCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("password hash cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}

	return errors.Join(errs...)
}

// LoadConfig builds a Config by applying defaults, then the .env file and
// environment, then the optional JSON file and finally command-line flags.
// The result is validated.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	loadDotEnv(".env")
	parseEnv(cfg, os.LookupEnv)
	parseJson(cfg)
	parseFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

package config

import (
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvAppEnv             = "APP_ENV"
	EnvLogLevel           = "LOG_LEVEL"
	EnvHTTPAddr           = "HTTP_ADDR"
	EnvGRPCAddr           = "GRPC_ADDR"
	EnvDatabaseURI        = "DATABASE_URI"
	EnvAccessTokenSecret  = "ACCESS_TOKEN_SECRET"
	EnvRefreshTokenSecret = "REFRESH_TOKEN_SECRET"
	EnvSessionSecret      = "SESSION_SECRET"
	EnvAccessTokenTTL     = "ACCESS_TOKEN_TTL"
	EnvRefreshTokenTTL    = "REFRESH_TOKEN_TTL"
	EnvPasswordHashCost   = "PASSWORD_HASH_COST"
	EnvRedisAddr          = "REDIS_ADDR"
	EnvRateLimit          = "RATE_LIMIT"
)

// loadDotEnv copies variables from path into the process environment.
// Variables already set win; a missing file is ignored.
func loadDotEnv(path string) {
	_ = godotenv.Load(path)
}

// parseEnv overlays values from the environment. Unparsable numbers and
// durations are skipped so the previous layer's value stays in effect.
func parseEnv(config *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str(EnvAppEnv, &config.Environment)
	str(EnvLogLevel, &config.LogLevel)
	str(EnvHTTPAddr, &config.EndpointAddrHTTP)
	str(EnvGRPCAddr, &config.EndpointAddrGRPC)
	str(EnvDatabaseURI, &config.DatabaseDSN)
	str(EnvAccessTokenSecret, &config.AccessTokenSecret)
	str(EnvRefreshTokenSecret, &config.RefreshTokenSecret)
	str(EnvSessionSecret, &config.SessionSecret)
	dur(EnvAccessTokenTTL, &config.AccessTokenValidityDuration)
	dur(EnvRefreshTokenTTL, &config.RefreshTokenValidityDuration)
	num(EnvPasswordHashCost, &config.PasswordHashCost)
	str(EnvRedisAddr, &config.RedisAddr)
	num(EnvRateLimit, &config.RateLimit)
}

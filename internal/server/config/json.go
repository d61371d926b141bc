package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/flagx"
	"github.com/dmitrijs2005/notekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// strings such as "15m" and integer nanoseconds. Only fields present in the
// file override the previous layers.
type JsonConfig struct {
	Environment                  *string         `json:"environment"`
	LogLevel                     *string         `json:"log_level"`
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	DBMaxConns                   *int32          `json:"db_max_conns"`
	MigrateOnStart               *bool           `json:"migrate_on_start"`
	AccessTokenSecret            *string         `json:"access_token_secret"`
	RefreshTokenSecret           *string         `json:"refresh_token_secret"`
	SessionSecret                *string         `json:"session_secret"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	PasswordHashCost             *int            `json:"password_hash_cost"`
	SessionCookieName            *string         `json:"session_cookie_name"`
	RedisAddr                    *string         `json:"redis_addr"`
	RateLimit                    *int            `json:"rate_limit"`
	RateLimitWindow              *timex.Duration `json:"rate_limit_window"`
	ShutdownTimeout              *timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads the file named by -c/-config (or $NOTEKEEPER_CONFIG) into
// config. No path means nothing to load. An unreadable file or invalid JSON
// panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setStr := func(src *string, dst *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDur := func(src *timex.Duration, dst *time.Duration) {
		if src != nil {
			*dst = src.Duration
		}
	}

	setStr(c.Environment, &config.Environment)
	setStr(c.LogLevel, &config.LogLevel)
	setStr(c.EndpointAddrHTTP, &config.EndpointAddrHTTP)
	setStr(c.EndpointAddrGRPC, &config.EndpointAddrGRPC)
	setStr(c.DatabaseDSN, &config.DatabaseDSN)
	if c.DBMaxConns != nil {
		config.DBMaxConns = *c.DBMaxConns
	}
	if c.MigrateOnStart != nil {
		config.MigrateOnStart = *c.MigrateOnStart
	}
	setStr(c.AccessTokenSecret, &config.AccessTokenSecret)
	setStr(c.RefreshTokenSecret, &config.RefreshTokenSecret)
	setStr(c.SessionSecret, &config.SessionSecret)
	setDur(c.AccessTokenValidityDuration, &config.AccessTokenValidityDuration)
	setDur(c.RefreshTokenValidityDuration, &config.RefreshTokenValidityDuration)
	if c.PasswordHashCost != nil {
		config.PasswordHashCost = *c.PasswordHashCost
	}
	setStr(c.SessionCookieName, &config.SessionCookieName)
	setStr(c.RedisAddr, &config.RedisAddr)
	if c.RateLimit != nil {
		config.RateLimit = *c.RateLimit
	}
	setDur(c.RateLimitWindow, &config.RateLimitWindow)
	setDur(c.ShutdownTimeout, &config.ShutdownTimeout)
}

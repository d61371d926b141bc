// Package config loads settings for the notekeeper CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/flagx"
)

// Config holds runtime settings for the notekeeper CLI.
//
// Fields:
//   - ServerURL: base URL of the notekeeper HTTP API.
//   - SessionFile: where the signed-in token pair is kept (mode 0600).
//   - RequestTimeout: per-request HTTP timeout.
type Config struct {
	ServerURL      string
	SessionFile    string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.SessionFile = defaultSessionFile()
	c.RequestTimeout = 10 * time.Second
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "notekeeper", "session.json")
}

// LoadConfig applies defaults, then environment variables, then the JSON
// file named by -c/-config or NOTEKEEPER_CONFIG. Command-line flags are
// bound later by the cobra root command and take precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg, os.LookupEnv)
	if err := parseJson(cfg, flagx.ConfigPath(os.Args[1:])); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	return cfg, nil
}

package config

import "time"

// Config holds runtime settings for the folio admin CLI.
//
// Fields:
//   - ServerURL: base URL of the folio HTTP API.
//   - LocalDBPath: sqlite file remembering the refresh token between runs.
//   - RequestTimeout: per-request timeout of the API client.
type Config struct {
	ServerURL      string
	LocalDBPath    string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.LocalDBPath = "folio-cli.db"
	c.RequestTimeout = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

package config

import "time"

// Config holds runtime settings for the linkkeeper CLI.
//
// RequestTimeout bounds a whole API call including retries. It should stay
// above the server's external timeout, otherwise code requests are cut short
// while the server is still talking to the messaging network.
type Config struct {
	ServerURL      string
	StatePath      string
	RequestTimeout time.Duration
	MaxRetries     int

	// OnlineCheckInterval is how often the server health route is polled.
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000"
	c.StatePath = "linkkeeper.db"
	c.RequestTimeout = 45 * time.Second
	c.MaxRetries = 2
	c.OnlineCheckInterval = 5 * time.Second
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

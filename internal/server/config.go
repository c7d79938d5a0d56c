package server

import "fmt"

// Config holds the server configuration read from the "server" section.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// ReadOnly rejects every request that is not GET, HEAD or OPTIONS.
	ReadOnly bool `mapstructure:"read_only"`
	// RateLimit is the per-client request rate. Zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// DefaultConfig returns the listen defaults.
func DefaultConfig() Config {
	return Config{
		Host:      "127.0.0.1",
		Port:      8480,
		RateLimit: 100,
		RateBurst: 200,
	}
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

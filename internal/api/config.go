package api

import "time"

// Config holds server configuration.
type Config struct {
	Addr                string        // Listen address, e.g. ":8080"
	CheckInvariants     bool          // Validate every new graph and report violations
	DiffCacheTTL        time.Duration // Lifetime of cached diffs (0 = never expire)
	AllowedOrigins      []string      // WebSocket origins (empty = same host only)
	OrderChangingLabels []string      // Labels that mark deliberate word order changes
	MaxMessageRate      int           // WebSocket messages per second per client
	MaxMessageSize      int64         // WebSocket message size limit in bytes
}

// DefaultConfig returns the configuration used when flags are omitted.
func DefaultConfig() Config {
	return Config{
		Addr:                ":8080",
		DiffCacheTTL:        5 * time.Minute,
		OrderChangingLabels: []string{"WO"},
		MaxMessageRate:      20,
		MaxMessageSize:      64 << 10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.MaxMessageRate <= 0 {
		c.MaxMessageRate = d.MaxMessageRate
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

package session

import (
	"time"

	"github.com/danmuck/deltaxpc/internal/protocol/frame"
)

// Config defines channel establishment and transport defaults.
type Config struct {
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Limits           frame.Limits
}

// DefaultConfig returns the worker's establishment defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     15 * time.Second,
		Limits:           frame.DefaultLimits(),
	}
}

// WithDefaults fills any zero field from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	c.Limits = c.Limits.WithDefaults()
	return c
}

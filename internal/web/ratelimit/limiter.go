// Package ratelimit counts attempts per key over a sliding window. The login
// form uses it to slow down password guessing.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Limiter records an attempt for key and reports whether it is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	// Reset forgets the attempts of key, e.g. after a successful login
	Reset(ctx context.Context, key string) error
}

// Result describes the window after an attempt
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long until the next attempt is allowed; zero when Allowed
	RetryAfter time.Duration
}

// Config bounds attempts to Limit per Window
type Config struct {
	Limit  int
	Window time.Duration
	// Prefix namespaces keys in shared stores
	Prefix string
}

// DefaultConfig allows 10 attempts per 15 minutes
func DefaultConfig() Config {
	return Config{Limit: 10, Window: 15 * time.Minute, Prefix: "ratelimit:"}
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return errors.New("limit must be greater than 0")
	}
	if c.Window <= 0 {
		return errors.New("window must be greater than 0")
	}
	return nil
}

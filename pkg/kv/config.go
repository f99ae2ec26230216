// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"time"
)

// Config configures the ephemeral store connection.
type Config struct {
	// URL is the store connection string, e.g. "redis://:secret@cache:6379/0".
	// Required: there is no useful default.
	URL string `mapstructure:"redis_url"`

	// Namespace prefixes every key. Used for isolated test runs; empty in production.
	Namespace string `mapstructure:"key_namespace"`

	// DialTimeout bounds a single connection attempt (default: 5s).
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// ReadTimeout and WriteTimeout bound single commands (default: 3s).
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// MaxRetries is how many times a failed command is retried before the
	// error is surfaced (default: 3).
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff and MaxRetryBackoff cap the exponential retry backoff
	// (defaults: 8ms, 512ms).
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`

	// PoolSize is the maximum number of pooled connections (default: 10).
	PoolSize int `mapstructure:"pool_size"`

	// ConnectAttempts is the number of pings Connect makes before giving up
	// (default: 3).
	ConnectAttempts int `mapstructure:"connect_attempts"`
}

// DefaultConfig returns a Config with default values and no URL.
func DefaultConfig() Config {
	return Config{
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		PoolSize:        10,
		ConnectAttempts: 3,
	}
}

// Validate checks the config for invalid values and applies defaults.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	d := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.MinRetryBackoff <= 0 {
		c.MinRetryBackoff = d.MinRetryBackoff
	}
	if c.MaxRetryBackoff < c.MinRetryBackoff {
		c.MaxRetryBackoff = c.MinRetryBackoff
	}
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = d.ConnectAttempts
	}
	return nil
}

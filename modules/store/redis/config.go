package redis

import (
	"fmt"
	"time"
)

const defaultKeyPrefix = "threadline:msg:"

// Config holds the Redis message store configuration.
type Config struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// KeyPrefix is prepended to every message ID. Defaults to "threadline:msg:".
	KeyPrefix string `yaml:"key_prefix"`

	// TTL expires stored messages. Empty or "0" keeps them forever.
	TTL string `yaml:"ttl"`

	DialTimeout string `yaml:"dial_timeout"`
	PoolSize    int    `yaml:"pool_size"`
	MaxRetries  int    `yaml:"max_retries"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "10s"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// parsedTTL returns the TTL as a time.Duration. Assumes validate passed.
func (c *Config) parsedTTL() time.Duration {
	if c.TTL == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.TTL)
	return d
}

func (c *Config) parsedDialTimeout() time.Duration {
	d, err := time.ParseDuration(c.DialTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

func (c *Config) validate() error {
	if c.TTL != "" {
		d, err := time.ParseDuration(c.TTL)
		if err != nil {
			return fmt.Errorf("redis: invalid ttl %q: %w", c.TTL, err)
		}
		if d < 0 {
			return fmt.Errorf("redis: ttl must be non-negative, got %s", c.TTL)
		}
	}
	if _, err := time.ParseDuration(c.DialTimeout); err != nil {
		return fmt.Errorf("redis: invalid dial_timeout %q: %w", c.DialTimeout, err)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("redis: pool_size must be non-negative, got %d", c.PoolSize)
	}
	return nil
}

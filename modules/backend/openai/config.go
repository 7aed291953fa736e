package openai

import (
	"fmt"
	"time"
)

// Config holds the configuration for the OpenAI completions backend module.
type Config struct {
	APIKey       string `yaml:"api_key"`
	Organization string `yaml:"organization"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	// ReverseProxyURL, when set, replaces the full completions endpoint URL.
	ReverseProxyURL string `yaml:"reverse_proxy_url"`
	Timeout         string `yaml:"timeout"`
}

// DefaultModel is used when neither the config nor the request names a model.
const DefaultModel = "text-davinci-003"

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout == "" {
		c.Timeout = "60s"
	}
}

// completionsURL returns the endpoint completion requests are posted to.
func (c *Config) completionsURL() string {
	if c.ReverseProxyURL != "" {
		return c.ReverseProxyURL
	}
	return c.BaseURL + "/completions"
}

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated by validateTimeout.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// validateTimeout checks that the timeout string is a valid Go duration.
func (c *Config) validateTimeout() error {
	_, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("backend.openai: invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}

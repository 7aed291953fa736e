// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for threadline.
package config

import "gopkg.in/yaml.v3"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Session configures the conversation orchestrator.
	Session SessionConfig `yaml:"session"`

	// Telemetry configures tracing export.
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "backend.openai").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// SessionConfig holds the orchestrator settings. Zero values take the
// defaults documented on each field.
type SessionConfig struct {
	// Backend is the module ID of the completion backend. Required.
	Backend string `yaml:"backend"`

	// Store is the module ID of the message store. Empty selects the
	// in-memory LRU store.
	Store string `yaml:"store,omitempty"`

	// CacheSize bounds the in-memory store. Defaults to 10000.
	CacheSize int `yaml:"cache_size,omitempty"`

	MaxModelTokens    int `yaml:"max_model_tokens,omitempty"`    // default 4096
	MaxResponseTokens int `yaml:"max_response_tokens,omitempty"` // default 1000

	UserLabel      string `yaml:"user_label,omitempty"`      // default "User"
	AssistantLabel string `yaml:"assistant_label,omitempty"` // default "ChatGPT"
	EndToken       string `yaml:"end_token,omitempty"`       // default "<|endoftext|>"
	SepToken       string `yaml:"sep_token,omitempty"`       // default end_token
	PromptPrefix   string `yaml:"prompt_prefix,omitempty"`
	PromptSuffix   string `yaml:"prompt_suffix,omitempty"`

	Model            string   `yaml:"model,omitempty"`
	Temperature      *float64 `yaml:"temperature,omitempty"`
	TopP             *float64 `yaml:"top_p,omitempty"`
	PresencePenalty  *float64 `yaml:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `yaml:"frequency_penalty,omitempty"`
	Stop             []string `yaml:"stop,omitempty"`
	User             string   `yaml:"user,omitempty"`

	// Timeout bounds each call as a Go duration. Empty means no deadline.
	Timeout string `yaml:"timeout,omitempty"`

	// Debug logs assembled windows at Info level.
	Debug bool `yaml:"debug,omitempty"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	// OTLPEndpoint enables OTLP/HTTP trace export when set (host:port).
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure,omitempty"`

	// ServiceName is reported as service.name. Defaults to "threadline".
	ServiceName string `yaml:"service_name,omitempty"`

	// SampleRatio is the fraction of calls traced. Defaults to 1.
	SampleRatio *float64 `yaml:"sample_ratio,omitempty"`
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/threadline/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, checks that all referenced module IDs
// exist in the registry, and that the session points at configured
// backend and store modules with coherent token limits.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateSession(cfg)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	return errors.Join(errs...)
}

func validateSession(cfg *Config) []error {
	var errs []error
	s := &cfg.Session

	switch {
	case s.Backend == "":
		errs = append(errs, errors.New("config: session.backend is required"))
	case !core.InNamespace(s.Backend, "backend"):
		errs = append(errs, fmt.Errorf("config: session.backend %q is not a backend module", s.Backend))
	default:
		if _, ok := cfg.Modules[s.Backend]; !ok {
			errs = append(errs, fmt.Errorf("config: session.backend %q has no entry under modules", s.Backend))
		}
	}

	if s.Store != "" {
		if !core.InNamespace(s.Store, "store") {
			errs = append(errs, fmt.Errorf("config: session.store %q is not a store module", s.Store))
		} else if _, ok := cfg.Modules[s.Store]; !ok {
			errs = append(errs, fmt.Errorf("config: session.store %q has no entry under modules", s.Store))
		}
	}

	if s.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("config: session.cache_size must be non-negative, got %d", s.CacheSize))
	}
	if s.MaxModelTokens < 0 || s.MaxResponseTokens < 0 {
		errs = append(errs, errors.New("config: session token limits must be non-negative"))
	}
	if s.MaxModelTokens > 0 && s.MaxResponseTokens > 0 && s.MaxResponseTokens >= s.MaxModelTokens {
		errs = append(errs, fmt.Errorf("config: session.max_response_tokens (%d) must be less than max_model_tokens (%d)",
			s.MaxResponseTokens, s.MaxModelTokens))
	}

	if s.Timeout != "" {
		if d, err := time.ParseDuration(s.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("config: session.timeout: %w", err))
		} else if d < 0 {
			errs = append(errs, fmt.Errorf("config: session.timeout must be non-negative, got %s", s.Timeout))
		}
	}

	return errs
}

func validateTelemetry(t *TelemetryConfig) []error {
	if t.SampleRatio != nil && (*t.SampleRatio < 0 || *t.SampleRatio > 1) {
		return []error{fmt.Errorf("config: telemetry.sample_ratio must be within [0, 1], got %v", *t.SampleRatio)}
	}
	return nil
}

// ParsedTimeout returns session.timeout as a duration. Assumes Validate
// passed; an empty value yields zero.
func (s *SessionConfig) ParsedTimeout() time.Duration {
	if s.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(s.Timeout)
	return d
}

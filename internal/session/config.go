package session

import (
	"fmt"
	"time"

	"github.com/flemzord/threadline/internal/backend"
	ctxengine "github.com/flemzord/threadline/internal/context"
)

// Default sampling parameters.
const (
	DefaultTemperature     = 0.8
	DefaultTopP            = 1.0
	DefaultPresencePenalty = 1.0
)

// Config holds the orchestrator settings.
type Config struct {
	// Window controls prompt formatting and the token budget.
	Window ctxengine.WindowConfig

	// Params are sent with every completion request. Stop defaults to the
	// window's end and separator tokens.
	Params backend.Params

	// Timeout bounds each SendMessage call when the call itself sets none.
	// Zero means no deadline.
	Timeout time.Duration

	// Debug logs every assembled window at Info instead of Debug.
	Debug bool
}

// DefaultParams returns the default sampling parameters.
func DefaultParams() backend.Params {
	return backend.Params{
		Temperature:     ptr(DefaultTemperature),
		TopP:            ptr(DefaultTopP),
		PresencePenalty: ptr(DefaultPresencePenalty),
	}
}

// withDefaults fills unset parameters.
func (c Config) withDefaults() Config {
	c.Window = c.Window.WithDefaults()

	def := DefaultParams()
	if c.Params.Temperature == nil {
		c.Params.Temperature = def.Temperature
	}
	if c.Params.TopP == nil {
		c.Params.TopP = def.TopP
	}
	if c.Params.PresencePenalty == nil {
		c.Params.PresencePenalty = def.PresencePenalty
	}
	if len(c.Params.Stop) == 0 {
		c.Params.Stop = c.Window.StopSequences()
	}
	return c
}

func (c Config) validate() error {
	if err := c.Window.Validate(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("session: timeout must be non-negative, got %s", c.Timeout)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

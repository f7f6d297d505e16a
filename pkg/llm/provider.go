// Package llm is the boundary to the reasoning engine: chat messages in,
// text or tool calls out.
package llm

import (
	"context"
	"errors"
	"time"
)

// Provider completes a conversation, optionally offering tools the model
// may call instead of answering.
type Provider interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// Validate reports the first missing setting a provider cannot work without.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("llm: base URL is required")
	case c.Model == "":
		return errors.New("llm: model is required")
	case c.MaxTokens < 0:
		return errors.New("llm: max tokens must not be negative")
	case c.Timeout < 0:
		return errors.New("llm: timeout must not be negative")
	}
	return nil
}

package llm

import (
	"context"
	"fmt"

	"linkloom/internal/config"
)

// NewProvider builds the configured provider wrapped with retries.
// It returns ErrDisabled for provider "none" so callers can run without a
// model.
func NewProvider(ctx context.Context, cfg config.LLMConfig, creds config.CredentialsConfig) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "", "gemini":
		p, err = NewGeminiProvider(ctx, creds.GeminiKey, cfg.Model)
	case "openai":
		p, err = NewOpenAIProvider(creds.OpenAIKey, cfg.Model, cfg.BaseURL)
	case "anthropic":
		p, err = NewAnthropicProvider(creds.AnthropicKey, cfg.Model)
	case "mock":
		return NewMockProvider(), nil
	case "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	rc := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	rc.CallTimeout = cfg.Timeout
	return WithRetry(p, rc), nil
}

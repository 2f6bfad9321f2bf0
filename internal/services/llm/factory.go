package llm

import (
	"context"
	"fmt"

	"article-analyzer/internal/config"
)

// New builds the provider client selected by cfg.Provider. It returns
// ErrMissingCredential when the provider's API key is empty.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		c, err := NewOpenAIClient(OpenAIOptions{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			MaxRetries: cfg.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderGemini:
		c, err := NewGeminiClient(ctx, GeminiOptions{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

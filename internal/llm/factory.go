package llm

import (
	"fmt"

	"github.com/computor-org/computor-agent-sub000/internal/config"
	"github.com/computor-org/computor-agent-sub000/internal/logging"
)

// NewFromConfig constructs the provider client selected by configuration.
func NewFromConfig(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai", "":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		oc.Timeout = cfg.TimeoutDuration()
		logging.Boot("LLM provider: openai-compatible (model=%s, base_url=%s)", oc.Model, oc.BaseURL)
		return NewOpenAIClientWithConfig(oc), nil

	case "anthropic":
		ac := DefaultAnthropicConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			ac.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			ac.Model = cfg.Model
		}
		ac.Timeout = cfg.TimeoutDuration()
		logging.Boot("LLM provider: anthropic (model=%s)", ac.Model)
		return NewAnthropicClientWithConfig(ac), nil

	case "gemini":
		client, err := NewGeminiClient(cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		logging.Boot("LLM provider: gemini (model=%s)", client.GetModel())
		return client, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}

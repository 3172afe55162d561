package config

import "time"

// LLMConfig configures the LLM completion transport.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`  // Default completion budget
	Temperature float64 `yaml:"temperature"` // Default temperature
}

// TimeoutDuration parses the transport timeout, falling back to 120s.
func (l LLMConfig) TimeoutDuration() time.Duration {
	return parseDuration(l.Timeout, 120*time.Second)
}

package llm

import (
	"testing"

	"github.com/computor-org/computor-agent-sub000/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		provider string
		wantErr  bool
	}{
		{"openai", false},
		{"", false}, // Empty defaults to openai-compatible
		{"anthropic", false},
		{"mistral-cloud", true},
	}
	for _, tt := range tests {
		t.Run("provider "+tt.provider, func(t *testing.T) {
			_, err := NewFromConfig(config.LLMConfig{
				Provider: tt.provider,
				APIKey:   "k",
				Model:    "m",
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFromConfig(%q) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
			}
		})
	}
}

func TestNewFromConfig_AppliesOverrides(t *testing.T) {
	client, err := NewFromConfig(config.LLMConfig{
		Provider: "openai",
		APIKey:   "k",
		Model:    "custom-model",
		BaseURL:  "http://localhost:8080/v1",
	})
	if err != nil {
		t.Fatal(err)
	}
	oc, ok := client.(*OpenAIClient)
	if !ok {
		t.Fatalf("expected *OpenAIClient, got %T", client)
	}
	if oc.GetModel() != "custom-model" {
		t.Fatalf("model = %q", oc.GetModel())
	}
}

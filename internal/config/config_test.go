package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if len(cfg.Strategies) != 7 {
		t.Fatalf("expected 7 default strategies, got %d", len(cfg.Strategies))
	}
	if cfg.Scheduler.PollIntervalDuration() != 60*time.Second {
		t.Fatalf("default poll interval = %v", cfg.Scheduler.PollIntervalDuration())
	}
	if cfg.Scheduler.CooldownDuration() != 120*time.Second {
		t.Fatalf("default cooldown = %v", cfg.Scheduler.CooldownDuration())
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing config file is not an error: %v", err)
	}
	if cfg.Name != DefaultConfig().Name {
		t.Fatalf("expected defaults, got name %q", cfg.Name)
	}
}

func TestLoadSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutor.yaml")

	cfg := DefaultConfig()
	cfg.Persona.Language = "German"
	cfg.Scheduler.PollInterval = "30s"
	cfg.Security.RequireConfirmation = false
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Persona.Language != "German" {
		t.Fatalf("Language = %q", loaded.Persona.Language)
	}
	if loaded.Scheduler.PollIntervalDuration() != 30*time.Second {
		t.Fatalf("PollInterval = %v", loaded.Scheduler.PollIntervalDuration())
	}
	if loaded.Security.RequireConfirmation {
		t.Fatal("RequireConfirmation must roundtrip as false")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TUTOR_LLM_API_KEY", "key-from-env")
	t.Setenv("TUTOR_LLM_PROVIDER", "anthropic")
	t.Setenv("TUTOR_PLATFORM_URL", "https://platform.example")
	t.Setenv("TUTOR_DEBUG", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "key-from-env" {
		t.Fatalf("APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Fatalf("Provider = %q", cfg.LLM.Provider)
	}
	if cfg.Platform.BaseURL != "https://platform.example" {
		t.Fatalf("BaseURL = %q", cfg.Platform.BaseURL)
	}
	if !cfg.Logging.DebugMode {
		t.Fatal("TUTOR_DEBUG must enable debug mode")
	}
}

func TestEnvOverrides_ExplicitKeyWins(t *testing.T) {
	t.Setenv("TUTOR_LLM_API_KEY", "explicit")
	t.Setenv("OPENAI_API_KEY", "provider-specific")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "explicit" {
		t.Fatalf("TUTOR_LLM_API_KEY must win, got %q", cfg.LLM.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing platform url", func(c *Config) { c.Platform.BaseURL = "" }},
		{"missing provider", func(c *Config) { c.LLM.Provider = "" }},
		{"zero concurrency", func(c *Config) { c.Scheduler.MaxConcurrentProcessing = 0 }},
		{"zero code lines", func(c *Config) { c.Context.MaxCodeLines = 0 }},
		{"bad strategy tokens", func(c *Config) { c.Strategies["other"] = StrategyConfig{Enabled: true} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestStrategyFor_Fallback(t *testing.T) {
	cfg := DefaultConfig()

	sc := cfg.StrategyFor("help_debug")
	if sc.MaxResponseTokens != 1500 {
		t.Fatalf("help_debug tokens = %d", sc.MaxResponseTokens)
	}

	// Unknown intent falls back to "other"
	sc = cfg.StrategyFor("nonsense")
	if sc != cfg.Strategies["other"] {
		t.Fatalf("unknown intent must use the other strategy settings, got %+v", sc)
	}

	// Without an "other" entry a permissive default applies
	delete(cfg.Strategies, "nonsense")
	delete(cfg.Strategies, "other")
	sc = cfg.StrategyFor("nonsense")
	if !sc.Enabled || sc.MaxResponseTokens <= 0 {
		t.Fatalf("fallback default must be usable: %+v", sc)
	}
}

func TestLoad_PartialYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	content := "persona:\n  language: French\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Persona.Language != "French" {
		t.Fatalf("Language = %q", cfg.Persona.Language)
	}
	// Untouched sections keep their defaults
	if cfg.Scheduler.MaxConcurrentProcessing != 3 {
		t.Fatalf("MaxConcurrentProcessing = %d", cfg.Scheduler.MaxConcurrentProcessing)
	}
}

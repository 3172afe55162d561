// Package config loads tutor agent configuration from YAML with
// environment-variable overrides for secrets and deployment settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tutor agent configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Working directory for logs, state database and threat log
	WorkDir string `yaml:"work_dir"`

	// LLM transport
	LLM LLMConfig `yaml:"llm"`

	// Course platform API
	Platform PlatformConfig `yaml:"platform"`

	// Security gate
	Security SecurityConfig `yaml:"security"`

	// Context building
	Context ContextConfig `yaml:"context"`

	// Polling scheduler
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Grading behavior
	Grading GradingConfig `yaml:"grading"`

	// Per-intent strategy settings, keyed by intent name
	Strategies map[string]StrategyConfig `yaml:"strategies"`

	// Tutor persona injected into strategy prompts
	Persona PersonaConfig `yaml:"persona"`

	// Student notes store
	Notes NotesConfig `yaml:"notes"`

	// Scheduler state persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PlatformConfig configures the course platform API client.
type PlatformConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Timeout string `yaml:"timeout"`

	// Optional filters for the scheduler's submission-group listing
	CourseIDs  []string `yaml:"course_ids"`
	ContentIDs []string `yaml:"content_ids"`
}

// SecurityConfig configures the two-phase security gate.
type SecurityConfig struct {
	Enabled             bool   `yaml:"enabled"`
	RequireConfirmation bool   `yaml:"require_confirmation"`
	BlockOnThreat       bool   `yaml:"block_on_threat"`
	CheckMessages       bool   `yaml:"check_messages"`
	CheckCode           bool   `yaml:"check_code"`
	ThreatLogPath       string `yaml:"threat_log_path"`
	MaxCodeChars        int    `yaml:"max_code_chars"` // Size bound for the code rendering sent to detection
}

// ContextConfig configures context building limits.
type ContextConfig struct {
	IncludePreviousMessages     int  `yaml:"include_previous_messages"`
	IncludeCourseMemberComments bool `yaml:"include_course_member_comments"`
	IncludeReferenceSolution    bool `yaml:"include_reference_solution"`
	MaxCodeLines                int  `yaml:"max_code_lines"`
	MaxCodeFiles                int  `yaml:"max_code_files"`
}

// SchedulerConfig configures the polling scheduler.
type SchedulerConfig struct {
	PollInterval            string `yaml:"poll_interval"`
	MaxConcurrentProcessing int    `yaml:"max_concurrent_processing"`
	Cooldown                string `yaml:"cooldown"`
	CheckMessages           bool   `yaml:"check_messages"`
	CheckSubmissions        bool   `yaml:"check_submissions"`
}

// PollIntervalDuration parses the poll interval, falling back to 60s.
func (s SchedulerConfig) PollIntervalDuration() time.Duration {
	return parseDuration(s.PollInterval, 60*time.Second)
}

// CooldownDuration parses the cooldown, falling back to 120s.
func (s SchedulerConfig) CooldownDuration() time.Duration {
	return parseDuration(s.Cooldown, 120*time.Second)
}

// GradingConfig configures grade extraction and submission.
type GradingConfig struct {
	Enabled         bool `yaml:"enabled"`
	AutoSubmitGrade bool `yaml:"auto_submit_grade"`
	DefaultStatus   int  `yaml:"default_status"`
}

// StrategyConfig holds per-intent strategy settings.
type StrategyConfig struct {
	Enabled           bool    `yaml:"enabled"`
	MaxResponseTokens int     `yaml:"max_response_tokens"`
	Temperature       float64 `yaml:"temperature"`
}

// PersonaConfig shapes the tutor's voice in prompts.
type PersonaConfig struct {
	Personality string `yaml:"personality"`
	Language    string `yaml:"language"`
}

// NotesConfig configures the student notes store.
type NotesConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// StoreConfig configures scheduler state persistence.
type StoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the categorized logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "computor-tutor-agent",
		Version: "1.0.0",
		WorkDir: ".tutor",

		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     "120s",
			MaxTokens:   4096,
			Temperature: 0.3,
		},

		Platform: PlatformConfig{
			BaseURL: "http://localhost:8000",
			Timeout: "30s",
		},

		Security: SecurityConfig{
			Enabled:             true,
			RequireConfirmation: true,
			BlockOnThreat:       true,
			CheckMessages:       true,
			CheckCode:           true,
			MaxCodeChars:        20000,
		},

		Context: ContextConfig{
			IncludePreviousMessages:     3,
			IncludeCourseMemberComments: true,
			IncludeReferenceSolution:    false,
			MaxCodeLines:                2000,
			MaxCodeFiles:                30,
		},

		Scheduler: SchedulerConfig{
			PollInterval:            "60s",
			MaxConcurrentProcessing: 3,
			Cooldown:                "120s",
			CheckMessages:           true,
			CheckSubmissions:        true,
		},

		Grading: GradingConfig{
			Enabled:         true,
			AutoSubmitGrade: false,
			DefaultStatus:   0,
		},

		Strategies: DefaultStrategyConfigs(),

		Persona: PersonaConfig{
			Personality: "patient, encouraging, and precise",
			Language:    "English",
		},

		Notes: NotesConfig{
			Enabled:   true,
			Directory: "notes",
		},

		Store: StoreConfig{
			Enabled:      true,
			DatabasePath: "state/tutor.db",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultStrategyConfigs returns the default per-intent strategy settings.
func DefaultStrategyConfigs() map[string]StrategyConfig {
	return map[string]StrategyConfig{
		"question_example":  {Enabled: true, MaxResponseTokens: 1200, Temperature: 0.5},
		"question_howto":    {Enabled: true, MaxResponseTokens: 1200, Temperature: 0.5},
		"help_debug":        {Enabled: true, MaxResponseTokens: 1500, Temperature: 0.3},
		"help_review":       {Enabled: true, MaxResponseTokens: 1500, Temperature: 0.3},
		"submission_review": {Enabled: true, MaxResponseTokens: 2000, Temperature: 0.2},
		"clarification":     {Enabled: true, MaxResponseTokens: 800, Temperature: 0.4},
		"other":             {Enabled: true, MaxResponseTokens: 800, Temperature: 0.4},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields defaults; environment overrides always apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
// Secrets should come from the environment, never the YAML file.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("TUTOR_LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}

	if provider := os.Getenv("TUTOR_LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if model := os.Getenv("TUTOR_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if url := os.Getenv("TUTOR_LLM_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}

	if url := os.Getenv("TUTOR_PLATFORM_URL"); url != "" {
		c.Platform.BaseURL = url
	}
	if token := os.Getenv("TUTOR_PLATFORM_TOKEN"); token != "" {
		c.Platform.Token = token
	}

	if dir := os.Getenv("TUTOR_WORK_DIR"); dir != "" {
		c.WorkDir = dir
	}
	if db := os.Getenv("TUTOR_STATE_DB"); db != "" {
		c.Store.DatabasePath = db
	}

	if debug := os.Getenv("TUTOR_DEBUG"); debug != "" {
		if v, err := strconv.ParseBool(debug); err == nil {
			c.Logging.DebugMode = v
		}
	}
}

// Validate checks the configuration for fatal misconfiguration.
func (c *Config) Validate() error {
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if c.Scheduler.MaxConcurrentProcessing <= 0 {
		return fmt.Errorf("scheduler.max_concurrent_processing must be positive (got %d)",
			c.Scheduler.MaxConcurrentProcessing)
	}
	if c.Context.MaxCodeLines <= 0 || c.Context.MaxCodeFiles <= 0 {
		return fmt.Errorf("context code limits must be positive")
	}
	for name, sc := range c.Strategies {
		if sc.MaxResponseTokens <= 0 {
			return fmt.Errorf("strategy %q: max_response_tokens must be positive", name)
		}
	}
	return nil
}

// StrategyFor returns the settings for an intent name, falling back to
// the "other" strategy, then to a permissive default.
func (c *Config) StrategyFor(intent string) StrategyConfig {
	if sc, ok := c.Strategies[intent]; ok {
		return sc
	}
	if sc, ok := c.Strategies["other"]; ok {
		return sc
	}
	return StrategyConfig{Enabled: true, MaxResponseTokens: 800, Temperature: 0.4}
}

// parseDuration parses a duration string with a fallback default.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

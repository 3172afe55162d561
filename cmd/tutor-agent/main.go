package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/computor-org/computor-agent-sub000/internal/agent"
	"github.com/computor-org/computor-agent-sub000/internal/config"
	"github.com/computor-org/computor-agent-sub000/internal/intent"
	"github.com/computor-org/computor-agent-sub000/internal/llm"
	"github.com/computor-org/computor-agent-sub000/internal/logging"
	"github.com/computor-org/computor-agent-sub000/internal/notes"
	"github.com/computor-org/computor-agent-sub000/internal/platform"
	"github.com/computor-org/computor-agent-sub000/internal/scheduler"
	"github.com/computor-org/computor-agent-sub000/internal/security"
	"github.com/computor-org/computor-agent-sub000/internal/store"
	"github.com/computor-org/computor-agent-sub000/internal/strategy"
	"github.com/computor-org/computor-agent-sub000/internal/trigger"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// CLI-level logger; the pipeline logs through internal/logging
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tutor-agent",
	Short: "AI tutoring agent for the computor course platform",
	Long: `tutor-agent watches course conversations and submissions, decides when
a tutor response is owed, and generates it with an LLM: classified by
student intent, screened by a two-phase security gate, and grounded in
the assignment and the student's own code.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Secrets come from the environment; .env is a convenience for
		// local runs and absent in deployment
		_ = godotenv.Load()

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the polling scheduler until interrupted",
	RunE:  runServe,
}

var processCmd = &cobra.Command{
	Use:   "process [conversation-id]",
	Short: "Process one conversation immediately, bypassing the scheduler",
	Long: `Evaluates the message trigger and any pending submissions of one
conversation and runs the agent for each positive trigger. Useful for
re-processing after an outage and for debugging a single conversation.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var checkCmd = &cobra.Command{
	Use:   "check [conversation-id]",
	Short: "Dry-run the trigger evaluation for one conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.DefaultConfig()
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tutor.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose CLI logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles the wired components of one agent instance.
type app struct {
	cfg     *config.Config
	api     platform.Client
	checker *trigger.Checker
	agent   *agent.TutorAgent
	gate    *security.Gate
	notes   *notes.Store // nil when disabled
	state   *store.StateStore
}

// buildApp loads configuration and wires the full pipeline.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Initialize(cfg.WorkDir, logging.Options{
		DebugMode:  cfg.Logging.DebugMode || verbose,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return nil, err
	}
	logging.Boot("%s %s starting (config=%s)", cfg.Name, cfg.Version, configPath)

	llmClient, err := llm.NewFromConfig(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to build LLM client: %w", err)
	}

	api := platform.NewHTTPClient(platform.HTTPConfig{
		BaseURL: cfg.Platform.BaseURL,
		Token:   cfg.Platform.Token,
		Timeout: parsePlatformTimeout(cfg),
	})

	secCfg := cfg.Security
	secCfg.ThreatLogPath = resolvePath(cfg.WorkDir, secCfg.ThreatLogPath)
	gate, err := security.NewGate(llmClient, secCfg)
	if err != nil {
		return nil, err
	}

	var notesStore *notes.Store
	if cfg.Notes.Enabled {
		notesStore = notes.NewStore(resolvePath(cfg.WorkDir, cfg.Notes.Directory))
	}

	var stateStore *store.StateStore
	if cfg.Store.Enabled {
		stateStore, err = store.NewStateStore(resolvePath(cfg.WorkDir, cfg.Store.DatabasePath))
		if err != nil {
			return nil, err
		}
	}

	builder := agent.NewContextBuilder(agent.BuilderOptions{
		API:          api,
		Config:       cfg.Context,
		Notes:        notesStore,
		ReposDir:     filepath.Join(cfg.WorkDir, "repos"),
		ReferenceDir: filepath.Join(cfg.WorkDir, "reference"),
	})

	classifier := intent.NewClassifier(llmClient, intent.DefaultConfig())

	registry := strategy.NewRegistry(strategy.Options{
		Client:      llmClient,
		Personality: cfg.Persona.Personality,
		Language:    cfg.Persona.Language,
		Notes:       notesStore,
		Grading:     cfg.Grading,
	})

	return &app{
		cfg:     cfg,
		api:     api,
		checker: trigger.NewChecker(api),
		agent:   agent.New(api, builder, gate, classifier, registry, cfg),
		gate:    gate,
		notes:   notesStore,
		state:   stateStore,
	}, nil
}

func (a *app) close() {
	if a.state != nil {
		_ = a.state.Close()
	}
	_ = a.gate.Close()
	logging.CloseAll()
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var watcher *notes.Watcher
	if a.notes != nil {
		watcher, err = notes.NewWatcher(a.notes)
		if err != nil {
			logger.Warn("notes watcher unavailable", zap.Error(err))
		} else {
			_ = watcher.Start()
			defer watcher.Stop()
		}
	}

	sched := scheduler.New(scheduler.Options{
		API:       a.api,
		Checker:   a.checker,
		Processor: a.agent,
		Config:    a.cfg.Scheduler,
		Filter: platform.GroupFilter{
			CourseIDs:  a.cfg.Platform.CourseIDs,
			ContentIDs: a.cfg.Platform.ContentIDs,
		},
		State: a.state,
	})
	sched.OnResult = func(r *agent.ProcessingResult) {
		logger.Info("processed conversation",
			zap.String("conversation", r.ConversationID),
			zap.String("intent", string(r.Intent)),
			zap.Bool("success", r.Success),
			zap.Bool("blocked", r.Blocked),
			zap.Duration("elapsed", r.Elapsed))
	}

	logger.Info("scheduler starting",
		zap.String("platform", a.cfg.Platform.BaseURL),
		zap.String("provider", a.cfg.LLM.Provider))
	sched.Start(ctx)
	logger.Info("scheduler stopped")
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conversationID := args[0]
	group, err := findGroup(ctx, a.api, a.cfg, conversationID)
	if err != nil {
		return err
	}

	processed := 0

	check, err := a.checker.CheckMessageTrigger(ctx, group.ID, group.CourseID)
	if err != nil {
		return err
	}
	if check.ShouldRespond {
		result := a.agent.ProcessMessage(ctx, group, check.Message)
		printResult(result)
		processed++
	} else {
		fmt.Printf("message trigger: negative (%s)\n", check.Reason)
	}

	artifacts, err := a.api.ListSubmissions(ctx, group.ID)
	if err != nil {
		return err
	}
	for _, artifact := range artifacts {
		sub := a.checker.CheckSubmissionTrigger(group.ID, artifact)
		if !sub.ShouldRespond {
			continue
		}
		result := a.agent.ProcessSubmission(ctx, group, sub.Submission)
		printResult(result)
		processed++
	}

	if processed == 0 {
		fmt.Println("nothing to process")
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conversationID := args[0]
	group, err := findGroup(ctx, a.api, a.cfg, conversationID)
	if err != nil {
		return err
	}

	check, err := a.checker.CheckMessageTrigger(ctx, group.ID, group.CourseID)
	if err != nil {
		return err
	}
	fmt.Printf("message trigger:    should_respond=%v (%s)\n", check.ShouldRespond, check.Reason)

	artifacts, err := a.api.ListSubmissions(ctx, group.ID)
	if err != nil {
		return err
	}
	pending := 0
	for _, artifact := range artifacts {
		if a.checker.CheckSubmissionTrigger(group.ID, artifact).ShouldRespond {
			pending++
		}
	}
	fmt.Printf("submission trigger: %d of %d artifact(s) pending review\n", pending, len(artifacts))
	return nil
}

// findGroup resolves a conversation id to its submission group.
func findGroup(ctx context.Context, api platform.Client, cfg *config.Config, conversationID string) (platform.SubmissionGroup, error) {
	groups, err := api.ListSubmissionGroups(ctx, platform.GroupFilter{
		CourseIDs:  cfg.Platform.CourseIDs,
		ContentIDs: cfg.Platform.ContentIDs,
	})
	if err != nil {
		return platform.SubmissionGroup{}, err
	}
	for _, g := range groups {
		if g.ID == conversationID {
			return g, nil
		}
	}
	return platform.SubmissionGroup{}, fmt.Errorf("conversation %s not found among tracked submission groups", conversationID)
}

func printResult(r *agent.ProcessingResult) {
	status := "failed"
	switch {
	case r.Blocked:
		status = "blocked"
	case r.Skipped:
		status = "skipped"
	case r.Success:
		status = "ok"
	}
	fmt.Printf("%-8s trigger=%-10s intent=%-17s strategy=%-17s elapsed=%v\n",
		status, r.Trigger, r.Intent, r.StrategyName, r.Elapsed)
	if r.Error != "" {
		fmt.Printf("         error: %s\n", r.Error)
	}
	if r.Grade != nil {
		fmt.Printf("         grade: %.2f\n", *r.Grade)
	}
}

// resolvePath anchors a relative path at the working directory.
func resolvePath(workdir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workdir, path)
}

func parsePlatformTimeout(cfg *config.Config) time.Duration {
	d, err := time.ParseDuration(cfg.Platform.Timeout)
	if err != nil {
		return 0
	}
	return d
}

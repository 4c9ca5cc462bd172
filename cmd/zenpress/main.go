package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"zenpress/internal/app"
	"zenpress/internal/config"
	"zenpress/internal/logging"
	"zenpress/internal/usecase"
)

type rootFlags struct {
	configPath string
	storePath  string
	artifacts  string
	logLevel   string
}

func main() {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "zenpress",
		Short:         "Daily Habr to Zen drafting pipeline",
		Long:          "Fetches Habr feed articles into a local SQLite store, ranks recent posts, rewrites the top picks through an LLM, and announces new drafts to Telegram.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to YAML config (default $ZENPRESS_CONFIG)")
	root.PersistentFlags().StringVar(&flags.storePath, "db", "", "SQLite store path (overrides config)")
	root.PersistentFlags().StringVar(&flags.artifacts, "artifacts", "", "Artifact directory (overrides config)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		fetchCmd(flags),
		parseCmd(flags),
		selectCmd(flags),
		draftCmd(flags),
		notifyCmd(flags),
		runCmd(flags),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if flags.storePath != "" {
		cfg.Store.Path = flags.storePath
	}
	if flags.artifacts != "" {
		cfg.Artifacts.Dir = flags.artifacts
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	return cfg, nil
}

// withApp loads config, applies command-level overrides, validates stage
// prerequisites, and runs fn with a wired application.
func withApp(flags *rootFlags, mutate func(*config.Config), validate func(config.Config) error, fn func(ctx context.Context, a *app.Application) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if mutate != nil {
		mutate(&cfg)
	}
	if validate != nil {
		if err := validate(cfg); err != nil {
			return err
		}
	}

	logger := logging.New(cfg.Logging.Level)
	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, application)
}

func fetchCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch feed items and store page artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, nil, nil, func(ctx context.Context, a *app.Application) error {
				report, err := a.Pipeline().Fetch(ctx, "cli", limit)
				printStage(report)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum feed items to fetch")
	return cmd
}

func parseCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse stored artifacts into article records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, nil, nil, func(ctx context.Context, a *app.Application) error {
				report, err := a.Pipeline().Parse(ctx, "cli", limit)
				printStage(report)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum articles to parse (0 = all)")
	return cmd
}

func selectCmd(flags *rootFlags) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Rank parsed articles and pick the top-K",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, topKOverride(topK), nil, func(ctx context.Context, a *app.Application) error {
				report, err := a.Pipeline().Select(ctx, "cli")
				printStage(report)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of articles to select (overrides config)")
	return cmd
}

func topKOverride(topK int) func(*config.Config) {
	if topK <= 0 {
		return nil
	}
	return func(cfg *config.Config) {
		cfg.Ranker.TopK = topK
	}
}

func draftCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "draft",
		Short: "Rewrite ranked articles through the LLM",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, nil, config.Config.ValidateDraft, func(ctx context.Context, a *app.Application) error {
				report, err := a.Pipeline().Draft(ctx, "cli")
				printStage(report)
				return err
			})
		},
	}
}

func notifyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Announce new drafts to the Telegram chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, nil, config.Config.ValidateNotify, func(ctx context.Context, a *app.Application) error {
				report, err := a.Pipeline().Notify(ctx, "cli")
				printStage(report)
				return err
			})
		},
	}
}

func runCmd(flags *rootFlags) *cobra.Command {
	var (
		limit  int
		topK   int
		daemon bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline once (or on a daily ticker)",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The drafter is mandatory for a full run; Telegram stays
			// optional, matching a local dry-run setup.
			return withApp(flags, topKOverride(topK), config.Config.ValidateDraft, func(ctx context.Context, a *app.Application) error {
				if daemon {
					return a.RunDaemon(ctx, limit)
				}
				report, err := a.RunOnce(ctx, limit)
				for _, stage := range report.Stages {
					printStage(stage)
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum feed items to fetch")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of drafts to generate (overrides config)")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "Keep running on the configured interval")
	return cmd
}

func printStage(report usecase.StageReport) {
	fmt.Printf("%s: processed=%d failed=%d\n", report.Stage, report.Processed, len(report.Failures))
	for _, failure := range report.Failures {
		fmt.Printf("  failed %s (%s): %v\n", report.Stage, failure.URL, failure.Err)
	}
}

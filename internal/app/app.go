package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"zenpress/internal/config"
	"zenpress/internal/infrastructure/artifact"
	"zenpress/internal/infrastructure/feed"
	"zenpress/internal/infrastructure/fetch"
	"zenpress/internal/infrastructure/llm"
	"zenpress/internal/infrastructure/scheduler"
	"zenpress/internal/infrastructure/storage"
	"zenpress/internal/infrastructure/telegram"
	"zenpress/internal/logging"
	"zenpress/internal/ports"
	"zenpress/internal/scanner"
	"zenpress/internal/usecase"
)

// Application wires configuration to adapters and the pipeline.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	repository *storage.SQLiteRepository
	pipeline   *usecase.Pipeline
}

// New opens the store and builds every adapter the configuration allows.
// The generator and notifier are wired only when their credentials are
// present; stage commands that require them validate upfront.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	repository, err := storage.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}

	artifacts, err := artifact.NewStore(cfg.Artifacts.Dir)
	if err != nil {
		repository.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Fetcher.Timeout()}

	registry := scanner.NewRegistry()
	registry.Register(feed.NewHabrScanner(httpClient, cfg.Fetcher.UserAgent))

	feedScanner, err := registry.Resolve(cfg.Feed.Scanner)
	if err != nil {
		repository.Close()
		return nil, fmt.Errorf("feed %s: %w", cfg.Feed.Name, err)
	}

	var shots ports.Screenshotter
	if s := fetch.NewExecScreenshotter(cfg.Artifacts.ScreenshotCmd); s != nil {
		shots = s
	}
	fetcher := fetch.NewFetcher(httpClient, cfg.Fetcher.RequestsPerSecond,
		cfg.Fetcher.UserAgent, shots, baseLogger.With("component", "fetcher"))

	var generator ports.Generator
	if cfg.OpenAI.APIKey != "" {
		generator = llm.NewOpenAIClient(cfg.OpenAI)
	}

	var notifier ports.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Feed:       feedScanner,
		FeedURL:    cfg.Feed.URL,
		Fetcher:    fetcher,
		Artifacts:  artifacts,
		Parser:     feed.NewArticleParser(baseLogger.With("component", "parser")),
		Repository: repository,
		Generator:  generator,
		Notifier:   notifier,
		Ranker: usecase.RankerOptions{
			TopK:          cfg.Ranker.TopK,
			Window:        cfg.Ranker.Window(),
			RecencyWeight: cfg.Ranker.RecencyWeight,
			Priority:      cfg.Feed.Priority,
		},
		Logger: baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		repository: repository,
		pipeline:   pipeline,
	}, nil
}

// Pipeline exposes the stage functions to the CLI.
func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

// Close releases the store handle.
func (a *Application) Close() error {
	return a.repository.Close()
}

// RunOnce executes the full pipeline a single time.
func (a *Application) RunOnce(ctx context.Context, limit int) (usecase.RunReport, error) {
	return a.pipeline.Run(ctx, limit)
}

// RunDaemon executes the pipeline on the configured interval until the
// context is cancelled.
func (a *Application) RunDaemon(ctx context.Context, limit int) error {
	driver := scheduler.NewTickerScheduler(a.cfg.Scheduler.Interval())

	job := func(trigger time.Time) {
		if _, err := a.pipeline.Run(ctx, limit); err != nil {
			a.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
		}
	}
	if err := driver.Start(ctx, job); err != nil {
		return err
	}

	<-ctx.Done()
	return driver.Stop(context.Background())
}

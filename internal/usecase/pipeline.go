package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"zenpress/internal/domain"
	"zenpress/internal/ports"
	"zenpress/internal/scanner"
)

// ItemFailure records one per-item error caught at a stage boundary.
type ItemFailure struct {
	ID  string
	URL string
	Err error
}

// StageReport aggregates the outcome of one stage invocation. Per-item
// failures never abort the remaining items; only store integrity errors
// escape as a returned error.
type StageReport struct {
	Stage     string
	Processed int
	Failures  []ItemFailure
}

func (r *StageReport) fail(id, url string, err error) {
	r.Failures = append(r.Failures, ItemFailure{ID: id, URL: url, Err: err})
}

// RunReport collects the stage reports of one full pipeline run.
type RunReport struct {
	RunID  string
	Stages []StageReport
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Feed       scanner.Scanner
	FeedURL    string
	Fetcher    ports.PageFetcher
	Artifacts  ports.ArtifactStore
	Parser     ports.ContentParser
	Repository ports.ArticleRepository
	Generator  ports.Generator
	Notifier   ports.Notifier
	Ranker     RankerOptions
	Logger     *slog.Logger
}

// Pipeline implements the fetch/parse/select/draft/notify workflow as
// independently invocable, idempotent stages over the store.
type Pipeline struct {
	feed       scanner.Scanner
	feedURL    string
	fetcher    ports.PageFetcher
	artifacts  ports.ArtifactStore
	parser     ports.ContentParser
	repository ports.ArticleRepository
	generator  ports.Generator
	notifier   ports.Notifier
	ranker     RankerOptions
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		feed:       deps.Feed,
		feedURL:    deps.FeedURL,
		fetcher:    deps.Fetcher,
		artifacts:  deps.Artifacts,
		parser:     deps.Parser,
		repository: deps.Repository,
		generator:  deps.Generator,
		notifier:   deps.Notifier,
		ranker:     deps.Ranker,
		logger:     logger,
	}
}

// Run executes all stages in order under one run id. A stage's per-item
// failures do not stop the run; a fatal (store or configuration) error
// does.
func (p *Pipeline) Run(ctx context.Context, limit int) (RunReport, error) {
	report := RunReport{RunID: uuid.NewString()}
	p.logger.Info("pipeline run started", "run_id", report.RunID, "limit", limit)

	stages := []func(context.Context, string, int) (StageReport, error){
		p.Fetch,
		p.Parse,
		func(ctx context.Context, runID string, _ int) (StageReport, error) {
			return p.Select(ctx, runID)
		},
		func(ctx context.Context, runID string, _ int) (StageReport, error) {
			return p.Draft(ctx, runID)
		},
		func(ctx context.Context, runID string, _ int) (StageReport, error) {
			return p.Notify(ctx, runID)
		},
	}

	for _, stage := range stages {
		stageReport, err := stage(ctx, report.RunID, limit)
		report.Stages = append(report.Stages, stageReport)
		p.logStage(report.RunID, stageReport)
		if err != nil {
			return report, err
		}
	}

	p.logger.Info("pipeline run finished", "run_id", report.RunID)
	return report, nil
}

// Fetch discovers feed items (plus journaled retry URLs), retrieves each
// article page into the artifact store, and upserts a stub article at
// status fetched. Per-URL errors are journaled for the next run.
func (p *Pipeline) Fetch(ctx context.Context, runID string, limit int) (StageReport, error) {
	report := StageReport{Stage: "fetch"}
	if p.feed == nil || p.fetcher == nil {
		p.logger.Warn("fetch stage skipped: no feed source configured", "run_id", runID)
		return report, nil
	}

	items, err := p.feed.Scan(ctx, scanner.Request{
		Day:     time.Now().UTC(),
		FeedURL: p.feedURL,
		Limit:   limit,
	})
	if err != nil {
		return report, fmt.Errorf("scan feed: %w", err)
	}

	retries, err := p.repository.PendingFetchFailures(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("load fetch journal: %w", err)
	}
	seen := map[string]struct{}{}
	for _, item := range items {
		seen[item.URL] = struct{}{}
	}
	for _, failure := range retries {
		if _, dup := seen[failure.URL]; dup {
			continue
		}
		items = append(items, ports.FeedItem{URL: failure.URL})
	}

	for _, item := range items {
		id := domain.ArticleID(item.URL)
		page, fetchErr := p.fetcher.FetchPage(ctx, item.URL)
		if fetchErr != nil {
			report.fail(id, item.URL, fetchErr)
			p.logger.Warn("fetch failed", "run_id", runID, "url", item.URL, "error", fetchErr)
			journalErr := p.repository.JournalFetchFailure(ctx, domain.FetchFailure{
				RunID:      runID,
				URL:        item.URL,
				Err:        fetchErr.Error(),
				OccurredAt: time.Now().UTC(),
			})
			if journalErr != nil {
				return report, fmt.Errorf("journal fetch failure: %w", journalErr)
			}
			continue
		}

		if err := p.artifacts.WriteHTML(id, page); err != nil {
			report.fail(id, item.URL, err)
			p.logger.Warn("artifact write failed", "run_id", runID, "url", item.URL, "error", err)
			continue
		}
		p.fetcher.Capture(ctx, item.URL, p.artifacts.ScreenshotPath(id))

		err := p.repository.UpsertArticle(ctx, domain.Article{
			ID:          id,
			URL:         item.URL,
			Title:       item.Title,
			Author:      item.Author,
			PublishedAt: item.PublishedAt,
			FetchedAt:   time.Now().UTC(),
			Status:      domain.StatusFetched,
		})
		if err != nil {
			return report, fmt.Errorf("upsert fetched article: %w", err)
		}
		if err := p.repository.ClearFetchFailure(ctx, item.URL); err != nil {
			return report, fmt.Errorf("clear fetch journal: %w", err)
		}
		report.Processed++
	}

	return report, nil
}

// Parse reads stored artifacts for articles at status fetched, extracts
// the structured record, and advances them to parsed. Malformed pages are
// skipped with a warning; an article with no artifact stays at fetched.
func (p *Pipeline) Parse(ctx context.Context, runID string, limit int) (StageReport, error) {
	report := StageReport{Stage: "parse"}
	articles, err := p.repository.ArticlesByStatus(ctx, domain.StatusFetched, limit)
	if err != nil {
		return report, fmt.Errorf("load fetched articles: %w", err)
	}

	for _, article := range articles {
		if !p.artifacts.HasHTML(article.ID) {
			report.fail(article.ID, article.URL, errors.New("artifact missing"))
			p.logger.Warn("artifact missing", "run_id", runID, "id", article.ID, "url", article.URL)
			continue
		}

		page, readErr := p.artifacts.ReadHTML(article.ID)
		if readErr != nil {
			report.fail(article.ID, article.URL, readErr)
			continue
		}

		parsed, parseErr := p.parser.Parse(page, article.URL)
		if parseErr != nil {
			report.fail(article.ID, article.URL, parseErr)
			p.logger.Warn("parse failed", "run_id", runID, "url", article.URL, "error", parseErr)
			if err := p.repository.RecordFailure(ctx, article.ID, parseErr); err != nil {
				return report, fmt.Errorf("record parse failure: %w", err)
			}
			continue
		}

		// Feed metadata fills gaps the article page did not yield.
		if parsed.Title != "" {
			article.Title = parsed.Title
		}
		if parsed.Author != "" {
			article.Author = parsed.Author
		}
		if !parsed.PublishedAt.IsZero() {
			article.PublishedAt = parsed.PublishedAt
		}
		article.Body = parsed.Body
		article.Tags = parsed.Tags

		if err := p.repository.UpsertArticle(ctx, article); err != nil {
			return report, fmt.Errorf("upsert parsed article: %w", err)
		}
		if err := p.repository.AdvanceStatus(ctx, article.ID, domain.StatusParsed); err != nil {
			return report, fmt.Errorf("advance to parsed: %w", err)
		}
		report.Processed++
	}

	return report, nil
}

// Select scores parsed articles within the recency window and advances
// the top-K to ranked, persisting their scores.
func (p *Pipeline) Select(ctx context.Context, runID string) (StageReport, error) {
	report := StageReport{Stage: "select"}
	candidates, err := p.repository.ArticlesByStatus(ctx, domain.StatusParsed, 0)
	if err != nil {
		return report, fmt.Errorf("load parsed articles: %w", err)
	}

	winners := SelectTopK(candidates, time.Now().UTC(), p.ranker)
	for _, article := range winners {
		if err := p.repository.UpsertArticle(ctx, article); err != nil {
			return report, fmt.Errorf("persist score: %w", err)
		}
		if err := p.repository.AdvanceStatus(ctx, article.ID, domain.StatusRanked); err != nil {
			return report, fmt.Errorf("advance to ranked: %w", err)
		}
		p.logger.Info("article selected", "run_id", runID, "id", article.ID, "score", article.Score)
		report.Processed++
	}

	return report, nil
}

// Draft sends each ranked article to the generator and stores the
// returned draft. A generation failure leaves the article at ranked and
// bumps its failure counter; the next run retries it.
func (p *Pipeline) Draft(ctx context.Context, runID string) (StageReport, error) {
	report := StageReport{Stage: "draft"}
	if p.generator == nil {
		p.logger.Warn("draft stage skipped: no generator configured", "run_id", runID)
		return report, nil
	}

	articles, err := p.repository.ArticlesByStatus(ctx, domain.StatusRanked, 0)
	if err != nil {
		return report, fmt.Errorf("load ranked articles: %w", err)
	}

	for _, article := range articles {
		draft, genErr := p.generator.GenerateDraft(ctx, article)
		if genErr != nil {
			report.fail(article.ID, article.URL, genErr)
			p.logger.Warn("draft generation failed", "run_id", runID, "id", article.ID, "error", genErr)
			if err := p.repository.RecordFailure(ctx, article.ID, genErr); err != nil {
				return report, fmt.Errorf("record draft failure: %w", err)
			}
			continue
		}

		draft.Reason = fmt.Sprintf("score %.2f", article.Score)
		if err := p.repository.WriteDraft(ctx, draft); err != nil {
			return report, fmt.Errorf("write draft: %w", err)
		}
		if err := p.repository.AdvanceStatus(ctx, article.ID, domain.StatusDrafted); err != nil {
			return report, fmt.Errorf("advance to drafted: %w", err)
		}
		report.Processed++
	}

	return report, nil
}

// Notify delivers each drafted article to the messaging channel and
// advances it to notified. Delivery failures are logged; the article
// stays eligible for the next invocation.
func (p *Pipeline) Notify(ctx context.Context, runID string) (StageReport, error) {
	report := StageReport{Stage: "notify"}
	if p.notifier == nil {
		p.logger.Warn("notify stage skipped: no notifier configured", "run_id", runID)
		return report, nil
	}

	articles, err := p.repository.ArticlesByStatus(ctx, domain.StatusDrafted, 0)
	if err != nil {
		return report, fmt.Errorf("load drafted articles: %w", err)
	}

	for _, article := range articles {
		draft, draftErr := p.repository.DraftByArticle(ctx, article.ID)
		if draftErr != nil {
			report.fail(article.ID, article.URL, draftErr)
			p.logger.Warn("draft lookup failed", "run_id", runID, "id", article.ID, "error", draftErr)
			continue
		}

		messageID, sendErr := p.notifier.SendDraft(ctx, article, draft)
		if sendErr != nil {
			report.fail(article.ID, article.URL, sendErr)
			p.logger.Warn("notification failed", "run_id", runID, "id", article.ID, "error", sendErr)
			continue
		}

		if err := p.repository.MarkDelivered(ctx, article.ID, messageID, time.Now().UTC()); err != nil {
			return report, fmt.Errorf("mark delivered: %w", err)
		}
		if err := p.repository.AdvanceStatus(ctx, article.ID, domain.StatusNotified); err != nil {
			return report, fmt.Errorf("advance to notified: %w", err)
		}
		report.Processed++
	}

	return report, nil
}

func (p *Pipeline) logStage(runID string, report StageReport) {
	p.logger.Info("stage finished",
		"run_id", runID,
		"stage", report.Stage,
		"processed", report.Processed,
		"failed", len(report.Failures))
	for _, failure := range report.Failures {
		p.logger.Warn("item failed",
			"run_id", runID,
			"stage", report.Stage,
			"id", failure.ID,
			"url", failure.URL,
			"error", failure.Err)
	}
}

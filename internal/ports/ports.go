package ports

import (
	"context"
	"time"

	"zenpress/internal/domain"
)

// FeedItem is a link discovered on the feed page before its article page
// has been fetched.
type FeedItem struct {
	Title       string
	URL         string
	Author      string
	PublishedAt time.Time
}

// ParsedArticle is the structured result of parsing one stored page.
type ParsedArticle struct {
	Title       string
	Author      string
	Body        string
	Tags        []string
	PublishedAt time.Time
}

// PageFetcher retrieves one article page and captures its best-effort
// screenshot.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
	Capture(ctx context.Context, url, outPath string)
}

// ContentParser extracts a structured record from stored page bytes.
type ContentParser interface {
	Parse(html []byte, pageURL string) (ParsedArticle, error)
}

// ArticleRepository persists articles and drafts in the local store.
type ArticleRepository interface {
	UpsertArticle(ctx context.Context, article domain.Article) error
	ArticlesByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Article, error)
	AdvanceStatus(ctx context.Context, id string, next domain.Status) error
	RecordFailure(ctx context.Context, id string, cause error) error
	WriteDraft(ctx context.Context, draft domain.Draft) error
	DraftByArticle(ctx context.Context, articleID string) (domain.Draft, error)
	MarkDelivered(ctx context.Context, articleID, messageID string, sentAt time.Time) error
	JournalFetchFailure(ctx context.Context, failure domain.FetchFailure) error
	PendingFetchFailures(ctx context.Context, limit int) ([]domain.FetchFailure, error)
	ClearFetchFailure(ctx context.Context, url string) error
}

// ArtifactStore keeps the raw page bytes fetched for each article.
type ArtifactStore interface {
	WriteHTML(id string, html []byte) error
	ReadHTML(id string) ([]byte, error)
	HasHTML(id string) bool
	ScreenshotPath(id string) string
}

// Screenshotter captures a rendered page image; implementations wrap an
// external browser and are best effort.
type Screenshotter interface {
	Capture(ctx context.Context, url, outPath string) error
}

// Generator rewrites an article into a publishable draft.
type Generator interface {
	GenerateDraft(ctx context.Context, article domain.Article) (domain.Draft, error)
}

// Notifier delivers a finished draft to the messaging channel and returns
// the provider's message identifier.
type Notifier interface {
	SendDraft(ctx context.Context, article domain.Article, draft domain.Draft) (string, error)
}

// Scheduler controls recurring pipeline execution.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

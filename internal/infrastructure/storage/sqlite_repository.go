package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"zenpress/internal/domain"
	"zenpress/internal/ports"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL UNIQUE,
	title        TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	tags_json    TEXT NOT NULL DEFAULT '[]',
	published_at TEXT NOT NULL DEFAULT '',
	fetched_at   TEXT NOT NULL,
	status       TEXT NOT NULL,
	score        REAL NOT NULL DEFAULT 0,
	fail_count   INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT NOT NULL DEFAULT '',
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS drafts (
	article_id          TEXT PRIMARY KEY REFERENCES articles(id),
	title               TEXT NOT NULL,
	lead                TEXT NOT NULL DEFAULT '',
	body                TEXT NOT NULL,
	reason              TEXT NOT NULL DEFAULT '',
	model               TEXT NOT NULL DEFAULT '',
	created_at          TEXT NOT NULL,
	telegram_message_id TEXT NOT NULL DEFAULT '',
	sent_at             TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fetch_failures (
	url         TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	error       TEXT NOT NULL,
	occurred_at TEXT NOT NULL
);
`

// SQLiteRepository persists articles, drafts, and the fetch-failure
// journal in one local SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.ArticleRepository = (*SQLiteRepository)(nil)

// Open opens (creating if needed) the store at path and applies the
// schema.
func Open(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// UpsertArticle inserts or refreshes an article row keyed by id.
// Status, fail_count, and last_error are set only on first insert; the
// conflict branch never touches them, so a re-run cannot move status
// backward or erase failure bookkeeping. Content fields refresh only
// when the incoming value is non-empty, so a later fetch-stage stub
// cannot wipe an already-parsed body.
func (r *SQLiteRepository) UpsertArticle(ctx context.Context, article domain.Article) error {
	if article.ID == "" {
		return fmt.Errorf("article id is empty")
	}
	if !article.Status.Valid() {
		return fmt.Errorf("article %s: unknown status %q", article.ID, article.Status)
	}

	tags, err := json.Marshal(article.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	query, args, err := sq.Insert("articles").
		Columns("id", "url", "title", "author", "body", "tags_json",
			"published_at", "fetched_at", "status", "score", "updated_at").
		Values(article.ID, article.URL, article.Title, article.Author, article.Body,
			string(tags), formatTime(article.PublishedAt), formatTime(article.FetchedAt),
			string(article.Status), article.Score, now).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE title END,
			author = CASE WHEN excluded.author != '' THEN excluded.author ELSE author END,
			body = CASE WHEN excluded.body != '' THEN excluded.body ELSE body END,
			tags_json = CASE WHEN excluded.tags_json NOT IN ('', 'null', '[]') THEN excluded.tags_json ELSE tags_json END,
			published_at = CASE WHEN excluded.published_at != '' THEN excluded.published_at ELSE published_at END,
			score = CASE WHEN excluded.score != 0 THEN excluded.score ELSE score END,
			fetched_at = excluded.fetched_at,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert article %s: %w", article.ID, err)
	}
	return nil
}

// ArticlesByStatus returns up to limit articles at the given status,
// oldest publication first.
func (r *SQLiteRepository) ArticlesByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Article, error) {
	builder := sq.Select("id", "url", "title", "author", "body", "tags_json",
		"published_at", "fetched_at", "status", "score", "fail_count", "last_error").
		From("articles").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("published_at ASC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

// AdvanceStatus moves an article forward in the lifecycle. Re-applying
// the current status is a no-op; a backward move returns
// domain.ErrBackwardTransition.
func (r *SQLiteRepository) AdvanceStatus(ctx context.Context, id string, next domain.Status) error {
	var current string
	query, args, err := sq.Select("status").From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build status select: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("article %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("load status for %s: %w", id, err)
	}

	if domain.Status(current) == next {
		return nil
	}
	if _, err := domain.Status(current).Advance(next); err != nil {
		return fmt.Errorf("article %s: %w", id, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query, args, err = sq.Update("articles").
		Set("status", string(next)).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": current}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("advance article %s: %w", id, err)
	}
	return nil
}

// RecordFailure bumps the failure counter on an article without touching
// its status; the item stays eligible for the same stage next run.
func (r *SQLiteRepository) RecordFailure(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	query, args, err := sq.Update("articles").
		Set("fail_count", sq.Expr("fail_count + 1")).
		Set("last_error", msg).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build failure update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record failure for %s: %w", id, err)
	}
	return nil
}

// WriteDraft stores a generated draft. Drafts are immutable: a second
// write for the same article is silently ignored.
func (r *SQLiteRepository) WriteDraft(ctx context.Context, draft domain.Draft) error {
	if draft.ArticleID == "" {
		return fmt.Errorf("draft article id is empty")
	}

	query, args, err := sq.Insert("drafts").
		Columns("article_id", "title", "lead", "body", "reason", "model", "created_at").
		Values(draft.ArticleID, draft.Title, draft.Lead, draft.Body,
			draft.Reason, draft.Model, formatTime(draft.CreatedAt)).
		Suffix("ON CONFLICT (article_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build draft insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write draft for %s: %w", draft.ArticleID, err)
	}
	return nil
}

// DraftByArticle loads the draft generated for an article.
func (r *SQLiteRepository) DraftByArticle(ctx context.Context, articleID string) (domain.Draft, error) {
	query, args, err := sq.Select("article_id", "title", "lead", "body", "reason",
		"model", "created_at", "telegram_message_id", "sent_at").
		From("drafts").
		Where(sq.Eq{"article_id": articleID}).
		ToSql()
	if err != nil {
		return domain.Draft{}, fmt.Errorf("build draft select: %w", err)
	}

	var (
		draft             domain.Draft
		createdAt, sentAt string
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&draft.ArticleID, &draft.Title, &draft.Lead, &draft.Body, &draft.Reason,
		&draft.Model, &createdAt, &draft.TelegramMessageID, &sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Draft{}, fmt.Errorf("draft for %s: %w", articleID, ErrNotFound)
	}
	if err != nil {
		return domain.Draft{}, fmt.Errorf("load draft for %s: %w", articleID, err)
	}
	draft.CreatedAt = parseTime(createdAt)
	draft.SentAt = parseTime(sentAt)
	return draft, nil
}

// MarkDelivered records the Telegram message id after a successful send.
func (r *SQLiteRepository) MarkDelivered(ctx context.Context, articleID, messageID string, sentAt time.Time) error {
	query, args, err := sq.Update("drafts").
		Set("telegram_message_id", messageID).
		Set("sent_at", formatTime(sentAt)).
		Where(sq.Eq{"article_id": articleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delivery update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark delivered %s: %w", articleID, err)
	}
	return nil
}

// JournalFetchFailure records a URL that could not be fetched; the entry
// is keyed by URL so repeated failures keep a single row.
func (r *SQLiteRepository) JournalFetchFailure(ctx context.Context, failure domain.FetchFailure) error {
	query, args, err := sq.Insert("fetch_failures").
		Columns("url", "run_id", "error", "occurred_at").
		Values(failure.URL, failure.RunID, failure.Err, formatTime(failure.OccurredAt)).
		Suffix(`ON CONFLICT (url) DO UPDATE SET
			run_id = excluded.run_id,
			error = excluded.error,
			occurred_at = excluded.occurred_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build journal insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("journal fetch failure %s: %w", failure.URL, err)
	}
	return nil
}

// PendingFetchFailures lists journaled URLs for re-queueing, oldest first.
func (r *SQLiteRepository) PendingFetchFailures(ctx context.Context, limit int) ([]domain.FetchFailure, error) {
	builder := sq.Select("url", "run_id", "error", "occurred_at").
		From("fetch_failures").
		OrderBy("occurred_at ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build journal select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fetch failures: %w", err)
	}
	defer rows.Close()

	var failures []domain.FetchFailure
	for rows.Next() {
		var (
			failure    domain.FetchFailure
			occurredAt string
		)
		if err := rows.Scan(&failure.URL, &failure.RunID, &failure.Err, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan fetch failure: %w", err)
		}
		failure.OccurredAt = parseTime(occurredAt)
		failures = append(failures, failure)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return failures, nil
}

// ClearFetchFailure drops the journal entry after a successful re-fetch.
func (r *SQLiteRepository) ClearFetchFailure(ctx context.Context, url string) error {
	query, args, err := sq.Delete("fetch_failures").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return fmt.Errorf("build journal delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear fetch failure %s: %w", url, err)
	}
	return nil
}

func scanArticle(rows *sql.Rows) (domain.Article, error) {
	var (
		article                domain.Article
		tags                   string
		publishedAt, fetchedAt string
		status                 string
	)
	if err := rows.Scan(&article.ID, &article.URL, &article.Title, &article.Author,
		&article.Body, &tags, &publishedAt, &fetchedAt, &status,
		&article.Score, &article.FailCount, &article.LastError); err != nil {
		return domain.Article{}, fmt.Errorf("scan article: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &article.Tags); err != nil {
		return domain.Article{}, fmt.Errorf("unmarshal tags for %s: %w", article.ID, err)
	}
	article.PublishedAt = parseTime(publishedAt)
	article.FetchedAt = parseTime(fetchedAt)
	article.Status = domain.Status(status)
	return article, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

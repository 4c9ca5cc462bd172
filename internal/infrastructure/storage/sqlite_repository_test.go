package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"zenpress/internal/domain"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testArticle(id string) domain.Article {
	return domain.Article{
		ID:          id,
		URL:         "https://habr.com/ru/articles/" + id + "/",
		Title:       "Title " + id,
		Author:      "author",
		Body:        "body text",
		Tags:        []string{"go", "testing"},
		PublishedAt: time.Date(2026, time.August, 24, 10, 0, 0, 0, time.UTC),
		FetchedAt:   time.Date(2026, time.August, 25, 6, 0, 0, 0, time.UTC),
		Status:      domain.StatusFetched,
	}
}

func TestUpsertArticleIdempotent(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	article := testArticle("a1")
	for i := 0; i < 3; i++ {
		if err := repo.UpsertArticle(ctx, article); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	got, err := repo.ArticlesByStatus(ctx, domain.StatusFetched, 0)
	if err != nil {
		t.Fatalf("list articles: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 article after repeated upserts, got %d", len(got))
	}
	if got[0].Title != "Title a1" || len(got[0].Tags) != 2 {
		t.Fatalf("unexpected article: %+v", got[0])
	}
}

func TestUpsertDoesNotResetStatusOrBody(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	article := testArticle("a2")
	if err := repo.UpsertArticle(ctx, article); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.AdvanceStatus(ctx, article.ID, domain.StatusParsed); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// A later fetch-stage stub carries no body and status fetched.
	stub := domain.Article{
		ID:        article.ID,
		URL:       article.URL,
		FetchedAt: time.Now().UTC(),
		Status:    domain.StatusFetched,
	}
	if err := repo.UpsertArticle(ctx, stub); err != nil {
		t.Fatalf("upsert stub: %v", err)
	}

	got, err := repo.ArticlesByStatus(ctx, domain.StatusParsed, 0)
	if err != nil {
		t.Fatalf("list articles: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("status was reset by the stub upsert")
	}
	if got[0].Body != "body text" {
		t.Fatalf("body was wiped by the stub upsert: %q", got[0].Body)
	}
	if got[0].Title != "Title a2" {
		t.Fatalf("title was wiped by the stub upsert: %q", got[0].Title)
	}
}

func TestAdvanceStatusForwardOnly(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	article := testArticle("a3")
	if err := repo.UpsertArticle(ctx, article); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	for _, next := range []domain.Status{domain.StatusParsed, domain.StatusRanked, domain.StatusDrafted} {
		if err := repo.AdvanceStatus(ctx, article.ID, next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}

	// Re-applying the current status is a no-op.
	if err := repo.AdvanceStatus(ctx, article.ID, domain.StatusDrafted); err != nil {
		t.Fatalf("same-status advance: %v", err)
	}

	err := repo.AdvanceStatus(ctx, article.ID, domain.StatusParsed)
	if !errors.Is(err, domain.ErrBackwardTransition) {
		t.Fatalf("expected ErrBackwardTransition, got %v", err)
	}

	err = repo.AdvanceStatus(ctx, "missing", domain.StatusParsed)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDraftRoundTrip(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	article := testArticle("a4")
	if err := repo.UpsertArticle(ctx, article); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	draft := domain.Draft{
		ArticleID: article.ID,
		Title:     "Заголовок",
		Lead:      "Вводка",
		Body:      "Текст поста с юникодом: ёж, 🦔",
		Reason:    "score 6.00",
		Model:     "gpt-4o-mini",
		CreatedAt: time.Date(2026, time.August, 25, 7, 0, 0, 0, time.UTC),
	}
	if err := repo.WriteDraft(ctx, draft); err != nil {
		t.Fatalf("write draft: %v", err)
	}

	got, err := repo.DraftByArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("read draft: %v", err)
	}
	if got.Title != draft.Title || got.Lead != draft.Lead || got.Body != draft.Body {
		t.Fatalf("draft round trip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(draft.CreatedAt) {
		t.Fatalf("created_at mismatch: %v", got.CreatedAt)
	}
}

func TestDraftImmutable(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	article := testArticle("a5")
	if err := repo.UpsertArticle(ctx, article); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	first := domain.Draft{ArticleID: article.ID, Title: "first", Body: "first body", CreatedAt: time.Now().UTC()}
	second := domain.Draft{ArticleID: article.ID, Title: "second", Body: "second body", CreatedAt: time.Now().UTC()}

	if err := repo.WriteDraft(ctx, first); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if err := repo.WriteDraft(ctx, second); err != nil {
		t.Fatalf("write second: %v", err)
	}

	got, err := repo.DraftByArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("read draft: %v", err)
	}
	if got.Body != "first body" {
		t.Fatalf("draft was overwritten: %q", got.Body)
	}
}

func TestMarkDelivered(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	article := testArticle("a6")
	if err := repo.UpsertArticle(ctx, article); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	draft := domain.Draft{ArticleID: article.ID, Title: "t", Body: "b", CreatedAt: time.Now().UTC()}
	if err := repo.WriteDraft(ctx, draft); err != nil {
		t.Fatalf("write draft: %v", err)
	}

	sentAt := time.Date(2026, time.August, 25, 8, 0, 0, 0, time.UTC)
	if err := repo.MarkDelivered(ctx, article.ID, "12345", sentAt); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}

	got, err := repo.DraftByArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("read draft: %v", err)
	}
	if got.TelegramMessageID != "12345" {
		t.Fatalf("message id not stored: %q", got.TelegramMessageID)
	}
	if !got.SentAt.Equal(sentAt) {
		t.Fatalf("sent_at mismatch: %v", got.SentAt)
	}
}

func TestFetchFailureJournal(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	failure := domain.FetchFailure{
		RunID:      "run-1",
		URL:        "https://habr.com/ru/articles/broken/",
		Err:        "timeout",
		OccurredAt: time.Now().UTC(),
	}
	if err := repo.JournalFetchFailure(ctx, failure); err != nil {
		t.Fatalf("journal: %v", err)
	}
	// A repeated failure for the same URL keeps a single row.
	failure.RunID = "run-2"
	if err := repo.JournalFetchFailure(ctx, failure); err != nil {
		t.Fatalf("journal again: %v", err)
	}

	pending, err := repo.PendingFetchFailures(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(pending))
	}
	if pending[0].RunID != "run-2" {
		t.Fatalf("journal entry not refreshed: %+v", pending[0])
	}

	if err := repo.ClearFetchFailure(ctx, failure.URL); err != nil {
		t.Fatalf("clear: %v", err)
	}
	pending, err = repo.PendingFetchFailures(ctx, 10)
	if err != nil {
		t.Fatalf("pending after clear: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("journal entry not cleared")
	}
}

func TestArticlesByStatusLimitAndOrder(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		article := testArticle(id)
		article.PublishedAt = base.Add(time.Duration(i) * time.Hour)
		if err := repo.UpsertArticle(ctx, article); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	got, err := repo.ArticlesByStatus(ctx, domain.StatusFetched, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit not applied: got %d", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "a" {
		t.Fatalf("not ordered by publication: %s, %s", got[0].ID, got[1].ID)
	}
}

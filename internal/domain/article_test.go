package domain

import (
	"errors"
	"testing"
)

func TestStatusAdvance(t *testing.T) {
	t.Parallel()

	got, err := StatusFetched.Advance(StatusParsed)
	if err != nil {
		t.Fatalf("forward advance returned error: %v", err)
	}
	if got != StatusParsed {
		t.Fatalf("expected parsed, got %s", got)
	}

	// Re-applying the current status is allowed.
	if _, err := StatusParsed.Advance(StatusParsed); err != nil {
		t.Fatalf("same-status advance returned error: %v", err)
	}

	// Skipping intermediate statuses is still forward.
	if _, err := StatusFetched.Advance(StatusDrafted); err != nil {
		t.Fatalf("multi-step advance returned error: %v", err)
	}
}

func TestStatusAdvanceBackward(t *testing.T) {
	t.Parallel()

	if _, err := StatusDrafted.Advance(StatusParsed); !errors.Is(err, ErrBackwardTransition) {
		t.Fatalf("expected ErrBackwardTransition, got %v", err)
	}
	if _, err := StatusNotified.Advance(StatusFetched); !errors.Is(err, ErrBackwardTransition) {
		t.Fatalf("expected ErrBackwardTransition, got %v", err)
	}
}

func TestStatusAdvanceUnknown(t *testing.T) {
	t.Parallel()

	if _, err := StatusFetched.Advance(Status("published")); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestArticleID(t *testing.T) {
	t.Parallel()

	a := ArticleID("https://habr.com/ru/articles/1/")
	b := ArticleID("https://habr.com/ru/articles/1/")
	c := ArticleID("https://habr.com/ru/articles/2/")

	if a != b {
		t.Fatalf("same URL produced different ids: %s vs %s", a, b)
	}
	if a == c {
		t.Fatal("different URLs produced the same id")
	}
	if len(a) != 16 {
		t.Fatalf("unexpected id length: %d", len(a))
	}

	// Surrounding whitespace does not change the identity.
	if ArticleID("  https://habr.com/ru/articles/1/ ") != a {
		t.Fatal("whitespace changed the id")
	}
}

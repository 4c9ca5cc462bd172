package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zenpress/internal/scanner"
)

const feedFixture = `
<main>
  <article class="tm-articles-list__item">
    <h2><a href="/ru/articles/100/">First Post</a></h2>
    <a class="tm-user-info__username">alice</a>
    <time datetime="2026-08-25T06:00:00Z"></time>
  </article>
  <article class="tm-articles-list__item">
    <h2><a href="https://habr.com/ru/articles/200/">Second Post</a></h2>
    <a class="tm-user-info__username">bob</a>
    <time datetime="2026-08-25T05:00:00Z"></time>
  </article>
  <article class="tm-articles-list__item">
    <h2><a href="/ru/articles/100/">Duplicate Of First</a></h2>
  </article>
  <article class="tm-articles-list__item">
    <h2>No Link Here</h2>
  </article>
</main>`

func TestHabrScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedFixture))
	}))
	defer server.Close()

	sc := NewHabrScanner(server.Client(), "zenpress-test")
	items, err := sc.Scan(context.Background(), scanner.Request{FeedURL: server.URL})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 unique items, got %d", len(items))
	}
	if items[0].URL != "https://habr.com/ru/articles/100/" {
		t.Fatalf("relative href not normalized: %s", items[0].URL)
	}
	if items[0].Title != "First Post" || items[0].Author != "alice" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	want := time.Date(2026, time.August, 25, 6, 0, 0, 0, time.UTC)
	if !items[0].PublishedAt.Equal(want) {
		t.Fatalf("unexpected published time: %v", items[0].PublishedAt)
	}
	if items[1].URL != "https://habr.com/ru/articles/200/" {
		t.Fatalf("unexpected second item url: %s", items[1].URL)
	}
}

func TestHabrScannerScanLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedFixture))
	}))
	defer server.Close()

	sc := NewHabrScanner(server.Client(), "")
	items, err := sc.Scan(context.Background(), scanner.Request{FeedURL: server.URL, Limit: 1})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("limit not applied: got %d", len(items))
	}
}

func TestHabrScannerScanBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sc := NewHabrScanner(server.Client(), "")
	if _, err := sc.Scan(context.Background(), scanner.Request{FeedURL: server.URL}); err == nil {
		t.Fatal("expected error for non-200 feed response")
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"/ru/articles/1/", "https://habr.com/ru/articles/1/"},
		{"https://habr.com/ru/articles/2/", "https://habr.com/ru/articles/2/"},
		{"  /ru/articles/3/ ", "https://habr.com/ru/articles/3/"},
		{"javascript:void(0)", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeURL(tc.in); got != tc.want {
			t.Fatalf("normalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

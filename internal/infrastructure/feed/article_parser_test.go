package feed

import (
	"strings"
	"testing"
	"time"
)

const articleFixture = `
<html>
<body>
  <h1 class="tm-title">Go at Scale</h1>
  <a class="tm-user-info__username">alice</a>
  <time datetime="2026-08-24T10:30:00Z"></time>
  <div id="post-content-body">
    <p>First paragraph of the article.</p>
    <p>Second paragraph with details.</p>
  </div>
  <div class="tm-separated-list tag-list">
    <a class="link"><span>go</span></a>
    <a class="link"><span>performance</span></a>
  </div>
</body>
</html>`

func TestArticleParserParse(t *testing.T) {
	t.Parallel()

	parser := NewArticleParser(nil)
	got, err := parser.Parse([]byte(articleFixture), "https://habr.com/ru/articles/100/")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if got.Title != "Go at Scale" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.Author != "alice" {
		t.Fatalf("unexpected author: %q", got.Author)
	}
	if !strings.Contains(got.Body, "First paragraph") || !strings.Contains(got.Body, "Second paragraph") {
		t.Fatalf("body not extracted: %q", got.Body)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
	want := time.Date(2026, time.August, 24, 10, 30, 0, 0, time.UTC)
	if !got.PublishedAt.Equal(want) {
		t.Fatalf("unexpected published time: %v", got.PublishedAt)
	}
}

func TestArticleParserLegacyLayout(t *testing.T) {
	t.Parallel()

	html := `
	<html><body>
	  <h1>Old Layout Title</h1>
	  <div class="article-body"><p>Legacy body content.</p></div>
	  <a class="tm-tags-list__link"><span>legacy</span></a>
	</body></html>`

	parser := NewArticleParser(nil)
	got, err := parser.Parse([]byte(html), "https://habr.com/ru/articles/200/")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got.Title != "Old Layout Title" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if !strings.Contains(got.Body, "Legacy body content") {
		t.Fatalf("legacy body not extracted: %q", got.Body)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "legacy" {
		t.Fatalf("fallback tag selector failed: %v", got.Tags)
	}
}

func TestArticleParserNoBody(t *testing.T) {
	t.Parallel()

	parser := NewArticleParser(nil)
	if _, err := parser.Parse([]byte("<html><body></body></html>"), "https://habr.com/ru/articles/300/"); err == nil {
		t.Fatal("expected error for page with no extractable body")
	}
}

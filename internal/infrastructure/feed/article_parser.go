package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"zenpress/internal/ports"
)

// contentSelectors are tried in order; Habr has shipped several article
// layouts over the years.
var contentSelectors = []string{
	"#post-content-body",
	"div.article-body",
	"article.tm-article-presenter__content",
}

// ArticleParser turns raw article HTML into a structured record.
type ArticleParser struct {
	logger *slog.Logger
}

var _ ports.ContentParser = (*ArticleParser)(nil)

// NewArticleParser builds a parser; the logger may be nil.
func NewArticleParser(logger *slog.Logger) *ArticleParser {
	return &ArticleParser{logger: logger}
}

// Parse extracts title, author, body text, tags, and publication time from
// the page at pageURL. When the known selectors match nothing it falls
// back to readability extraction; a page with no extractable body is an
// error so the caller can skip it with a warning.
func (p *ArticleParser) Parse(html []byte, pageURL string) (ports.ParsedArticle, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ports.ParsedArticle{}, fmt.Errorf("parse document: %w", err)
	}

	out := ports.ParsedArticle{
		Title:  firstText(doc, "h1.tm-title", "h1"),
		Author: strings.TrimSpace(doc.Find("a.tm-user-info__username").First().Text()),
		Tags:   extractTags(doc),
	}

	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if parsed, tErr := time.Parse(time.RFC3339, dt); tErr == nil {
			out.PublishedAt = parsed.UTC()
		}
	}

	out.Body = extractBody(doc)
	if out.Body == "" {
		out = p.fallbackReadability(html, pageURL, out)
	}
	if out.Body == "" {
		return ports.ParsedArticle{}, fmt.Errorf("no article body found in %s", pageURL)
	}
	return out, nil
}

func (p *ArticleParser) fallbackReadability(html []byte, pageURL string, out ports.ParsedArticle) ports.ParsedArticle {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return out
	}
	article, err := readability.FromReader(bytes.NewReader(html), parsedURL)
	if err != nil {
		if p.logger != nil {
			p.logger.Debug("readability fallback failed", "url", pageURL, "error", err)
		}
		return out
	}
	out.Body = strings.TrimSpace(article.TextContent)
	if out.Title == "" {
		out.Title = strings.TrimSpace(article.Title)
	}
	if out.Author == "" {
		out.Author = strings.TrimSpace(article.Byline)
	}
	return out
}

func extractBody(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		body := doc.Find(selector).First()
		if body.Length() == 0 {
			continue
		}
		var parts []string
		body.Contents().Each(func(i int, sel *goquery.Selection) {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if text := strings.TrimSpace(strings.Join(parts, "\n")); text != "" {
			return text
		}
	}
	return ""
}

func extractTags(doc *goquery.Document) []string {
	var tags []string
	doc.Find("div.tm-separated-list.tag-list a.link span").Each(func(i int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			tags = append(tags, t)
		}
	})
	if len(tags) == 0 {
		doc.Find("a.tm-tags-list__link span").Each(func(i int, sel *goquery.Selection) {
			if t := strings.TrimSpace(sel.Text()); t != "" {
				tags = append(tags, t)
			}
		})
	}
	return tags
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

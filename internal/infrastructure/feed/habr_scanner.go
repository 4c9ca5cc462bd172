package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"zenpress/internal/ports"
	"zenpress/internal/scanner"
)

const habrBaseURL = "https://habr.com"

// HabrScanner extracts article links from the Habr feed page.
type HabrScanner struct {
	client    *http.Client
	userAgent string
}

var _ scanner.Scanner = (*HabrScanner)(nil)

// NewHabrScanner wires an HTTP client; a nil client gets a 30s timeout.
func NewHabrScanner(client *http.Client, userAgent string) *HabrScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HabrScanner{client: client, userAgent: userAgent}
}

// Name identifies the strategy inside the registry.
func (h *HabrScanner) Name() string {
	return "habr"
}

// Scan fetches the feed page and returns up to req.Limit discovered items,
// deduplicated by URL, in feed order.
func (h *HabrScanner) Scan(ctx context.Context, req scanner.Request) ([]ports.FeedItem, error) {
	if req.FeedURL == "" {
		return nil, fmt.Errorf("feed url is empty")
	}

	doc, err := h.fetchDocument(ctx, req.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("feed page: %w", err)
	}

	items := extractFeedItems(doc)
	if req.Limit > 0 && len(items) > req.Limit {
		items = items[:req.Limit]
	}
	return items, nil
}

func (h *HabrScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractFeedItems(doc *goquery.Document) []ports.FeedItem {
	var items []ports.FeedItem
	seen := map[string]struct{}{}

	doc.Find("article.tm-articles-list__item").Each(func(i int, sel *goquery.Selection) {
		link := sel.Find("h2 a[href]").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		itemURL := normalizeURL(href)
		if itemURL == "" {
			return
		}
		if _, dup := seen[itemURL]; dup {
			return
		}
		seen[itemURL] = struct{}{}

		item := ports.FeedItem{
			Title:  strings.TrimSpace(sel.Find("h2").First().Text()),
			URL:    itemURL,
			Author: strings.TrimSpace(sel.Find("a.tm-user-info__username").First().Text()),
		}
		if dt, ok := sel.Find("time[datetime]").First().Attr("datetime"); ok {
			if parsed, err := time.Parse(time.RFC3339, dt); err == nil {
				item.PublishedAt = parsed.UTC()
			}
		}
		items = append(items, item)
	})

	return items
}

// normalizeURL resolves site-relative hrefs against the Habr origin.
func normalizeURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "/") {
		return habrBaseURL + href
	}
	if !strings.HasPrefix(href, "http") {
		return ""
	}
	return href
}

package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"zenpress/internal/ports"
)

// Fetcher retrieves article pages with a polite request rate and hands
// the bytes to the artifact store. Failures are per-URL; the caller
// journals them and continues.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	shots     ports.Screenshotter
	logger    *slog.Logger
}

// NewFetcher wires the HTTP client and rate limiter. A nil client gets a
// 30s timeout; rps <= 0 disables limiting; shots may be nil.
func NewFetcher(client *http.Client, rps float64, userAgent string, shots ports.Screenshotter, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Fetcher{
		client:    client,
		limiter:   limiter,
		userAgent: userAgent,
		shots:     shots,
		logger:    logger,
	}
}

// FetchPage performs one rate-limited GET and returns the body bytes.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read page body: %w", err)
	}
	return body, nil
}

// Capture takes a best-effort screenshot; a missing screenshotter or a
// capture failure is logged and swallowed.
func (f *Fetcher) Capture(ctx context.Context, pageURL, outPath string) {
	if f.shots == nil {
		return
	}
	if err := f.shots.Capture(ctx, pageURL, outPath); err != nil && f.logger != nil {
		f.logger.Warn("screenshot failed", "url", pageURL, "error", err)
	}
}
